// Gray Logic MDM - Apple device management server
//
// This is the main entry point for the MDM server. It serves the device
// check-in and command channels, the enrollment profile and the admin API
// from one HTTP listener, backed by a single SQLite database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-mdm/migrations"

	"github.com/nerrad567/gray-logic-mdm/internal/admin"
	"github.com/nerrad567/gray-logic-mdm/internal/api"
	"github.com/nerrad567/gray-logic-mdm/internal/audit"
	"github.com/nerrad567/gray-logic-mdm/internal/command"
	"github.com/nerrad567/gray-logic-mdm/internal/device"
	"github.com/nerrad567/gray-logic-mdm/internal/enroll"
	"github.com/nerrad567/gray-logic-mdm/internal/events"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mdm/internal/mdm"
	"github.com/nerrad567/gray-logic-mdm/internal/push"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when GRAYLOGIC_MDM_CONFIG is unset.
	defaultConfigPath = "configs/config.yaml"

	// eventBufferSize is the event bus queue length.
	eventBufferSize = 1024

	// deviceStatsInterval is how often device counts are written to InfluxDB.
	deviceStatsInterval = time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic MDM",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"base_url", cfg.Server.BaseURL,
		"push_mode", cfg.Push.Mode,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	mqttClient, err := connectMQTT(cfg, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient, err := connectInfluxDB(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Event fan-out. Sinks are added before Start.
	m := metrics.New()
	hub := api.NewHub(cfg.WebSocket, log)
	bus := events.NewBus(eventBufferSize)
	bus.SetLogger(log)
	bus.Add(m)
	bus.Add(hub)
	if mqttClient != nil {
		bus.Add(events.NewMQTTSink(mqttClient, log))
	}
	if influxClient != nil {
		bus.Add(events.NewInfluxSink(influxClient))
	}
	bus.Start(ctx)
	defer bus.Close()

	devices := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	devices.SetLogger(log)
	commands := command.NewQueue(command.NewSQLiteRepository(db.DB))
	commands.SetLogger(log)
	commands.SetObserver(bus)

	notifier, err := newNotifier(cfg, mqttClient, log)
	if err != nil {
		return fmt.Errorf("creating push notifier: %w", err)
	}
	log.Info("push notifier ready", "mode", notifier.Mode())

	protocol := mdm.NewService(devices, commands)
	protocol.SetLogger(log)
	protocol.SetPublisher(bus)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	adminSvc := admin.NewService(devices, commands, notifier, admin.Config{
		DefaultTopic:      cfg.MDM.Topic,
		ProfileIdentifier: cfg.MDM.ProfileIdentifier,
	})
	adminSvc.SetLogger(log)
	adminSvc.SetAuditLog(auditRepo)
	adminSvc.SetPublisher(bus)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Devices:  devices,
		Commands: commands,
		Protocol: protocol,
		Admin:    adminSvc,
		Enroll:   enroll.NewGenerator(cfg.Server, cfg.MDM),
		Audit:    auditRepo,
		Metrics:  m,
		DB:       db,
		MQTT:     mqttClient,
		Events:   bus,
		Hub:      hub,
		PushMode: notifier.Mode(),
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if influxClient != nil {
		go reportDeviceCounts(ctx, devices, influxClient, log)
	}

	log.Info("MDM server ready",
		"enrollment_url", cfg.EnrollmentURL(),
		"checkin_url", cfg.CheckInURL(),
		"server_url", cfg.ServerURL(),
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API server, event bus,
	// InfluxDB, MQTT, database.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_MDM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_MDM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectMQTT connects to the broker when mqtt.enabled is set. A nil client
// with a nil error means MQTT is disabled.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil, nil //nolint:nilnil // disabled is not an error
	}

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// connectInfluxDB connects when influxdb.enabled is set.
func connectInfluxDB(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil //nolint:nilnil // disabled is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// newNotifier builds the wake-signal transport. The MQTT client is only
// handed over when connected, so a disabled broker stays a nil interface.
func newNotifier(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (push.Notifier, error) {
	var pub push.JSONPublisher
	if mqttClient != nil {
		pub = mqttClient
	}
	return push.New(cfg.Push, cfg.MDM.Topic, pub, log)
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional clients may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// reportDeviceCounts writes the enrolment breakdown to InfluxDB until ctx
// is cancelled.
func reportDeviceCounts(ctx context.Context, devices *device.Registry, influx *influxdb.Client, log *logging.Logger) {
	ticker := time.NewTicker(deviceStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			counts, err := devices.Count(ctx)
			if err != nil {
				log.Warn("failed to count devices", "error", err)
				continue
			}
			byStatus := make(map[string]int, len(counts))
			for status, n := range counts {
				byStatus[string(status)] = n
			}
			influx.WriteDeviceCounts(byStatus, now)
		}
	}
}
