package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-mdm/internal/admin"
	"github.com/nerrad567/gray-logic-mdm/internal/audit"
	"github.com/nerrad567/gray-logic-mdm/internal/command"
	"github.com/nerrad567/gray-logic-mdm/internal/device"
	"github.com/nerrad567/gray-logic-mdm/internal/enroll"
	"github.com/nerrad567/gray-logic-mdm/internal/events"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-mdm/internal/mdm"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Devices  *device.Registry
	Commands *command.Queue
	Protocol *mdm.Service
	Admin    *admin.Service
	Enroll   *enroll.Generator

	// Optional.
	Audit    audit.Repository
	Metrics  *metrics.Metrics
	DB       *database.DB
	MQTT     *mqtt.Client
	Events   *events.Bus
	Hub      *Hub // If set, the server uses this hub instead of creating its own
	PushMode string
	Version  string
}

// Server is the HTTP server for the device channels and the admin API.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	devices  *device.Registry
	commands *command.Queue
	protocol *mdm.Service
	admin    *admin.Service
	enroll   *enroll.Generator
	audit    audit.Repository
	metrics  *metrics.Metrics
	db       *database.DB
	mqtt     *mqtt.Client
	events   *events.Bus
	pushMode string
	version  string

	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
	startTime   time.Time
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Devices == nil:
		return nil, fmt.Errorf("device registry is required")
	case deps.Commands == nil:
		return nil, fmt.Errorf("command queue is required")
	case deps.Protocol == nil:
		return nil, fmt.Errorf("protocol service is required")
	case deps.Admin == nil:
		return nil, fmt.Errorf("admin service is required")
	case deps.Enroll == nil:
		return nil, fmt.Errorf("enrollment generator is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		devices:   deps.Devices,
		commands:  deps.Commands,
		protocol:  deps.Protocol,
		admin:     deps.Admin,
		enroll:    deps.Enroll,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		events:    deps.Events,
		pushMode:  deps.PushMode,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// An injected hub is already registered as an event sink by the caller.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Hub returns the server's WebSocket hub. It is nil until Start unless a
// hub was injected through Deps.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
