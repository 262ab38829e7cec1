package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Push delivery modes.
const (
	PushModeMock = "mock"
	PushModeAPNs = "apns"
	PushModeMQTT = "mqtt"
)

// Config is the root configuration structure for the MDM core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	MDM       MDMConfig       `yaml:"mdm"`
	Push      PushConfig      `yaml:"push"`
}

// ServerConfig describes how devices reach this server.
type ServerConfig struct {
	// BaseURL is the externally reachable HTTPS origin devices are given in
	// the enrollment profile (ServerURL / CheckInURL are derived from it).
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP server settings for both the device channels
// and the admin API.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings for the admin UI.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the admin event stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker is optional; it carries wake requests (push.mode=mqtt) and
// lifecycle events for other services.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for command
// lifecycle history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MDMConfig contains protocol-level identifiers.
type MDMConfig struct {
	// Topic is the push topic from the MDM push certificate. Used when a
	// device has not reported its own topic.
	Topic string `yaml:"topic"`

	// ProfileIdentifier is the PayloadIdentifier of the enrollment profile.
	// RemoveProfile commands target it.
	ProfileIdentifier string `yaml:"profile_identifier"`

	// Organization is shown to users in the enrollment profile.
	Organization string `yaml:"organization"`

	// DisplayName is the enrollment profile display name.
	DisplayName string `yaml:"display_name"`
}

// PushConfig selects and configures the wake-signal transport.
type PushConfig struct {
	// Mode is one of "mock", "apns" or "mqtt".
	Mode string     `yaml:"mode"`
	APNs APNsConfig `yaml:"apns"`
}

// APNsConfig contains the MDM push certificate settings.
type APNsConfig struct {
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	Passphrase string `yaml:"passphrase"`
	Production bool   `yaml:"production"`
	// Timeout bounds a single push request (seconds).
	Timeout int `yaml:"timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_MDM_SECTION_KEY
// For example: GRAYLOGIC_MDM_DATABASE_PATH, GRAYLOGIC_MDM_PUSH_MODE
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
// Push delivery is mocked until a push certificate is configured.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "https://your-mdm-server.example.com",
		},
		Database: DatabaseConfig{
			Path:        "./data/mdm.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3001,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-mdm",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		MDM: MDMConfig{
			Topic:             "com.apple.mgmt.External.placeholder",
			ProfileIdentifier: "com.mdmserver.enrollment",
			Organization:      "MDM Server",
			DisplayName:       "MDM Enrollment",
		},
		Push: PushConfig{
			Mode: PushModeMock,
			APNs: APNsConfig{
				CertFile: "./certs/apns-cert.pem",
				KeyFile:  "./certs/apns-key.pem",
				Timeout:  10,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_MDM_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_MDM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_MDM_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MDM_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MDM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MDM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MDM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_MDM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// MDM
	if v := os.Getenv("GRAYLOGIC_MDM_TOPIC"); v != "" {
		cfg.MDM.Topic = v
	}

	// Push
	if v := os.Getenv("GRAYLOGIC_MDM_PUSH_MODE"); v != "" {
		cfg.Push.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("GRAYLOGIC_MDM_APNS_CERT_PATH"); v != "" {
		cfg.Push.APNs.CertFile = v
	}
	if v := os.Getenv("GRAYLOGIC_MDM_APNS_KEY_PATH"); v != "" {
		cfg.Push.APNs.KeyFile = v
	}
	if v := os.Getenv("GRAYLOGIC_MDM_APNS_PASSPHRASE"); v != "" {
		cfg.Push.APNs.Passphrase = v
	}
	if v := os.Getenv("GRAYLOGIC_MDM_APNS_PRODUCTION"); v != "" {
		cfg.Push.APNs.Production = v == "true"
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		errs = append(errs, "server.base_url must be an http(s) URL")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.MDM.Topic == "" {
		errs = append(errs, "mdm.topic is required")
	}
	if c.MDM.ProfileIdentifier == "" {
		errs = append(errs, "mdm.profile_identifier is required")
	}

	switch c.Push.Mode {
	case PushModeMock:
	case PushModeAPNs:
		if c.Push.APNs.CertFile == "" {
			errs = append(errs, "push.apns.cert_file is required when push.mode is apns")
		}
	case PushModeMQTT:
		if !c.MQTT.Enabled {
			errs = append(errs, "mqtt.enabled must be true when push.mode is mqtt")
		}
	default:
		errs = append(errs, fmt.Sprintf("push.mode %q must be one of mock, apns, mqtt", c.Push.Mode))
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// CheckInURL returns the check-in channel URL advertised to devices.
func (c *Config) CheckInURL() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + "/mdm/checkin"
}

// ServerURL returns the poll channel URL advertised to devices.
func (c *Config) ServerURL() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + "/mdm/server"
}

// EnrollmentURL returns the URL a user opens on the device to enroll.
func (c *Config) EnrollmentURL() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + "/enroll/profile"
}
