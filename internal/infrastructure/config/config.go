package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for presence-core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Presence  PresenceConfig  `yaml:"presence"`
	Intake    IntakeConfig    `yaml:"intake"`
	Database  DatabaseConfig  `yaml:"database"`
	EventLog  EventLogConfig  `yaml:"event_log"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the deployment.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// PresenceConfig contains the timing windows of the presence engine.
type PresenceConfig struct {
	Delay               time.Duration `yaml:"delay"`
	DecodingCompilation time.Duration `yaml:"decoding_compilation"`
	PacketCompilation   time.Duration `yaml:"packet_compilation"`
	History             time.Duration `yaml:"history"`
	KeepAlive           time.Duration `yaml:"keep_alive"`
	Disappearance       time.Duration `yaml:"disappearance"`
	MinRearm            time.Duration `yaml:"min_rearm"`
	AttributeRetention  time.Duration `yaml:"attribute_retention"`
}

// IntakeConfig controls which raddecs and attributes are accepted, and which
// events are relayed.
type IntakeConfig struct {
	AcceptStaleRaddecs  bool `yaml:"accept_stale_raddecs"`
	AcceptFutureRaddecs bool `yaml:"accept_future_raddecs"`
	AcceptStaleDynambs  bool `yaml:"accept_stale_dynambs"`
	AcceptFutureDynambs bool `yaml:"accept_future_dynambs"`

	// DynambProperties and StatidProperties replace the built-in allow-lists
	// when non-empty.
	DynambProperties []string `yaml:"dynamb_properties"`
	StatidProperties []string `yaml:"statid_properties"`

	InputFilter  FilterConfig `yaml:"input_filter"`
	OutputFilter FilterConfig `yaml:"output_filter"`
}

// FilterConfig selects raddecs by transmitter and receiver. Empty lists
// match everything.
type FilterConfig struct {
	AcceptedTransmitterIDTypes []int    `yaml:"accepted_transmitter_id_types"`
	RejectedTransmitters       []string `yaml:"rejected_transmitters"`
	AcceptedReceivers          []string `yaml:"accepted_receivers"`
	MinRSSI                    *int     `yaml:"min_rssi"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// EventLogConfig controls the SQLite event log sink.
type EventLogConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Retention time.Duration `yaml:"retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Topics    MQTTTopicsConfig    `yaml:"topics"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// MQTTTopicsConfig names the topic root. Inbound raddecs, dynambs and
// statids and outbound events all live under it.
type MQTTTopicsConfig struct {
	Root string `yaml:"root"`
}

// APIConfig contains HTTP API server settings.
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

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// envPrefix is the prefix of every environment override.
const envPrefix = "PRESENCE_"

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file next to the YAML file, if present
//  4. Environment variables (override everything above)
//
// Environment variables follow the pattern: PRESENCE_SECTION_KEY
// For example: PRESENCE_DATABASE_PATH, PRESENCE_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	dotenv, err := readDotEnv(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg, dotenv); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration, used when no file is given.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "presence-core",
		},
		Presence: PresenceConfig{
			Delay:               1 * time.Second,
			DecodingCompilation: 2 * time.Second,
			PacketCompilation:   5 * time.Second,
			History:             8 * time.Second,
			KeepAlive:           5 * time.Second,
			Disappearance:       15 * time.Second,
			MinRearm:            50 * time.Millisecond,
			AttributeRetention:  15 * time.Second,
		},
		Intake: IntakeConfig{
			AcceptStaleRaddecs:  false,
			AcceptFutureRaddecs: true,
			AcceptStaleDynambs:  false,
			AcceptFutureDynambs: true,
		},
		Database: DatabaseConfig{
			Path:        "./data/presence.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		EventLog: EventLogConfig{
			Enabled:   true,
			Retention: 7 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "presence-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			Topics: MQTTTopicsConfig{
				Root: "presence",
			},
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
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Org:           "presence",
			Bucket:        "presence",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// readDotEnv reads KEY=VALUE pairs from path. A missing file is not an error.
func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return values, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Real environment variables take precedence over values from dotenv.
func applyEnvOverrides(cfg *Config, dotenv map[string]string) error {
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			return v
		}
		return dotenv[envPrefix+key]
	}

	var errs []string
	setString := func(key string, dst *string) {
		if v := lookup(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := lookup(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, envPrefix+key+" must be an integer")
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := lookup(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, envPrefix+key+" must be a boolean")
				return
			}
			*dst = b
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := lookup(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, envPrefix+key+" must be a duration")
				return
			}
			*dst = d
		}
	}

	// Site
	setString("SITE_ID", &cfg.Site.ID)

	// Presence
	setDuration("PRESENCE_DELAY", &cfg.Presence.Delay)
	setDuration("PRESENCE_KEEP_ALIVE", &cfg.Presence.KeepAlive)
	setDuration("PRESENCE_DISAPPEARANCE", &cfg.Presence.Disappearance)

	// Intake
	setBool("INTAKE_ACCEPT_STALE_RADDECS", &cfg.Intake.AcceptStaleRaddecs)
	setBool("INTAKE_ACCEPT_FUTURE_RADDECS", &cfg.Intake.AcceptFutureRaddecs)

	// Database
	setString("DATABASE_PATH", &cfg.Database.Path)

	// MQTT
	setBool("MQTT_ENABLED", &cfg.MQTT.Enabled)
	setString("MQTT_HOST", &cfg.MQTT.Broker.Host)
	setInt("MQTT_PORT", &cfg.MQTT.Broker.Port)
	setString("MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	setString("MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	// API
	setString("API_HOST", &cfg.API.Host)
	setInt("API_PORT", &cfg.API.Port)

	// InfluxDB
	setBool("INFLUXDB_ENABLED", &cfg.InfluxDB.Enabled)
	setString("INFLUXDB_URL", &cfg.InfluxDB.URL)
	setString("INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	// Logging
	setString("LOG_LEVEL", &cfg.Logging.Level)

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Presence windows
	p := c.Presence
	windows := []struct {
		name string
		d    time.Duration
	}{
		{"presence.delay", p.Delay},
		{"presence.decoding_compilation", p.DecodingCompilation},
		{"presence.packet_compilation", p.PacketCompilation},
		{"presence.history", p.History},
		{"presence.keep_alive", p.KeepAlive},
		{"presence.disappearance", p.Disappearance},
		{"presence.min_rearm", p.MinRearm},
		{"presence.attribute_retention", p.AttributeRetention},
	}
	for _, w := range windows {
		if w.d <= 0 {
			errs = append(errs, w.name+" must be positive")
		}
	}
	if p.PacketCompilation < p.DecodingCompilation {
		errs = append(errs, "presence.packet_compilation must not be shorter than presence.decoding_compilation")
	}

	if c.EventLog.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when event_log is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Topics.Root == "" {
		errs = append(errs, "mqtt.topics.root is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
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
