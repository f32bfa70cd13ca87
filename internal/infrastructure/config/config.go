package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the verification service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Verify   VerifyConfig   `yaml:"verify"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServiceConfig identifies this service instance.
type ServiceConfig struct {
	Name string `yaml:"name"`
}

// MQTTConfig contains settings for the short-lived probe connections
// opened against the telemetry broker.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`

	// KeepAlive is the MQTT keep-alive interval in seconds.
	KeepAlive int `yaml:"keep_alive"`

	// ConnectTimeout bounds the TCP + CONNECT handshake in seconds.
	// It is nested inside the per-request verification timeout.
	ConnectTimeout int `yaml:"connect_timeout"`

	// TopicPrefix is shared with the device publishers. The subscribe
	// topic is "<prefix>/<DEVICE_ID>".
	TopicPrefix string `yaml:"topic_prefix"`

	// ClientIDPrefix is prepended to the generated per-attempt client ID.
	ClientIDPrefix string `yaml:"client_id_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// VerifyConfig contains device liveness verification settings.
type VerifyConfig struct {
	// DefaultTimeoutMS is used when the caller does not supply a timeout.
	DefaultTimeoutMS int `yaml:"default_timeout_ms"`

	// MaxTimeoutMS caps caller-supplied timeouts.
	MaxTimeoutMS int `yaml:"max_timeout_ms"`

	// CacheTTL is how long a verification outcome is trusted, in seconds.
	CacheTTL int `yaml:"cache_ttl"`

	// SingleFlight coalesces concurrent verifications of the same
	// uncached device behind one broker session.
	SingleFlight bool `yaml:"single_flight"`

	// DeviceIDPattern is the accepted device ID shape, matched case-insensitively.
	DeviceIDPattern string `yaml:"device_id_pattern"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
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

// DatabaseConfig contains SQLite settings for the verification history.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionDays prunes history older than this at startup. 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
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

// verifyTeardownMargin is the time allowed after a verification timeout for
// the probe to disconnect and the response to be written.
const verifyTeardownMargin = 2 * time.Second

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MQTTVERIFY_SECTION_KEY
// For example: MQTTVERIFY_MQTT_HOST, MQTTVERIFY_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

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

// defaultConfig returns a Config matching the production broker deployment.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "mqtt-verify",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1886,
			},
			KeepAlive:      20,
			ConnectTimeout: 10,
			TopicPrefix:    "reportApp",
			ClientIDPrefix: "verify",
		},
		Verify: VerifyConfig{
			DefaultTimeoutMS: 8000,
			MaxTimeoutMS:     30000,
			CacheTTL:         300,
			DeviceIDPattern:  `^[HP]\d{9}$`,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:          "./data/mqttverify.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MQTTVERIFY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("MQTTVERIFY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MQTTVERIFY_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("MQTTVERIFY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTTVERIFY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("MQTTVERIFY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("MQTTVERIFY_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Database
	if v := os.Getenv("MQTTVERIFY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("MQTTVERIFY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.KeepAlive < 0 {
		errs = append(errs, "mqtt.keep_alive must not be negative")
	}
	if c.MQTT.ConnectTimeout <= 0 {
		errs = append(errs, "mqtt.connect_timeout must be positive")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	} else if strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
		errs = append(errs, "mqtt.topic_prefix must not contain wildcards")
	}

	// Verify validation
	if c.Verify.DefaultTimeoutMS <= 0 {
		errs = append(errs, "verify.default_timeout_ms must be positive")
	}
	if c.Verify.MaxTimeoutMS < c.Verify.DefaultTimeoutMS {
		errs = append(errs, "verify.max_timeout_ms must not be less than verify.default_timeout_ms")
	}
	if c.Verify.CacheTTL <= 0 {
		errs = append(errs, "verify.cache_ttl must be positive")
	}
	if _, err := regexp.Compile(c.Verify.DeviceIDPattern); err != nil {
		errs = append(errs, fmt.Sprintf("verify.device_id_pattern is invalid: %v", err))
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Timeouts.Write < 0 {
		errs = append(errs, "api.timeouts.write must not be negative")
	}
	// Zero means no write deadline. Otherwise the longest verification plus
	// probe teardown must fit before the server cuts the response off.
	if c.API.Timeouts.Write > 0 && c.API.WriteTimeout() < c.Verify.MaxTimeout()+verifyTeardownMargin {
		errs = append(errs, fmt.Sprintf("api.timeouts.write must be at least verify.max_timeout_ms plus %s", verifyTeardownMargin))
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}
	if c.Database.RetentionDays < 0 {
		errs = append(errs, "database.retention_days must not be negative")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout returns the API read timeout as a Duration.
func (a APIConfig) ReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// WriteTimeout returns the API write timeout as a Duration.
func (a APIConfig) WriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// IdleTimeout returns the API idle timeout as a Duration.
func (a APIConfig) IdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}

// DefaultTimeout returns the default verification timeout.
func (v VerifyConfig) DefaultTimeout() time.Duration {
	return time.Duration(v.DefaultTimeoutMS) * time.Millisecond
}

// MaxTimeout returns the upper bound for caller-supplied timeouts.
func (v VerifyConfig) MaxTimeout() time.Duration {
	return time.Duration(v.MaxTimeoutMS) * time.Millisecond
}

// TTL returns the result cache time-to-live.
func (v VerifyConfig) TTL() time.Duration {
	return time.Duration(v.CacheTTL) * time.Second
}
