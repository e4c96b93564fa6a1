package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when neither --config nor
// HOMESIM_CONFIG is given.
const DefaultPath = "configs/config.yaml"

// Config is the full homesim configuration: YAML first, then HOMESIM_*
// environment overrides.
type Config struct {
	Home      HomeConfig      `yaml:"home"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// HomeConfig controls the simulated homes and the loop that drives them.
type HomeConfig struct {
	// TickIntervalSeconds is how often every session is ticked. 0 disables
	// automatic ticking (ticks then only happen on request).
	TickIntervalSeconds int `yaml:"tick_interval_seconds"`

	// Seed makes the random source of each session reproducible. Session n
	// uses Seed+n. 0 seeds from the clock.
	Seed uint64 `yaml:"seed"`

	// SessionTTLMinutes is how long a session may stay idle before it is
	// discarded.
	SessionTTLMinutes int `yaml:"session_ttl_minutes"`

	// MaxSessions caps the number of concurrent sessions.
	MaxSessions int `yaml:"max_sessions"`
}

// DatabaseConfig locates the SQLite journal. The default ":memory:" path
// means nothing outlives the process.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig configures the optional MQTT bridge.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds http.Server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists what the CORS middleware allows. An empty origin list
// admits every origin, which suits local development only.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig tunes the event stream. Intervals are in seconds.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig configures optional telemetry export.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects slog level, handler format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type SecurityConfig struct {
	JWT   JWTConfig   `yaml:"jwt"`
	Login LoginConfig `yaml:"login"`
}

// JWTConfig signs access tokens. AccessTokenTTL is in minutes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// LoginConfig holds the single fixed credential accepted by the login
// endpoint. PasswordHash (argon2id PHC string) takes precedence over the
// plain Password.
type LoginConfig struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
}

// Load builds a Config from defaults, the YAML file at path, a .env file in
// the working directory (if any) and finally HOMESIM_* environment
// variables, then validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// ResolvePath picks the configuration file path: the flag value when set,
// then HOMESIM_CONFIG, then DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("HOMESIM_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// loadDotEnv exports variables from a .env file without overriding ones
// already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func defaultConfig() *Config {
	return &Config{
		Home: HomeConfig{
			TickIntervalSeconds: 3,
			SessionTTLMinutes:   60,
			MaxSessions:         100,
		},
		Database: DatabaseConfig{Path: ":memory:", BusyTimeout: 5},
		MQTT: MQTTConfig{
			Broker:      MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "homesim"},
			QoS:         1,
			Reconnect:   MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
			TopicPrefix: "homesim",
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		InfluxDB:  InfluxDBConfig{BatchSize: 100, FlushInterval: 10},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Security: SecurityConfig{
			JWT:   JWTConfig{AccessTokenTTL: 60},
			Login: LoginConfig{Username: "admin"},
		},
	}
}

// applyEnvOverrides copies set HOMESIM_* variables over cfg. Every
// malformed value is reported, not just the first.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"HOMESIM_DATABASE_PATH":       &cfg.Database.Path,
		"HOMESIM_MQTT_HOST":           &cfg.MQTT.Broker.Host,
		"HOMESIM_MQTT_USERNAME":       &cfg.MQTT.Auth.Username,
		"HOMESIM_MQTT_PASSWORD":       &cfg.MQTT.Auth.Password,
		"HOMESIM_API_HOST":            &cfg.API.Host,
		"HOMESIM_INFLUXDB_TOKEN":      &cfg.InfluxDB.Token,
		"HOMESIM_LOG_LEVEL":           &cfg.Logging.Level,
		"HOMESIM_JWT_SECRET":          &cfg.Security.JWT.Secret,
		"HOMESIM_LOGIN_USERNAME":      &cfg.Security.Login.Username,
		"HOMESIM_LOGIN_PASSWORD":      &cfg.Security.Login.Password,
		"HOMESIM_LOGIN_PASSWORD_HASH": &cfg.Security.Login.PasswordHash,
	}
	ints := map[string]*int{
		"HOMESIM_HOME_TICK_INTERVAL_SECONDS": &cfg.Home.TickIntervalSeconds,
		"HOMESIM_HOME_MAX_SESSIONS":          &cfg.Home.MaxSessions,
		"HOMESIM_API_PORT":                   &cfg.API.Port,
	}

	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	var errs []string
	bad := func(key, v, kind string) {
		errs = append(errs, fmt.Sprintf("%s: %q is not %s", key, v, kind))
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				bad(key, v, "an integer")
				continue
			}
			*dst = n
		}
	}
	if v := os.Getenv("HOMESIM_HOME_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err != nil {
			bad("HOMESIM_HOME_SEED", v, "an unsigned integer")
		} else {
			cfg.Home.Seed = seed
		}
	}
	if v := os.Getenv("HOMESIM_MQTT_ENABLED"); v != "" {
		if on, err := strconv.ParseBool(v); err != nil {
			bad("HOMESIM_MQTT_ENABLED", v, "a boolean")
		} else {
			cfg.MQTT.Enabled = on
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("environment overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

// minJWTSecretLength applies because tokens carry the session id: a
// guessable secret lets anyone drive any session.
const minJWTSecretLength = 32

// Validate reports every problem with c in one error.
func (c *Config) Validate() error {
	var errs []string
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	check(c.Home.TickIntervalSeconds >= 0, "home.tick_interval_seconds must not be negative")
	check(c.Home.SessionTTLMinutes >= 1, "home.session_ttl_minutes must be at least 1")
	check(c.Home.MaxSessions >= 1, "home.max_sessions must be at least 1")
	check(c.Database.Path != "", "database.path is required")
	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	check(!c.MQTT.Enabled || c.MQTT.TopicPrefix != "", "mqtt.topic_prefix is required when mqtt is enabled")
	check(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")
	check(!c.InfluxDB.Enabled || (c.InfluxDB.URL != "" && c.InfluxDB.Org != "" && c.InfluxDB.Bucket != ""),
		"influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")

	switch secret := c.Security.JWT.Secret; {
	case secret == "":
		errs = append(errs, "security.jwt.secret is required (set HOMESIM_JWT_SECRET)")
	case len(secret) < minJWTSecretLength:
		errs = append(errs, fmt.Sprintf("security.jwt.secret must be at least %d characters", minJWTSecretLength))
	}
	check(c.Security.Login.Username != "", "security.login.username is required")
	check(c.Security.Login.Password != "" || c.Security.Login.PasswordHash != "",
		"security.login.password or security.login.password_hash is required")

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns the API read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API keep-alive idle timeout.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetTickInterval returns the automatic tick interval. Zero disables ticking.
func (c *Config) GetTickInterval() time.Duration {
	return time.Duration(c.Home.TickIntervalSeconds) * time.Second
}

// GetSessionTTL returns how long an idle session is kept.
func (c *Config) GetSessionTTL() time.Duration {
	return time.Duration(c.Home.SessionTTLMinutes) * time.Minute
}

// GetAccessTokenTTL returns the lifetime of issued access tokens.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
