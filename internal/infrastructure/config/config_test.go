package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validJWTSecret meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
home:
  tick_interval_seconds: 5
  seed: 42
  max_sessions: 10
database:
  path: "/tmp/journal.db"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
  topic_prefix: "sim"
api:
  port: 9090
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
  login:
    username: "demo"
    password: "demo-password"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Home.TickIntervalSeconds != 5 {
		t.Errorf("Home.TickIntervalSeconds = %d, want 5", cfg.Home.TickIntervalSeconds)
	}
	if cfg.Home.Seed != 42 {
		t.Errorf("Home.Seed = %d, want 42", cfg.Home.Seed)
	}
	// Unset keys keep their defaults.
	if cfg.Home.SessionTTLMinutes != 60 {
		t.Errorf("Home.SessionTTLMinutes = %d, want default 60", cfg.Home.SessionTTLMinutes)
	}
	if cfg.Database.Path != "/tmp/journal.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/journal.db")
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.TopicPrefix != "sim" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Security.Login.Username != "demo" {
		t.Errorf("Security.Login.Username = %q, want demo", cfg.Security.Login.Username)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
api:
  port: 8080
`)
	t.Setenv("HOMESIM_JWT_SECRET", "")

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "security.jwt.secret") {
		t.Errorf("Load() error = %v, want missing jwt secret", err)
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = validJWTSecret
	cfg.Security.Login.Password = "demo"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "tick disabled", mutate: func(c *Config) { c.Home.TickIntervalSeconds = 0 }},
		{name: "negative tick", mutate: func(c *Config) { c.Home.TickIntervalSeconds = -1 }, wantErr: "home.tick_interval_seconds"},
		{name: "zero ttl", mutate: func(c *Config) { c.Home.SessionTTLMinutes = 0 }, wantErr: "home.session_ttl_minutes"},
		{name: "zero max sessions", mutate: func(c *Config) { c.Home.MaxSessions = 0 }, wantErr: "home.max_sessions"},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{name: "mqtt without prefix", mutate: func(c *Config) { c.MQTT.Enabled = true; c.MQTT.TopicPrefix = "" }, wantErr: "mqtt.topic_prefix"},
		{name: "mqtt disabled without prefix", mutate: func(c *Config) { c.MQTT.TopicPrefix = "" }},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: "api.port"},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: "api.port"},
		{name: "influx enabled without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: "influxdb.url"},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: "security.jwt.secret is required"},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: "at least 32 characters"},
		{name: "missing login username", mutate: func(c *Config) { c.Security.Login.Username = "" }, wantErr: "security.login.username"},
		{name: "missing login password", mutate: func(c *Config) { c.Security.Login.Password = "" }, wantErr: "security.login.password"},
		{
			name: "hash instead of password",
			mutate: func(c *Config) {
				c.Security.Login.Password = ""
				c.Security.Login.PasswordHash = "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.API.Port = 0
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	for _, want := range []string{"api.port", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q missing %q", err, want)
		}
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Home: HomeConfig{TickIntervalSeconds: 3, SessionTTLMinutes: 30},
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
		Security: SecurityConfig{JWT: JWTConfig{AccessTokenTTL: 15}},
	}

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"read timeout", cfg.GetReadTimeout(), 30 * time.Second},
		{"write timeout", cfg.GetWriteTimeout(), 45 * time.Second},
		{"idle timeout", cfg.GetIdleTimeout(), 60 * time.Second},
		{"tick interval", cfg.GetTickInterval(), 3 * time.Second},
		{"session ttl", cfg.GetSessionTTL(), 30 * time.Minute},
		{"access token ttl", cfg.GetAccessTokenTTL(), 15 * time.Minute},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("HOMESIM_HOME_TICK_INTERVAL_SECONDS", "7")
	t.Setenv("HOMESIM_HOME_SEED", "99")
	t.Setenv("HOMESIM_DATABASE_PATH", "/custom/path.db")
	t.Setenv("HOMESIM_MQTT_ENABLED", "true")
	t.Setenv("HOMESIM_MQTT_HOST", "mqtt.example.com")
	t.Setenv("HOMESIM_MQTT_USERNAME", "testuser")
	t.Setenv("HOMESIM_MQTT_PASSWORD", "testpass")
	t.Setenv("HOMESIM_API_HOST", "192.168.1.1")
	t.Setenv("HOMESIM_API_PORT", "9000")
	t.Setenv("HOMESIM_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("HOMESIM_JWT_SECRET", "jwt-secret")
	t.Setenv("HOMESIM_LOGIN_PASSWORD", "letmein")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Home.TickIntervalSeconds != 7 {
		t.Errorf("Home.TickIntervalSeconds = %d, want 7", cfg.Home.TickIntervalSeconds)
	}
	if cfg.Home.Seed != 99 {
		t.Errorf("Home.Seed = %d, want 99", cfg.Home.Seed)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v", cfg.MQTT.Auth)
	}
	if cfg.API.Host != "192.168.1.1" || cfg.API.Port != 9000 {
		t.Errorf("API = %s:%d, want 192.168.1.1:9000", cfg.API.Host, cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
	if cfg.Security.Login.Password != "letmein" {
		t.Errorf("Security.Login.Password = %q, want %q", cfg.Security.Login.Password, "letmein")
	}
}

func TestApplyEnvOverrides_InvalidNumbers(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("HOMESIM_API_PORT", "eighty")
	t.Setenv("HOMESIM_HOME_SEED", "-1")

	err := applyEnvOverrides(cfg)
	if err == nil {
		t.Fatal("applyEnvOverrides() expected error, got nil")
	}
	for _, want := range []string{"HOMESIM_API_PORT", "HOMESIM_HOME_SEED"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want unchanged 8080", cfg.API.Port)
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "HOMESIM_LOGIN_USERNAME"
	prev, had := os.LookupEnv(key)
	os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})

	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte(key+"=from-dotenv\n"), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	if err := loadDotEnv(envPath); err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}

	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}
	if cfg.Security.Login.Username != "from-dotenv" {
		t.Errorf("Security.Login.Username = %q, want from-dotenv", cfg.Security.Login.Username)
	}
}

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("loadDotEnv() error = %v, want nil for missing file", err)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("HOMESIM_CONFIG", "")
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("ResolvePath(\"\") = %q, want %q", got, DefaultPath)
	}

	t.Setenv("HOMESIM_CONFIG", "/etc/homesim.yaml")
	if got := ResolvePath(""); got != "/etc/homesim.yaml" {
		t.Errorf("ResolvePath(\"\") = %q, want env path", got)
	}
	if got := ResolvePath("cli.yaml"); got != "cli.yaml" {
		t.Errorf("ResolvePath(\"cli.yaml\") = %q, want flag value", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path != ":memory:" {
		t.Errorf("defaultConfig Database.Path = %q, want in-memory", cfg.Database.Path)
	}
	if cfg.Home.TickIntervalSeconds != 3 {
		t.Errorf("defaultConfig Home.TickIntervalSeconds = %d, want 3", cfg.Home.TickIntervalSeconds)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("defaultConfig should leave MQTT and InfluxDB disabled")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
