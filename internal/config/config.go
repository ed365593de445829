package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	API         APIConfig         `yaml:"api"`
	Transport   TransportConfig   `yaml:"transport"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	JWT         JWTConfig         `yaml:"jwt"`
	Log         LogConfig         `yaml:"log"`
	Fleet       FleetConfig       `yaml:"fleet"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Content     ContentConfig     `yaml:"content"`
	Integration IntegrationConfig `yaml:"integration"`
}

// ContentConfig represents the content descriptor source
type ContentConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig represents server identity configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents admin REST API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TransportConfig represents the display-unit session endpoint
type TransportConfig struct {
	EndpointPath string        `yaml:"endpoint_path"`
	SSLEnabled   bool          `yaml:"ssl_enabled"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	SendBuffer   int           `yaml:"send_buffer"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration. An empty URL disables the
// event bridge.
type NATSConfig struct {
	URL               string        `yaml:"url"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FleetConfig represents client registry and liveness configuration
type FleetConfig struct {
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
	MonitorInterval  time.Duration `yaml:"monitor_interval"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	StaleHorizon     time.Duration `yaml:"stale_horizon"`
	WarmupAttempts   int           `yaml:"warmup_attempts"`
}

// DiscoveryConfig represents the UDP discovery responder configuration
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ScheduleConfig represents the schedule evaluator configuration
type ScheduleConfig struct {
	EvalInterval time.Duration `yaml:"eval_interval"`
}

// IntegrationConfig represents external forwarding configuration
type IntegrationConfig struct {
	WebhookURL  string        `yaml:"webhook_url"`
	MQTTBroker  string        `yaml:"mqtt_broker"`
	MQTTTopic   string        `yaml:"mqtt_topic"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}
}

// setDefaults fills in defaults for unset values
func (c *Config) setDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "signage-server"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}

	if c.Transport.EndpointPath == "" {
		c.Transport.EndpointPath = "/ws"
	}
	if c.Transport.IdleTimeout == 0 {
		c.Transport.IdleTimeout = 90 * time.Second
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = 10 * time.Second
	}
	if c.Transport.SendBuffer == 0 {
		c.Transport.SendBuffer = 32
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
	}

	if c.Fleet.HeartbeatTimeout == 0 {
		c.Fleet.HeartbeatTimeout = 2 * time.Minute
	}
	if c.Fleet.MonitorInterval == 0 {
		c.Fleet.MonitorInterval = 30 * time.Second
	}
	if c.Fleet.SweepInterval == 0 {
		c.Fleet.SweepInterval = time.Hour
	}
	if c.Fleet.StaleHorizon == 0 {
		c.Fleet.StaleHorizon = 30 * 24 * time.Hour
	}
	if c.Fleet.WarmupAttempts == 0 {
		c.Fleet.WarmupAttempts = 5
	}

	if c.Discovery.Port == 0 {
		c.Discovery.Port = 45054
	}

	if c.Schedule.EvalInterval == 0 {
		c.Schedule.EvalInterval = time.Minute
	}

	if c.Content.Dir == "" {
		c.Content.Dir = "./content"
	}

	if c.Integration.HTTPTimeout == 0 {
		c.Integration.HTTPTimeout = 30 * time.Second
	}

	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
}
