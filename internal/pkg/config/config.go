package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Maps      MapsConfig      `mapstructure:"maps"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// TrackingConfig tunes the route-progress estimator. Durations are seconds.
type TrackingConfig struct {
	OnRouteThresholdMeters float64 `mapstructure:"on_route_threshold_m"`
	AdvanceThresholdKm     float64 `mapstructure:"advance_threshold_km"`
	AssumedSpeedKmph       float64 `mapstructure:"assumed_speed_kmph"`
	SnapshotTTL            int     `mapstructure:"snapshot_ttl"`
	SessionTTL             int     `mapstructure:"session_ttl"`
	EnrichmentTimeout      int     `mapstructure:"enrichment_timeout"`
}

// MapsConfig enables Google Maps ETA enrichment and directions polylines.
type MapsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// KafkaConfig configures the on-board device GPS consumer. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	Enabled   bool   `mapstructure:"enabled"`
}

type NotifyConfig struct {
	NtfyURL string `mapstructure:"ntfy_url"`
}

// RealtimeConfig configures the GTFS-RT poller.
type RealtimeConfig struct {
	Manifest     string `mapstructure:"manifest"`
	PollInterval int    `mapstructure:"poll_interval"`
	Concurrency  int    `mapstructure:"concurrency"`
}

// Load reads configuration from a .env file, config file and environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bustrack")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "bustrack")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("tracking.on_route_threshold_m", 1000.0)
	v.SetDefault("tracking.advance_threshold_km", 0.15)
	v.SetDefault("tracking.assumed_speed_kmph", 35.0)
	v.SetDefault("tracking.snapshot_ttl", 3600)
	v.SetDefault("tracking.session_ttl", 12*3600)
	v.SetDefault("tracking.enrichment_timeout", 5)
	v.SetDefault("maps.enabled", false)
	v.SetDefault("maps.api_key", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "bus-gps")
	v.SetDefault("kafka.group_id", "bustrack-tracker")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "arrival-notifications")
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("notify.ntfy_url", "https://ntfy.sh")
	v.SetDefault("realtime.manifest", "feeds.json")
	v.SetDefault("realtime.poll_interval", 30)
	v.SetDefault("realtime.concurrency", 8)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: BUSTRACK_DATABASE_HOST → database.host
	v.SetEnvPrefix("BUSTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Tracking.OnRouteThresholdMeters <= 0 {
		errs = append(errs, "tracking.on_route_threshold_m must be positive")
	}
	if c.Tracking.AdvanceThresholdKm <= 0 {
		errs = append(errs, "tracking.advance_threshold_km must be positive")
	}
	if c.Tracking.AssumedSpeedKmph <= 0 {
		errs = append(errs, "tracking.assumed_speed_kmph must be positive")
	}
	if c.Tracking.EnrichmentTimeout <= 0 {
		errs = append(errs, "tracking.enrichment_timeout must be positive")
	}
	if c.Maps.Enabled && c.Maps.APIKey == "" {
		errs = append(errs, "maps.api_key is required when maps.enabled is set")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, "kafka.topic is required when kafka.brokers is set")
	}
	if c.Temporal.Enabled && c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required when temporal.enabled is set")
	}
	if c.Realtime.PollInterval <= 0 {
		errs = append(errs, "realtime.poll_interval must be positive")
	}
	if c.Realtime.Concurrency <= 0 {
		errs = append(errs, "realtime.concurrency must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
