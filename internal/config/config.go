package config

import "time"

// Config is the root configuration for a streamwatch instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Stream   StreamConfig   `yaml:"stream"`
	Database DatabaseConfig `yaml:"database"`
	Writer   WriterConfig   `yaml:"writer"`
	Stats    StatsConfig    `yaml:"stats"`
}

// InstanceConfig identifies this instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// StreamConfig holds streaming client settings.
type StreamConfig struct {
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth_token"`

	AutoReconnect        *bool         `yaml:"auto_reconnect"` // nil = true
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	BackoffFactor        float64       `yaml:"backoff_factor"`
	MaxReconnectDelay    time.Duration `yaml:"max_reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"` // 0 = unlimited

	EnableHeartbeat     *bool         `yaml:"enable_heartbeat"` // nil = true
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	MaxMissedHeartbeats int           `yaml:"max_missed_heartbeats"`

	AckTimeout time.Duration `yaml:"ack_timeout"`
	BufferSize int           `yaml:"buffer_size"`

	// Channels to subscribe at startup.
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig is an initial subscription.
type ChannelConfig struct {
	Name    string   `yaml:"name"`
	Symbols []string `yaml:"symbols"`
}

// DatabaseConfig holds the Postgres connection for quote persistence.
// Leaving the host empty disables persistence entirely.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WriterConfig holds quote writer batch settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// StatsConfig holds the diagnostics HTTP endpoint settings.
type StatsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// PersistenceEnabled reports whether a quote writer should run.
func (c *Config) PersistenceEnabled() bool {
	return c.Database.Postgres.Host != ""
}
