package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultReconnectDelay      = 1 * time.Second
	DefaultBackoffFactor       = 2.0
	DefaultMaxReconnectDelay   = 60 * time.Second
	DefaultHeartbeatInterval   = 30 * time.Second
	DefaultMaxMissedHeartbeats = 2
	DefaultAckTimeout          = 10 * time.Second
	DefaultStreamBufferSize    = 1000
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 10
	DefaultMinConns            = 2
	DefaultBatchSize           = 500
	DefaultFlushInterval       = 1 * time.Second
	DefaultWriterBufferSize    = 10000
	DefaultStatsPort           = 8080
	DefaultStatsPath           = "/stats"
)

func (c *Config) applyDefaults() {
	enabled := true

	// Stream defaults
	if c.Stream.AutoReconnect == nil {
		c.Stream.AutoReconnect = &enabled
	}
	if c.Stream.EnableHeartbeat == nil {
		c.Stream.EnableHeartbeat = &enabled
	}
	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Stream.BackoffFactor == 0 {
		c.Stream.BackoffFactor = DefaultBackoffFactor
	}
	if c.Stream.MaxReconnectDelay == 0 {
		c.Stream.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if c.Stream.HeartbeatInterval == 0 {
		c.Stream.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Stream.MaxMissedHeartbeats == 0 {
		c.Stream.MaxMissedHeartbeats = DefaultMaxMissedHeartbeats
	}
	if c.Stream.AckTimeout == 0 {
		c.Stream.AckTimeout = DefaultAckTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Database defaults (only meaningful when persistence is enabled)
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = DefaultDBPort
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = DefaultDBSSLMode
	}
	if c.Database.Postgres.MaxConns == 0 {
		c.Database.Postgres.MaxConns = DefaultMaxConns
	}
	if c.Database.Postgres.MinConns == 0 {
		c.Database.Postgres.MinConns = DefaultMinConns
	}

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultWriterBufferSize
	}

	// Stats defaults
	if c.Stats.Port == 0 {
		c.Stats.Port = DefaultStatsPort
	}
	if c.Stats.Path == "" {
		c.Stats.Path = DefaultStatsPath
	}
}
