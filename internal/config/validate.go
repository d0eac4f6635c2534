package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Stream.URL == "" {
		return errors.New("stream.url is required")
	}
	if !strings.HasPrefix(c.Stream.URL, "ws://") && !strings.HasPrefix(c.Stream.URL, "wss://") {
		return fmt.Errorf("stream.url must be a ws:// or wss:// URL, got %q", c.Stream.URL)
	}
	if c.Stream.MaxReconnectAttempts < 0 {
		return errors.New("stream.max_reconnect_attempts must be >= 0")
	}
	if c.Stream.BackoffFactor < 1 {
		return fmt.Errorf("stream.backoff_factor must be >= 1, got %g", c.Stream.BackoffFactor)
	}
	for i, ch := range c.Stream.Channels {
		if ch.Name == "" {
			return fmt.Errorf("stream.channels[%d].name is required", i)
		}
		if len(ch.Symbols) == 0 {
			return fmt.Errorf("stream.channels[%d] (%s) has no symbols", i, ch.Name)
		}
	}

	if c.PersistenceEnabled() {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
		if c.Writer.BatchSize < 1 {
			return errors.New("writer.batch_size must be >= 1")
		}
		if c.Writer.BufferSize < 1 {
			return errors.New("writer.buffer_size must be >= 1")
		}
	}

	if c.Stats.Port < 1 || c.Stats.Port > 65535 {
		return fmt.Errorf("stats.port must be between 1 and 65535, got %d", c.Stats.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
