package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streamwatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-watcher
stream:
  url: wss://stream.example.com/ws
  auth_token: abc123
  channels:
    - name: quotes
      symbols: [AAPL, TSLA]
database:
  postgres:
    host: localhost
    port: 5432
    name: test_db
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-watcher" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-watcher")
	}
	if cfg.Stream.URL != "wss://stream.example.com/ws" {
		t.Errorf("Stream.URL = %q", cfg.Stream.URL)
	}
	if cfg.Stream.AuthToken != "abc123" {
		t.Errorf("Stream.AuthToken = %q, want abc123", cfg.Stream.AuthToken)
	}
	if len(cfg.Stream.Channels) != 1 {
		t.Fatalf("Channels = %d, want 1", len(cfg.Stream.Channels))
	}
	if cfg.Stream.Channels[0].Name != "quotes" || len(cfg.Stream.Channels[0].Symbols) != 2 {
		t.Errorf("Channels[0] = %+v", cfg.Stream.Channels[0])
	}
	if cfg.Database.Postgres.Host != "localhost" {
		t.Errorf("Database.Postgres.Host = %q, want localhost", cfg.Database.Postgres.Host)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_STREAM_TOKEN", "secret123")

	yaml := `
instance:
  id: test-watcher
stream:
  url: wss://stream.example.com/ws
  auth_token: ${TEST_STREAM_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Stream.AuthToken != "secret123" {
		t.Errorf("Stream.AuthToken = %q, want %q", cfg.Stream.AuthToken, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-watcher
stream:
  url: wss://stream.example.com/ws
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Stream.AutoReconnect == nil || !*cfg.Stream.AutoReconnect {
		t.Error("AutoReconnect should default to true")
	}
	if cfg.Stream.EnableHeartbeat == nil || !*cfg.Stream.EnableHeartbeat {
		t.Error("EnableHeartbeat should default to true")
	}
	if cfg.Stream.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("ReconnectDelay = %v, want %v", cfg.Stream.ReconnectDelay, DefaultReconnectDelay)
	}
	if cfg.Stream.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("HeartbeatInterval = %v, want %v", cfg.Stream.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Stream.AckTimeout != 10*time.Second {
		t.Errorf("AckTimeout = %v, want 10s", cfg.Stream.AckTimeout)
	}
	if cfg.Writer.BatchSize != DefaultBatchSize {
		t.Errorf("Writer.BatchSize = %d, want %d", cfg.Writer.BatchSize, DefaultBatchSize)
	}
	if cfg.Stats.Port != DefaultStatsPort {
		t.Errorf("Stats.Port = %d, want %d", cfg.Stats.Port, DefaultStatsPort)
	}
}

func TestExplicitFalseNotOverridden(t *testing.T) {
	yaml := `
instance:
  id: test-watcher
stream:
  url: wss://stream.example.com/ws
  auto_reconnect: false
  enable_heartbeat: false
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Stream.AutoReconnect == nil || *cfg.Stream.AutoReconnect {
		t.Error("explicit auto_reconnect: false was overridden by defaults")
	}
	if cfg.Stream.EnableHeartbeat == nil || *cfg.Stream.EnableHeartbeat {
		t.Error("explicit enable_heartbeat: false was overridden by defaults")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing stream url",
			mutate:  func(c *Config) { c.Stream.URL = "" },
			wantErr: "stream.url is required",
		},
		{
			name:    "non-websocket url",
			mutate:  func(c *Config) { c.Stream.URL = "https://stream.example.com" },
			wantErr: "stream.url must be a ws:// or wss:// URL",
		},
		{
			name:    "backoff factor below one",
			mutate:  func(c *Config) { c.Stream.BackoffFactor = 0.5 },
			wantErr: "stream.backoff_factor must be >= 1",
		},
		{
			name: "channel without symbols",
			mutate: func(c *Config) {
				c.Stream.Channels = []ChannelConfig{{Name: "quotes"}}
			},
			wantErr: "has no symbols",
		},
		{
			name: "persistence without password",
			mutate: func(c *Config) {
				c.Database.Postgres.Host = "localhost"
				c.Database.Postgres.Name = "db"
				c.Database.Postgres.User = "u"
			},
			wantErr: "database.postgres.password is required",
		},
		{
			name:    "bad stats port",
			mutate:  func(c *Config) { c.Stats.Port = 70000 },
			wantErr: "stats.port must be between",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Instance: InstanceConfig{ID: "test"},
				Stream:   StreamConfig{URL: "wss://stream.example.com/ws"},
			}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := &Config{
		Instance: InstanceConfig{ID: "test"},
		Stream: StreamConfig{
			URL: "wss://stream.example.com/ws",
			Channels: []ChannelConfig{
				{Name: "quotes", Symbols: []string{"AAPL"}},
			},
		},
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/streamwatch.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
