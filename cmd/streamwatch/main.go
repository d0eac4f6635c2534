package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpulse/stream-data/internal/config"
	"github.com/stockpulse/stream-data/internal/database"
	"github.com/stockpulse/stream-data/internal/feed"
	"github.com/stockpulse/stream-data/internal/protocol"
	"github.com/stockpulse/stream-data/internal/stream"
	"github.com/stockpulse/stream-data/internal/version"
	"github.com/stockpulse/stream-data/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/streamwatch.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"stream_url", cfg.Stream.URL,
		"channels", len(cfg.Stream.Channels),
		"persistence", cfg.PersistenceEnabled(),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database and start the quote writer when persistence is on
	var (
		pool     *pgxpool.Pool
		quoteBuf *feed.Buffer[feed.QuoteEvent]
		quoteWr  *writer.QuoteWriter
	)
	if cfg.PersistenceEnabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err = database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		logger.Info("database connected")

		quoteBuf = feed.NewBuffer[feed.QuoteEvent](cfg.Writer.BufferSize)
		quoteWr = writer.NewQuoteWriter(
			writer.WriterConfig{
				BatchSize:     cfg.Writer.BatchSize,
				FlushInterval: cfg.Writer.FlushInterval,
			},
			cfg.Instance.ID,
			quoteBuf,
			pool,
			logger,
		)
		if err := quoteWr.Start(ctx); err != nil {
			logger.Error("failed to start quote writer", "error", err)
			os.Exit(1)
		}
	}

	// Create the streaming client
	client := stream.New(streamConfig(cfg.Stream), logger)

	client.OnStateChange(func(old, new stream.State) {
		logger.Info("stream state changed", "from", old, "to", new)
	})

	client.On(protocol.TypeQuoteUpdate, func(data json.RawMessage, env protocol.Envelope) {
		var q protocol.QuoteUpdate
		if err := json.Unmarshal(data, &q); err != nil {
			logger.Warn("bad quote payload", "error", err, "id", env.ID)
			return
		}
		logger.Debug("quote",
			"symbol", q.Symbol,
			"price", q.Price,
			"change_pct", q.ChangePercent,
		)
		if quoteBuf != nil {
			quoteBuf.Send(feed.QuoteEvent{Quote: q, ReceivedAt: time.Now()})
		}
	})

	client.On(protocol.TypeAnalysisProgress, func(data json.RawMessage, env protocol.Envelope) {
		var p protocol.AnalysisProgress
		if err := json.Unmarshal(data, &p); err != nil {
			logger.Warn("bad analysis payload", "error", err, "id", env.ID)
			return
		}
		logger.Info("analysis progress",
			"task", p.TaskID,
			"symbol", p.Symbol,
			"stage", p.Stage,
			"progress", p.Progress,
		)
	})

	// Queue initial subscriptions before connecting; they replay once the
	// connection is up.
	for _, ch := range cfg.Stream.Channels {
		res, err := client.Subscribe(ctx, ch.Name, ch.Symbols)
		if err != nil {
			logger.Error("initial subscribe failed", "channel", ch.Name, "error", err)
			os.Exit(1)
		}
		logger.Info("subscription queued",
			"channel", ch.Name,
			"symbols", len(ch.Symbols),
			"deferred", res.Deferred,
		)
	}

	client.Connect()
	defer client.Disconnect()

	// Stats server
	statsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Stats.Port),
		Handler: createStatsHandler(cfg, client, quoteBuf, quoteWr, pool),
	}

	go func() {
		logger.Info("starting stats server", "port", cfg.Stats.Port, "path", cfg.Stats.Path)
		if err := statsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("stats server error", "error", err)
		}
	}()

	logger.Info("streamwatch running",
		"instance_id", cfg.Instance.ID,
		"stats_url", fmt.Sprintf("http://localhost:%d%s", cfg.Stats.Port, cfg.Stats.Path),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	client.Disconnect()

	if quoteWr != nil {
		quoteBuf.Close()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		quoteWr.Stop(shutdownCtx)
		shutdownCancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	statsServer.Shutdown(shutdownCtx)

	logger.Info("streamwatch stopped")
}

// streamConfig maps the YAML stream section onto the client config.
func streamConfig(sc config.StreamConfig) stream.Config {
	cfg := stream.DefaultConfig()
	cfg.URL = sc.URL
	cfg.AuthToken = sc.AuthToken

	if sc.AutoReconnect != nil {
		cfg.AutoReconnect = *sc.AutoReconnect
	}
	cfg.ReconnectDelay = sc.ReconnectDelay
	cfg.BackoffFactor = sc.BackoffFactor
	cfg.MaxReconnectDelay = sc.MaxReconnectDelay
	cfg.MaxReconnectAttempts = sc.MaxReconnectAttempts

	if sc.EnableHeartbeat != nil {
		cfg.EnableHeartbeat = *sc.EnableHeartbeat
	}
	cfg.HeartbeatInterval = sc.HeartbeatInterval
	cfg.MaxMissedHeartbeats = sc.MaxMissedHeartbeats

	cfg.AckTimeout = sc.AckTimeout
	cfg.BufferSize = sc.BufferSize
	return cfg
}

// createStatsHandler creates the HTTP handler for the diagnostics endpoint.
func createStatsHandler(
	cfg *config.Config,
	client *stream.Client,
	quoteBuf *feed.Buffer[feed.QuoteEvent],
	quoteWr *writer.QuoteWriter,
	pool *pgxpool.Pool,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(cfg.Stats.Path, func(w http.ResponseWriter, r *http.Request) {
		d := client.Diagnostics()

		stats := struct {
			Instance string                 `json:"instance"`
			Version  string                 `json:"version"`
			Stream   map[string]interface{} `json:"stream"`
			Feed     interface{}            `json:"feed,omitempty"`
			Writer   interface{}            `json:"writer,omitempty"`
		}{
			Instance: cfg.Instance.ID,
			Version:  version.String(),
			Stream: map[string]interface{}{
				"state":             d.State,
				"connection_id":     d.ConnectionID,
				"authenticated":     d.Authenticated,
				"reconnect_attempt": d.ReconnectAttempt,
				"pending_acks":      d.PendingAcks,
				"subscriptions":     d.Subscriptions,
				"heartbeat_missed":  d.HeartbeatMissed,
				"last_pong_at":      d.LastPongAt,
			},
		}
		if quoteBuf != nil {
			stats.Feed = quoteBuf.Stats()
		}
		if quoteWr != nil {
			stats.Writer = quoteWr.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		d := client.Diagnostics()
		health.Components["stream"] = string(d.State)
		if d.State != stream.StateConnected {
			health.Status = "degraded"
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
