package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/stockpulse/stream-data/internal/protocol"
)

// heartbeat sends envelope-level pings on a fixed interval and forces the
// connection closed when too many go unanswered. It is the only component
// allowed to proactively tear down a healthy-looking transport; the
// teardown routes through the same error path as a genuine failure so
// reconnection applies uniformly.
type heartbeat struct {
	interval  time.Duration
	maxMissed int
	send      func(protocol.Envelope) error
	onStale   func()
	logger    *slog.Logger

	mu         sync.Mutex
	missed     int
	lastPongAt time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

func newHeartbeat(cfg Config, send func(protocol.Envelope) error, onStale func(), logger *slog.Logger) *heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	return &heartbeat{
		interval:   cfg.HeartbeatInterval,
		maxMissed:  cfg.MaxMissedHeartbeats,
		send:       send,
		onStale:    onStale,
		logger:     logger,
		lastPongAt: time.Now(),
		stop:       make(chan struct{}),
	}
}

// Start begins the ping loop.
func (h *heartbeat) Start() {
	go h.run()
}

// Stop ends the ping loop. After Stop no forced close can occur.
func (h *heartbeat) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// Pong records a received pong, resetting the missed counter.
func (h *heartbeat) Pong() {
	h.mu.Lock()
	h.missed = 0
	h.lastPongAt = time.Now()
	h.mu.Unlock()
}

// Missed returns the current missed-pong count.
func (h *heartbeat) Missed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.missed
}

// LastPong returns the time of the last received pong.
func (h *heartbeat) LastPong() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastPongAt
}

func (h *heartbeat) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.mu.Lock()
			missed := h.missed
			lastPong := h.lastPongAt
			h.mu.Unlock()

			if missed >= h.maxMissed {
				h.logger.Warn("heartbeat missed, forcing close",
					"missed", missed,
					"last_pong", lastPong,
				)
				h.onStale()
				return
			}

			env, err := protocol.NewEnvelope(protocol.TypePing, "", nil)
			if err == nil {
				err = h.send(env)
			}
			if err != nil {
				// Send failures surface through the transport error path.
				h.logger.Debug("failed to send ping", "error", err)
				continue
			}

			h.mu.Lock()
			h.missed++
			h.mu.Unlock()
		}
	}
}
