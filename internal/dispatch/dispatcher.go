package dispatch

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/stockpulse/stream-data/internal/protocol"
)

// Handler receives the raw payload and the full envelope it arrived in.
type Handler func(data json.RawMessage, env protocol.Envelope)

// HandlerID identifies a registered handler for removal.
type HandlerID int64

// Stats contains dispatcher counters.
type Stats struct {
	Dispatched int64
	Unhandled  int64
	Panics     int64
}

type entry struct {
	id HandlerID
	fn Handler
}

// Dispatcher routes envelopes to handlers by message type.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]entry
	nextID   HandlerID

	statsMu sync.Mutex
	stats   Stats
}

// New creates a Dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[string][]entry),
	}
}

// On registers a handler for a message type. Handlers run in registration
// order. The returned ID removes this registration via Off.
func (d *Dispatcher) On(msgType string, fn Handler) HandlerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.handlers[msgType] = append(d.handlers[msgType], entry{id: id, fn: fn})
	return id
}

// Off removes a handler registration. Removing an unknown ID is a no-op.
func (d *Dispatcher) Off(msgType string, id HandlerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.handlers[msgType]
	for i, e := range entries {
		if e.id == id {
			d.handlers[msgType] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(d.handlers[msgType]) == 0 {
		delete(d.handlers, msgType)
	}
}

// HandlerCount returns the number of handlers registered for a type.
func (d *Dispatcher) HandlerCount(msgType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[msgType])
}

// Dispatch invokes every handler registered for the envelope's type, in
// registration order. A panic in one handler is recovered and logged so the
// remaining handlers still run.
func (d *Dispatcher) Dispatch(env protocol.Envelope) {
	d.mu.RLock()
	entries := make([]entry, len(d.handlers[env.Type]))
	copy(entries, d.handlers[env.Type])
	d.mu.RUnlock()

	if len(entries) == 0 {
		d.statsMu.Lock()
		d.stats.Unhandled++
		d.statsMu.Unlock()
		return
	}

	for _, e := range entries {
		d.invoke(e, env)
	}

	d.statsMu.Lock()
	d.stats.Dispatched++
	d.statsMu.Unlock()
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.stats
}

func (d *Dispatcher) invoke(e entry, env protocol.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.statsMu.Lock()
			d.stats.Panics++
			d.statsMu.Unlock()
			d.logger.Warn("handler panicked",
				"type", env.Type,
				"handler", e.id,
				"panic", r,
			)
		}
	}()

	e.fn(env.Data, env)
}
