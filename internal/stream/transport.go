package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// transport wraps a single WebSocket connection behind an
// open/message/error/close surface. The client owns the transport
// exclusively; a fresh transport is created for every connection attempt.
type transport struct {
	cfg    Config
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	messages chan []byte
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.RWMutex
	connected bool
	closed    bool
}

func newTransport(cfg Config, logger *slog.Logger) *transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &transport{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan []byte, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials the server and starts the read pump.
func (t *transport) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("Accept", "application/json")
	if t.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+t.cfg.AuthToken)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	go t.readPump()

	t.logger.Debug("websocket connected", "url", t.cfg.URL)
	return nil
}

// Close gracefully closes the connection. Safe to call more than once.
func (t *transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	conn := t.conn
	t.mu.Unlock()

	close(t.done)

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}

// Send writes raw bytes to the connection. A write failure tears the
// transport down and surfaces through Errors, so the caller sees the same
// path as a close event.
func (t *transport) Send(data []byte) error {
	t.mu.RLock()
	if !t.connected {
		t.mu.RUnlock()
		return ErrNotConnected
	}
	conn := t.conn
	t.mu.RUnlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.fail(err)
		return err
	}
	return nil
}

// Messages returns the inbound message channel.
func (t *transport) Messages() <-chan []byte {
	return t.messages
}

// Errors returns the connection error channel.
func (t *transport) Errors() <-chan error {
	return t.errors
}

// IsConnected returns the current connection state.
func (t *transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// fail marks the transport disconnected and reports err. Used for write
// failures and forced closes; the read pump reports read failures the
// same way.
func (t *transport) fail(err error) {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()

	select {
	case t.errors <- err:
	default:
	}
}

// readPump reads messages from the WebSocket into the messages channel.
// It closes the channel on exit so consumers blocked on Messages always
// observe the teardown, including caller-initiated closes.
func (t *transport) readPump() {
	defer close(t.messages)

	for {
		select {
		case <-t.done:
			return
		default:
		}

		_, data, err := t.conn.ReadMessage()
		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-t.done:
			default:
				t.fail(err)
			}
			return
		}

		select {
		case t.messages <- data:
		case <-t.done:
			return
		default:
			t.logger.Warn("message buffer full, dropping message")
		}
	}
}
