package stream

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected         = errors.New("not connected")
	ErrClientClosed         = errors.New("client closed")
	ErrConnectionLost       = errors.New("connection lost")
	ErrAckTimeout           = errors.New("ack timeout")
	ErrStaleConnection      = errors.New("connection stale (missed heartbeats)")
	ErrSubscriptionRejected = errors.New("subscription rejected")
)

// State is the connection lifecycle state. All transitions are owned by
// the client; Closed is only reachable via Disconnect, never via retry
// exhaustion (which settles in Disconnected).
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Config configures a streaming client.
type Config struct {
	URL       string // WebSocket URL (e.g., wss://stream.stockpulse.io/ws)
	AuthToken string // Bearer token attached at connect time ("" = anonymous)

	AutoReconnect        bool
	ReconnectDelay       time.Duration // base delay between attempts
	BackoffFactor        float64       // 1 = fixed delay, >1 = exponential
	MaxReconnectDelay    time.Duration // backoff cap
	MaxReconnectAttempts int           // 0 = unlimited

	EnableHeartbeat     bool
	HeartbeatInterval   time.Duration
	MaxMissedHeartbeats int // forced close after this many unanswered pings

	AckTimeout   time.Duration // subscribe/unsubscribe ack wait
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int // inbound message channel buffer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AutoReconnect:        true,
		ReconnectDelay:       1 * time.Second,
		BackoffFactor:        2,
		MaxReconnectDelay:    60 * time.Second,
		MaxReconnectAttempts: 0,
		EnableHeartbeat:      true,
		HeartbeatInterval:    30 * time.Second,
		MaxMissedHeartbeats:  2,
		AckTimeout:           10 * time.Second,
		DialTimeout:          10 * time.Second,
		WriteTimeout:         5 * time.Second,
		BufferSize:           1000,
	}
}

// Result is the outcome of a Subscribe or Unsubscribe call.
type Result struct {
	Success      bool
	Subscribed   []string
	Unsubscribed []string
	Errors       []string

	// Deferred is true when the call was made while disconnected: the
	// desired state was recorded and will be replayed on the next
	// successful connect.
	Deferred bool
}

// Diagnostics is a read-only snapshot of client internals, exposed for
// observability and tests instead of structural access to private fields.
type Diagnostics struct {
	State            State
	ConnectionID     string
	Authenticated    bool
	ReconnectAttempt int
	PendingAcks      int
	Subscriptions    map[string][]string
	HeartbeatMissed  int
	LastPongAt       time.Time
}
