package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stockpulse/stream-data/internal/dispatch"
	"github.com/stockpulse/stream-data/internal/protocol"
)

// StateChangeFunc observes state transitions.
type StateChangeFunc func(old, new State)

type stateChange struct {
	old State
	new State
}

type ackOutcome struct {
	ack protocol.AckData
	err error
}

// Client maintains one logical connection to the streaming server. Create
// instances with New; callers that want a shared client pass the same
// instance around explicitly.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
	registry   *Registry

	mu             sync.Mutex
	state          State
	tr             *transport
	hb             *heartbeat
	attempt        int
	gen            int // connection generation, guards stale goroutines
	reconnectTimer *time.Timer
	connectionID   string
	authenticated  bool

	// Ordered state-change notifications, delivered off the lock
	notifyQueue []stateChange
	notifying   bool

	obsMu     sync.RWMutex
	observers []StateChangeFunc

	pendingMu sync.Mutex
	pending   map[string]chan ackOutcome
}

// New creates a streaming client. It does not connect; call Connect.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = DefaultConfig().AckTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultConfig().DialTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.MaxMissedHeartbeats == 0 {
		cfg.MaxMissedHeartbeats = DefaultConfig().MaxMissedHeartbeats
	}

	return &Client{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatch.New(logger),
		registry:   NewRegistry(),
		state:      StateDisconnected,
		pending:    make(map[string]chan ackOutcome),
	}
}

// Connect starts the connection lifecycle. It is a no-op while connecting
// or connected, and never returns transport errors: open failures feed the
// reconnection policy and surface only through state-change notifications.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	c.cancelReconnectLocked()
	c.attempt = 0
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	go c.dial()
}

// Disconnect closes the connection and stops all retry and heartbeat
// activity. This is the only caller-initiated terminal transition; the
// desired subscription set is kept so a later Connect replays it.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.cancelReconnectLocked()
	c.teardownLocked()
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	c.failPending(ErrClientClosed)
	c.logger.Info("client disconnected")
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers a callback invoked on every transition, in
// registration order, including reconnection-intermediate states.
func (c *Client) OnStateChange(fn StateChangeFunc) {
	c.obsMu.Lock()
	c.observers = append(c.observers, fn)
	c.obsMu.Unlock()
}

// On registers a handler for a message type. Reserved types may be
// observed too: interception augments dispatch, it does not replace it.
func (c *Client) On(msgType string, fn dispatch.Handler) dispatch.HandlerID {
	return c.dispatcher.On(msgType, fn)
}

// Off removes a handler registration.
func (c *Client) Off(msgType string, id dispatch.HandlerID) {
	c.dispatcher.Off(msgType, id)
}

// Subscribe merges symbols into the channel's desired set. When connected
// it sends a subscription request and waits for the correlated ack. When
// not connected the desired state is still recorded and the call resolves
// optimistically (Deferred=true); the next successful connect replays the
// full set.
func (c *Client) Subscribe(ctx context.Context, channel string, symbols []string) (Result, error) {
	c.registry.Add(channel, symbols)

	if !c.isConnected() {
		return Result{Success: true, Subscribed: symbols, Deferred: true}, nil
	}
	return c.request(ctx, channel, protocol.ActionSubscribe, symbols)
}

// Unsubscribe removes symbols from the channel's desired set. When
// connected it sends an unsubscription request; otherwise only the desired
// state is updated.
func (c *Client) Unsubscribe(ctx context.Context, channel string, symbols []string) (Result, error) {
	c.registry.Remove(channel, symbols)

	if !c.isConnected() {
		return Result{Success: true, Unsubscribed: symbols, Deferred: true}, nil
	}
	return c.request(ctx, channel, protocol.ActionUnsubscribe, symbols)
}

// Diagnostics returns a snapshot of client internals.
func (c *Client) Diagnostics() Diagnostics {
	c.mu.Lock()
	d := Diagnostics{
		State:            c.state,
		ConnectionID:     c.connectionID,
		Authenticated:    c.authenticated,
		ReconnectAttempt: c.attempt,
	}
	hb := c.hb
	c.mu.Unlock()

	if hb != nil {
		d.HeartbeatMissed = hb.Missed()
		d.LastPongAt = hb.LastPong()
	}

	c.pendingMu.Lock()
	d.PendingAcks = len(c.pending)
	c.pendingMu.Unlock()

	d.Subscriptions = c.registry.Snapshot()
	return d
}

func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// dial opens a fresh transport and completes the connecting transition.
func (c *Client) dial() {
	tr := newTransport(c.cfg, c.logger)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	err := tr.Connect(ctx)
	cancel()

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnect raced the dial; discard the transport.
		c.mu.Unlock()
		tr.Close()
		return
	}

	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("connect failed", "url", c.cfg.URL, "error", err)
		c.scheduleReconnect()
		return
	}

	c.tr = tr
	c.gen++
	gen := c.gen
	c.attempt = 0
	if c.cfg.EnableHeartbeat && c.cfg.HeartbeatInterval > 0 {
		c.hb = newHeartbeat(c.cfg, c.sendEnvelope, func() {
			tr.fail(ErrStaleConnection)
		}, c.logger)
		c.hb.Start()
	}
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.logger.Info("connected", "url", c.cfg.URL)

	go c.readLoop(tr, gen)
	go c.replay()
}

// readLoop consumes a single transport until it fails or closes.
func (c *Client) readLoop(tr *transport, gen int) {
	for {
		select {
		case err := <-tr.Errors():
			c.handleTransportDown(gen, err)
			return
		case raw, ok := <-tr.Messages():
			if !ok {
				c.handleTransportDown(gen, nil)
				return
			}
			c.handleMessage(raw)
		}
	}
}

// handleTransportDown handles a transport error or close. Caller-initiated
// closes are ignored; everything else consults the reconnection policy.
func (c *Client) handleTransportDown(gen int, err error) {
	c.mu.Lock()
	if c.state == StateClosed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("connection lost", "error", err)
	} else {
		c.logger.Warn("connection closed by server")
	}

	c.failPending(ErrConnectionLost)
	c.scheduleReconnect()
}

// teardownLocked stops the heartbeat and closes the transport. Must be
// called with c.mu held.
func (c *Client) teardownLocked() {
	if c.hb != nil {
		c.hb.Stop()
		c.hb = nil
	}
	if c.tr != nil {
		c.tr.Close()
		c.tr = nil
	}
	c.gen++
	c.connectionID = ""
	c.authenticated = false
}

// scheduleReconnect consults the policy and either arms the retry timer or
// settles in disconnected.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return
	}

	c.attempt++
	delay, exhausted := policyFromConfig(c.cfg).Next(c.attempt)
	if exhausted {
		c.logger.Warn("reconnect attempts exhausted", "attempts", c.attempt-1)
		c.setStateLocked(StateDisconnected)
		return
	}

	c.setStateLocked(StateReconnecting)
	c.logger.Info("scheduling reconnect", "attempt", c.attempt, "delay", delay)

	c.reconnectTimer = time.AfterFunc(delay, c.reconnectFire)
}

func (c *Client) reconnectFire() {
	c.mu.Lock()
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	c.dial()
}

// cancelReconnectLocked stops any armed retry timer. Must be called with
// c.mu held.
func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// replay resends the full desired symbol set for every non-empty channel,
// sequentially in channel order. Replay is idempotent from the server's
// perspective: the full set is sent, never a diff.
func (c *Client) replay() {
	snap := c.registry.Snapshot()
	if len(snap) == 0 {
		return
	}

	channels := make([]string, 0, len(snap))
	for ch := range snap {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	for _, channel := range channels {
		symbols := snap[channel]
		res, err := c.request(context.Background(), channel, protocol.ActionSubscribe, symbols)
		if err != nil {
			c.logger.Warn("replay subscribe failed",
				"channel", channel,
				"symbols", len(symbols),
				"error", err,
			)
			continue
		}
		c.logger.Debug("replayed subscription",
			"channel", channel,
			"symbols", len(symbols),
			"success", res.Success,
			"deferred", res.Deferred,
		)
	}
}

// request sends a subscription envelope and waits for the correlated ack.
func (c *Client) request(ctx context.Context, channel, action string, symbols []string) (Result, error) {
	env, err := protocol.NewEnvelope(protocol.TypeSubscription, channel, protocol.SubscriptionData{
		Action:  action,
		Symbols: symbols,
	})
	if err != nil {
		return Result{}, err
	}

	ch := make(chan ackOutcome, 1)
	c.pendingMu.Lock()
	c.pending[env.ID] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, env.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.sendEnvelope(env); err != nil {
		if errors.Is(err, ErrNotConnected) {
			// Connection dropped between the state check and the write;
			// desired state is already recorded and will be replayed.
			res := Result{Success: true, Deferred: true}
			if action == protocol.ActionSubscribe {
				res.Subscribed = symbols
			} else {
				res.Unsubscribed = symbols
			}
			return res, nil
		}
		return Result{}, err
	}

	timer := time.NewTimer(c.cfg.AckTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-timer.C:
		return Result{}, ErrAckTimeout
	case out := <-ch:
		if out.err != nil {
			return Result{}, out.err
		}
		res := Result{
			Success:      out.ack.Success,
			Subscribed:   out.ack.Subscribed,
			Unsubscribed: out.ack.Unsubscribed,
			Errors:       out.ack.Errors,
		}
		if !out.ack.Success {
			return res, fmt.Errorf("%w: %s", ErrSubscriptionRejected, strings.Join(out.ack.Errors, "; "))
		}
		return res, nil
	}
}

// sendEnvelope serializes and writes an envelope. All sends route through
// here so connection state is always checked before writing.
func (c *Client) sendEnvelope(env protocol.Envelope) error {
	c.mu.Lock()
	tr := c.tr
	st := c.state
	c.mu.Unlock()

	if st != StateConnected || tr == nil {
		return ErrNotConnected
	}

	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return tr.Send(data)
}

// handleMessage decodes and routes one inbound payload. Reserved types are
// intercepted first, then every message (reserved included) reaches caller
// handlers.
func (c *Client) handleMessage(raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		c.logger.Warn("dropping malformed message", "error", err)
		return
	}

	switch env.Type {
	case protocol.TypeConnect:
		c.handleConnectMessage(env)
	case protocol.TypePong:
		c.mu.Lock()
		hb := c.hb
		c.mu.Unlock()
		if hb != nil {
			hb.Pong()
		}
	case protocol.TypePing:
		// Server-initiated ping: answer with a pong carrying the same id.
		pong := protocol.Envelope{
			Type:      protocol.TypePong,
			ID:        env.ID,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := c.sendEnvelope(pong); err != nil {
			c.logger.Debug("failed to answer ping", "error", err)
		}
	case protocol.TypeAck:
		c.resolveAck(env)
	}

	c.dispatcher.Dispatch(env)
}

func (c *Client) handleConnectMessage(env protocol.Envelope) {
	var data protocol.ConnectData
	if err := env.DecodeData(&data); err != nil {
		c.logger.Warn("malformed connect message", "error", err)
		return
	}

	c.mu.Lock()
	c.connectionID = data.ConnectionID
	c.authenticated = data.Authenticated
	c.mu.Unlock()

	c.logger.Info("session established",
		"connection_id", data.ConnectionID,
		"authenticated", data.Authenticated,
	)
}

// resolveAck delivers an ack to the goroutine waiting on its request ID.
func (c *Client) resolveAck(env protocol.Envelope) {
	var ack protocol.AckData
	if err := env.DecodeData(&ack); err != nil {
		c.logger.Warn("malformed ack", "id", env.ID, "error", err)
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[env.ID]
	if ok {
		delete(c.pending, env.ID)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Debug("ack with no pending request", "id", env.ID, "channel", env.Channel)
		return
	}

	select {
	case ch <- ackOutcome{ack: ack}:
	default:
	}
}

// failPending rejects every in-flight request with err.
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan ackOutcome)
	c.pendingMu.Unlock()

	for _, ch := range pending {
		select {
		case ch <- ackOutcome{err: err}:
		default:
		}
	}
}

// setStateLocked transitions the state and queues the notification. Must
// be called with c.mu held; notifications are delivered off the lock by a
// single drainer so observers see transitions in order.
func (c *Client) setStateLocked(new State) {
	old := c.state
	if old == new {
		return
	}
	c.state = new
	c.notifyQueue = append(c.notifyQueue, stateChange{old: old, new: new})
	if !c.notifying {
		c.notifying = true
		go c.drainNotifications()
	}
}

func (c *Client) drainNotifications() {
	for {
		c.mu.Lock()
		if len(c.notifyQueue) == 0 {
			c.notifying = false
			c.mu.Unlock()
			return
		}
		sc := c.notifyQueue[0]
		c.notifyQueue = c.notifyQueue[1:]
		c.mu.Unlock()

		c.obsMu.RLock()
		observers := make([]StateChangeFunc, len(c.observers))
		copy(observers, c.observers)
		c.obsMu.RUnlock()

		for _, fn := range observers {
			fn(sc.old, sc.new)
		}
	}
}
