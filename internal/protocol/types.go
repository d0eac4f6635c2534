package protocol

import "encoding/json"

// Reserved message types. The streaming client intercepts these before
// caller handlers run; caller handlers registered for them still receive
// the message afterward.
const (
	TypeConnect      = "connect"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeAck          = "ack"
	TypeSubscription = "subscription"
)

// Well-known data message types.
const (
	TypeQuoteUpdate      = "quote_update"
	TypeAnalysisProgress = "analysis_progress"
)

// Subscription actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Envelope is the wire message wrapper. Data stays raw until a consumer
// decodes it into a typed payload. Envelopes are immutable once built;
// ID correlates outbound requests with their acks.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ConnectData is the payload of the server's connect message, delivered
// once after the transport opens.
type ConnectData struct {
	ConnectionID  string `json:"connectionId"`
	Authenticated bool   `json:"authenticated"`
}

// SubscriptionData is the payload of a client subscription request.
type SubscriptionData struct {
	Action  string   `json:"action"` // "subscribe" or "unsubscribe"
	Symbols []string `json:"symbols"`
}

// AckData is the payload of a server ack, correlated with the originating
// request by envelope ID and tagged with its channel.
type AckData struct {
	Success      bool     `json:"success"`
	Subscribed   []string `json:"subscribed,omitempty"`
	Unsubscribed []string `json:"unsubscribed,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// QuoteUpdate is the payload of a quote_update message.
type QuoteUpdate struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        int64   `json:"volume"`
	Timestamp     int64   `json:"timestamp"` // epoch milliseconds
}

// AnalysisProgress is the payload of an analysis_progress message.
type AnalysisProgress struct {
	TaskID   string  `json:"taskId"`
	Symbol   string  `json:"symbol"`
	Stage    string  `json:"stage"`
	Progress float64 `json:"progress"` // 0.0 - 1.0
	Message  string  `json:"message,omitempty"`
}
