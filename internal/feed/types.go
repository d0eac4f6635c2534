package feed

import (
	"time"

	"github.com/stockpulse/stream-data/internal/protocol"
)

// QuoteEvent is a quote update paired with the local receive time,
// queued for the quote writer.
type QuoteEvent struct {
	Quote      protocol.QuoteUpdate
	ReceivedAt time.Time
}
