package writer

import (
	"math"
	"time"
)

// WriterConfig contains configuration for the batch writer.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// quoteRow represents a row to be inserted into the quotes table.
type quoteRow struct {
	QuoteTs       int64 // Exchange timestamp, epoch milliseconds
	ReceivedAt    int64 // Microseconds
	Symbol        string
	Price         int64 // Ten-thousandths of a dollar
	Change        int64 // Ten-thousandths, may be negative
	ChangePercent float64
	Volume        int64
	Instance      string
}

// WriterMetrics holds counters for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

// priceToInternal converts a dollar price to internal integer format
// (ten-thousandths: 184.52 -> 1845200).
func priceToInternal(dollars float64) int64 {
	// Round to avoid floating point drift (184.52 * 10000 = 1845199.999...)
	return int64(math.Round(dollars * 10000))
}
