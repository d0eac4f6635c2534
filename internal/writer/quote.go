package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stockpulse/stream-data/internal/feed"
)

// quoteStore is the subset of pgxpool.Pool the writer needs.
type quoteStore interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// QuoteWriter consumes QuoteEvents from the feed buffer and writes to the
// quotes table.
type QuoteWriter struct {
	cfg      WriterConfig
	instance string
	logger   *slog.Logger

	// Input from stream handlers
	input *feed.Buffer[feed.QuoteEvent]

	// Database
	db quoteStore

	// Batching
	batch       []quoteRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewQuoteWriter creates a new QuoteWriter. The instance tag is stored
// alongside every row so overlapping gatherers can be told apart.
func NewQuoteWriter(
	cfg WriterConfig,
	instance string,
	input *feed.Buffer[feed.QuoteEvent],
	db quoteStore,
	logger *slog.Logger,
) *QuoteWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteWriter{
		cfg:      cfg,
		instance: instance,
		input:    input,
		db:       db,
		logger:   logger,
		batch:    make([]quoteRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (w *QuoteWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("quote writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *QuoteWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping quote writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("quote writer stop timed out")
	}

	// Drain whatever is still queued in the feed buffer, then flush with
	// the caller's context: w.ctx is already cancelled and would drop the
	// final partial batch.
	remaining := w.input.DrainTo(0)
	if len(remaining) > 0 {
		w.batchMu.Lock()
		for _, ev := range remaining {
			w.batch = append(w.batch, w.transform(ev))
		}
		w.batchMu.Unlock()
	}
	w.flush(ctx)

	w.logger.Info("quote writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *QuoteWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *QuoteWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			ev, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.handleEvent(ev)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *QuoteWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleEvent transforms and adds an event to the batch.
func (w *QuoteWriter) handleEvent(ev feed.QuoteEvent) {
	row := w.transform(ev)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts a QuoteEvent to a quoteRow.
func (w *QuoteWriter) transform(ev feed.QuoteEvent) quoteRow {
	return quoteRow{
		QuoteTs:       ev.Quote.Timestamp,
		ReceivedAt:    ev.ReceivedAt.UnixMicro(),
		Symbol:        ev.Quote.Symbol,
		Price:         priceToInternal(ev.Quote.Price),
		Change:        priceToInternal(ev.Quote.Change),
		ChangePercent: ev.Quote.ChangePercent,
		Volume:        ev.Quote.Volume,
		Instance:      w.instance,
	}
}

// flush writes the current batch to the database.
func (w *QuoteWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]quoteRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed quotes",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *QuoteWriter) batchInsert(ctx context.Context, rows []quoteRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO quotes (quote_ts, received_at, symbol, price, change, change_percent, volume, instance)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, quote_ts) DO NOTHING
		`, r.QuoteTs, r.ReceivedAt, r.Symbol, r.Price, r.Change, r.ChangePercent, r.Volume, r.Instance)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
