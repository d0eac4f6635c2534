// Package writer implements the batch quote writer.
//
// The writer consumes quote events from the feed buffer, accumulates them
// into batches, and inserts them into PostgreSQL with append-only
// semantics (never update, only insert). Prices are stored as integer
// ten-thousandths of a dollar for sub-penny precision.
package writer
