// Package database provides the PostgreSQL connection pool used for quote
// persistence. Persistence is optional: streamwatch runs without a
// database when no host is configured.
package database
