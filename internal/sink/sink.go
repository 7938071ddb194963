// Package sink defines the storage contract extracted rows are handed off
// to. The contract itself is out of scope for this module; only the
// interface and one reference implementation (sqlitesink) live here.
package sink

import "context"

// Sink accepts batches of rows keyed by table name. Implementations decide
// how a row's columns map onto storage; the extractor only ever produces
// []map[string]any rows and never opens a connection itself.
type Sink interface {
	UpsertBatch(ctx context.Context, table string, rows []map[string]any) error
}
