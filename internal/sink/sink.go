// Package sink persists finished batches to columnar storage. The pipeline
// is agnostic to the physical format; implementations choose encoding,
// compression, and file naming.
package sink

import (
	"context"

	"github.com/epforge/epforge/pkg/types"
)

// BatchResult reports the outcome of a single batch handoff.
type BatchResult struct {
	RowsWritten int64
}

// Summary describes the finished output produced by a sink after Close.
type Summary struct {
	Path      string
	Rows      int64
	SizeBytes int64
}

// Sink accepts ordered row batches and persists them. Ownership of the rows
// slice transfers to the sink on WriteBatch; the caller must not read or
// mutate it afterwards. Batches arrive in input order from a single
// goroutine.
type Sink interface {
	WriteBatch(ctx context.Context, rows []types.Row, schema *types.Schema) (*BatchResult, error)

	// Close finalizes the output. The sink is unusable afterwards.
	Close(ctx context.Context) (*Summary, error)
}
