// Package batch groups coerced rows into fixed-size batches and hands them
// to the columnar sink.
package batch

import (
	"context"
	"io"

	eperrors "github.com/epforge/epforge/internal/errors"
	"github.com/epforge/epforge/internal/sink"
	"github.com/epforge/epforge/pkg/types"
)

// DefaultBatchSize is the number of rows per batch when none is configured.
const DefaultBatchSize = 50000

// RowSource yields coerced rows one at a time. Next returns io.EOF after
// the final row.
type RowSource interface {
	Next() (types.Row, error)
}

// Totals reports what the batcher handed off across a run.
type Totals struct {
	Rows    int64
	Batches int64
}

// Batcher pulls rows from a RowSource and flushes them to the sink in
// batches of at most size rows.
type Batcher struct {
	sink   sink.Sink
	schema *types.Schema
	size   int
}

// NewBatcher creates a Batcher writing to s. A size of zero or less selects
// DefaultBatchSize.
func NewBatcher(s sink.Sink, schema *types.Schema, size int) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{sink: s, schema: schema, size: size}
}

// Run pulls rows from src until end of stream, handing each full batch and
// the final partial batch to the sink in order. A sink failure halts the
// run immediately; rows confirmed by prior batches stand. No partial-write
// recovery is attempted.
func (b *Batcher) Run(ctx context.Context, src RowSource) (Totals, error) {
	var totals Totals
	rows := make([]types.Row, 0, b.size)

	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		res, err := b.sink.WriteBatch(ctx, rows, b.schema)
		if err != nil {
			return eperrors.NewSinkError("batch write failed", err)
		}
		totals.Rows += res.RowsWritten
		totals.Batches++
		// Ownership of the slice transferred to the sink; start a fresh one.
		rows = make([]types.Row, 0, b.size)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return totals, err
		}

		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return totals, err
		}

		rows = append(rows, row)
		if len(rows) >= b.size {
			if err := flush(); err != nil {
				return totals, err
			}
		}
	}

	return totals, flush()
}
