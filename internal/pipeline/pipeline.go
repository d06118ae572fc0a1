// Package pipeline wires the EPF components into a single-threaded pull
// pipeline: bytes → scanner → header extractor (once) → row decoder → type
// coercion → batcher → sink. Ordering is implicit and total; there is no
// shared mutable state and no locking.
package pipeline

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/epforge/epforge/internal/batch"
	"github.com/epforge/epforge/internal/coerce"
	"github.com/epforge/epforge/internal/decode"
	"github.com/epforge/epforge/internal/dedupe"
	eperrors "github.com/epforge/epforge/internal/errors"
	"github.com/epforge/epforge/internal/header"
	"github.com/epforge/epforge/internal/progress"
	"github.com/epforge/epforge/internal/scan"
	"github.com/epforge/epforge/internal/sink"
	"github.com/epforge/epforge/pkg/types"
)

// minSkipSample is the number of data lines that must be seen before the
// skip-ratio guard can trip, so a few leading bad lines cannot abort a run.
const minSkipSample = 1000

// Options configures a run.
type Options struct {
	// BatchSize is the maximum rows per batch; zero selects the default.
	BatchSize int

	// MaxSkipRatio aborts the run when skipped/(accepted+skipped) exceeds
	// it, protecting against a systematically misparsed file. Zero disables
	// the guard.
	MaxSkipRatio float64

	// ProgressInterval is the minimum time between progress log lines.
	// Zero selects the default; negative disables progress logging.
	ProgressInterval time.Duration

	// DedupeExpectedRows sizes the duplicate-key bloom filter. Zero
	// disables duplicate detection.
	DedupeExpectedRows int

	// DedupeTargetFPR is the duplicate filter's target false positive rate.
	DedupeTargetFPR float64
}

// Report summarizes a completed (or aborted) run.
type Report struct {
	Schema        *types.Schema
	Rows          int64
	Batches       int64
	Skipped       int64
	DuplicateKeys int64
	BytesRead     int64
}

// Pipeline converts one EPF stream. It is single-use: the source cannot be
// rewound, so a failed run must be restarted from a fresh stream.
type Pipeline struct {
	scanner   *scan.Scanner
	opts      Options
	hdr       *header.Result
	headerErr error
	extracted bool
}

// New creates a Pipeline reading from r.
func New(r io.Reader, opts Options) *Pipeline {
	return &Pipeline{scanner: scan.NewScanner(r), opts: opts}
}

// Schema extracts the header on first call and returns the schema. The
// caller typically needs it to construct a sink before running. A
// HEADER_INCOMPLETE error is fatal: no data was read.
func (p *Pipeline) Schema() (*types.Schema, error) {
	if !p.extracted {
		p.hdr, p.headerErr = header.Extract(p.scanner)
		p.extracted = true
	}
	if p.headerErr != nil {
		return nil, p.headerErr
	}
	return p.hdr.Schema, nil
}

// Run decodes, coerces, and batches every data line into s. The sink is not
// closed; that remains the caller's responsibility. Recoverable decode
// failures are counted and logged but never halt the stream; sink failures
// and the optional skip-ratio guard abort the run.
func (p *Pipeline) Run(ctx context.Context, s sink.Sink) (*Report, error) {
	schema, err := p.Schema()
	if err != nil {
		return nil, err
	}

	src := &rowSource{
		scanner:      p.scanner,
		decoder:      decode.NewDecoder(schema),
		coercer:      coerce.NewCoercer(schema),
		first:        p.hdr.FirstDataLine,
		maxSkipRatio: p.opts.MaxSkipRatio,
	}
	if p.opts.DedupeExpectedRows > 0 {
		src.keys = dedupe.NewKeyFilter(schema, p.opts.DedupeExpectedRows, p.opts.DedupeTargetFPR)
	}
	if p.opts.ProgressInterval >= 0 {
		src.progress = progress.NewReporter(datasetName(schema), p.opts.ProgressInterval)
	}

	totals, runErr := batch.NewBatcher(s, schema, p.opts.BatchSize).Run(ctx, src)

	report := &Report{
		Schema:    schema,
		Rows:      totals.Rows,
		Batches:   totals.Batches,
		Skipped:   src.skipped,
		BytesRead: p.scanner.BytesRead(),
	}
	if src.keys != nil {
		report.DuplicateKeys = src.keys.Duplicates()
	}
	if runErr != nil {
		return report, runErr
	}

	if src.progress != nil {
		src.progress.Summary(report.Rows, report.Skipped, report.DuplicateKeys, report.BytesRead)
	}
	return report, nil
}

func datasetName(schema *types.Schema) string {
	if schema.Provenance != nil {
		return schema.Provenance.Name
	}
	return "export"
}

// rowSource pulls logical lines, decodes and coerces them, and yields rows
// to the batcher. The buffered first data line from header extraction is
// served before any further scanner read.
type rowSource struct {
	scanner  *scan.Scanner
	decoder  *decode.Decoder
	coercer  *coerce.Coercer
	keys     *dedupe.KeyFilter
	progress *progress.Reporter

	first       []byte
	firstServed bool

	accepted     int64
	skipped      int64
	maxSkipRatio float64
}

// Next returns the next coerced row, skipping malformed lines, or io.EOF at
// end of stream.
func (s *rowSource) Next() (types.Row, error) {
	for {
		var line []byte
		if !s.firstServed {
			line = s.first
			s.firstServed = true
		} else {
			var err error
			line, err = s.scanner.Next()
			if err == io.EOF {
				return nil, io.EOF
			}
			if err != nil {
				return nil, eperrors.NewInternalError("reading data line", err)
			}
		}

		row, err := s.decoder.Decode(line)
		if err != nil {
			s.skipped++
			log.Printf("Skipped line due to bad formatting: %v", err)
			if err := s.checkSkipRatio(); err != nil {
				return nil, err
			}
			continue
		}

		s.coercer.Apply(row)
		if s.keys != nil {
			s.keys.Observe(row)
		}
		s.accepted++
		if s.progress != nil {
			s.progress.Observe(s.accepted, s.skipped, s.scanner.BytesRead())
		}
		return row, nil
	}
}

// checkSkipRatio enforces the optional maximum-skip-ratio guard.
func (s *rowSource) checkSkipRatio() error {
	if s.maxSkipRatio <= 0 {
		return nil
	}
	total := s.accepted + s.skipped
	if total < minSkipSample {
		return nil
	}
	ratio := float64(s.skipped) / float64(total)
	if ratio <= s.maxSkipRatio {
		return nil
	}
	return eperrors.New(eperrors.ErrCategoryDecode, eperrors.CodeSkipRatioExceeded,
		"too many malformed lines, aborting run").WithDetails(map[string]interface{}{
		"skipped": s.skipped,
		"total":   total,
		"ratio":   ratio,
	})
}
