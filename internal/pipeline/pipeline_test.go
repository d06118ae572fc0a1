package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	eperrors "github.com/epforge/epforge/internal/errors"
	"github.com/epforge/epforge/internal/sink"
	"github.com/epforge/epforge/pkg/types"
)

func epf(lines ...string) string {
	return strings.Join(lines, "\x02\n") + "\x02\n"
}

type collectSink struct {
	batches [][]types.Row
	fail    bool
}

func (c *collectSink) WriteBatch(ctx context.Context, rows []types.Row, schema *types.Schema) (*sink.BatchResult, error) {
	if c.fail {
		return nil, errors.New("disk full")
	}
	c.batches = append(c.batches, rows)
	return &sink.BatchResult{RowsWritten: int64(len(rows))}, nil
}

func (c *collectSink) Close(ctx context.Context) (*sink.Summary, error) {
	return &sink.Summary{}, nil
}

func (c *collectSink) rows() []types.Row {
	var all []types.Row
	for _, b := range c.batches {
		all = append(all, b...)
	}
	return all
}

// quiet disables progress logging in tests.
func quiet(opts Options) Options {
	opts.ProgressInterval = -1
	return opts
}

func TestPipeline_EndToEnd(t *testing.T) {
	input := epf(
		"demo20240101/widgets#id\x01name\x01qty",
		"#dbTypes:INTEGER\x01STRING\x01INTEGER",
		"#primaryKey:id",
		"1\x01Alpha\x0110",
		"2\x01Beta\x01",
		"3\x01Gamma\x01x",
	)

	snk := &collectSink{}
	p := New(strings.NewReader(input), quiet(Options{BatchSize: 2}))

	report, err := p.Run(context.Background(), snk)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Rows != 3 || report.Batches != 2 || report.Skipped != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Schema == nil || report.Schema.Provenance == nil {
		t.Fatal("expected schema with provenance in report")
	}

	rows := snk.rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if v, ok := rows[0]["id"].(int64); !ok || v != 1 {
		t.Errorf("expected coerced id int64(1), got %T %v", rows[0]["id"], rows[0]["id"])
	}
	if rows[1]["qty"] != nil {
		t.Errorf("expected empty qty to be nil, got %v", rows[1]["qty"])
	}
	if rows[2]["qty"] != nil {
		t.Errorf("expected unparseable qty to be nil, got %v", rows[2]["qty"])
	}
	if rows[2]["name"] != "Gamma" {
		t.Errorf("expected name Gamma, got %v", rows[2]["name"])
	}
}

func TestPipeline_MalformedLinesSkipped(t *testing.T) {
	input := epf(
		"demo20240101/widgets#id\x01name",
		"1\x01Alpha",
		"short",
		"2\x01Beta",
		"too\x01many\x01fields",
		"3\x01Gamma",
	)

	snk := &collectSink{}
	report, err := New(strings.NewReader(input), quiet(Options{})).Run(context.Background(), snk)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Rows != 3 {
		t.Errorf("expected 3 accepted rows, got %d", report.Rows)
	}
	if report.Skipped != 2 {
		t.Errorf("expected 2 skipped lines, got %d", report.Skipped)
	}
	// Every data line is either accepted or skipped.
	if report.Rows+report.Skipped != 5 {
		t.Errorf("accepted+skipped should cover all 5 data lines, got %d", report.Rows+report.Skipped)
	}
}

func TestPipeline_HeaderIncomplete(t *testing.T) {
	_, err := New(strings.NewReader(epf("no marker")), quiet(Options{})).Run(context.Background(), &collectSink{})
	if eperrors.GetCode(err) != eperrors.CodeHeaderIncomplete {
		t.Errorf("expected HEADER_INCOMPLETE, got %v", err)
	}
}

func TestPipeline_SchemaBeforeRun(t *testing.T) {
	input := epf(
		"demo20240101/widgets#id\x01name",
		"1\x01Alpha",
	)
	p := New(strings.NewReader(input), quiet(Options{}))

	schema, err := p.Schema()
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	if schema.NumColumns() != 2 {
		t.Errorf("expected 2 columns, got %d", schema.NumColumns())
	}

	// The buffered first data line must still be delivered by Run.
	snk := &collectSink{}
	report, err := p.Run(context.Background(), snk)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Rows != 1 {
		t.Errorf("expected the buffered first line to become a row, got %d rows", report.Rows)
	}
}

func TestPipeline_SinkFailureFatal(t *testing.T) {
	input := epf(
		"demo20240101/widgets#id",
		"1",
		"2",
	)
	report, err := New(strings.NewReader(input), quiet(Options{})).Run(context.Background(), &collectSink{fail: true})
	if err == nil {
		t.Fatal("expected sink failure to abort the run")
	}
	if eperrors.GetCategory(err) != eperrors.ErrCategorySink {
		t.Errorf("expected SINK category, got %s", eperrors.GetCategory(err))
	}
	if report == nil {
		t.Fatal("expected a partial report alongside the error")
	}
}

func TestPipeline_DuplicateKeyDetection(t *testing.T) {
	input := epf(
		"demo20240101/widgets#id\x01name",
		"#primaryKey:id",
		"1\x01a",
		"2\x01b",
		"1\x01c",
		"1\x01d",
	)
	report, err := New(strings.NewReader(input), quiet(Options{
		DedupeExpectedRows: 1000,
		DedupeTargetFPR:    0.001,
	})).Run(context.Background(), &collectSink{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.DuplicateKeys != 2 {
		t.Errorf("expected 2 duplicate keys, got %d", report.DuplicateKeys)
	}
}

func TestPipeline_SkipRatioGuard(t *testing.T) {
	lines := []string{"demo20240101/widgets#id\x01name"}
	for i := 0; i < 1100; i++ {
		lines = append(lines, fmt.Sprintf("bad-line-%d", i))
	}

	_, err := New(strings.NewReader(epf(lines...)), quiet(Options{
		MaxSkipRatio: 0.5,
	})).Run(context.Background(), &collectSink{})
	if eperrors.GetCode(err) != eperrors.CodeSkipRatioExceeded {
		t.Errorf("expected SKIP_RATIO_EXCEEDED, got %v", err)
	}
}

func TestPipeline_SkipRatioGuardDisabledByDefault(t *testing.T) {
	lines := []string{"demo20240101/widgets#id\x01name"}
	for i := 0; i < 1100; i++ {
		lines = append(lines, "bad")
	}

	report, err := New(strings.NewReader(epf(lines...)), quiet(Options{})).Run(context.Background(), &collectSink{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Skipped != 1100 {
		t.Errorf("expected all 1100 lines skipped, got %d", report.Skipped)
	}
}

func TestPipeline_BytesReadReported(t *testing.T) {
	input := epf(
		"demo20240101/widgets#id",
		"1",
	)
	report, err := New(strings.NewReader(input), quiet(Options{})).Run(context.Background(), &collectSink{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.BytesRead != int64(len(input)) {
		t.Errorf("expected %d bytes read, got %d", len(input), report.BytesRead)
	}
}
