package header

import (
	"strings"
	"testing"

	eperrors "github.com/epforge/epforge/internal/errors"
	"github.com/epforge/epforge/internal/scan"
)

// epf joins logical lines with the EPF record terminator, terminating the
// final line as well.
func epf(lines ...string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\x02\n") + "\x02\n"
}

func extract(t *testing.T, input string) *Result {
	t.Helper()
	res, err := Extract(scan.NewScanner(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return res
}

func TestExtract_FullHeader(t *testing.T) {
	res := extract(t, epf(
		"demo20240101/widgets#id\x01name\x01qty",
		"#dbTypes:INTEGER\x01STRING\x01INTEGER",
		"#primaryKey:id",
		"#exportMode:FULL",
		"1\x01Alpha\x01",
	))

	schema := res.Schema
	if got := strings.Join(schema.ColumnNames, ","); got != "id,name,qty" {
		t.Errorf("expected columns id,name,qty, got %s", got)
	}
	if got := strings.Join(schema.DeclaredTypes, ","); got != "INTEGER,STRING,INTEGER" {
		t.Errorf("expected types INTEGER,STRING,INTEGER, got %s", got)
	}
	if got := strings.Join(schema.PrimaryKeys, ","); got != "id" {
		t.Errorf("expected primary key id, got %s", got)
	}
	if schema.ExportMode != "FULL" {
		t.Errorf("expected export mode FULL, got %s", schema.ExportMode)
	}

	p := schema.Provenance
	if p == nil {
		t.Fatal("expected provenance")
	}
	if p.Group != "demo" || p.Name != "widgets" {
		t.Errorf("expected demo/widgets, got %s/%s", p.Group, p.Name)
	}
	if p.Year != "2024" || p.Month != "01" || p.Day != "01" {
		t.Errorf("expected date 2024-01-01, got %s-%s-%s", p.Year, p.Month, p.Day)
	}

	if string(res.FirstDataLine) != "1\x01Alpha\x01" {
		t.Errorf("expected first data line preserved, got %q", res.FirstDataLine)
	}
}

func TestExtract_SkipsFramingLinesBeforeMarker(t *testing.T) {
	res := extract(t, epf(
		"",
		"noise",
		"demo20240101/widgets#a\x01b",
		"x\x01y",
	))
	if got := strings.Join(res.Schema.ColumnNames, ","); got != "a,b" {
		t.Errorf("expected columns a,b, got %s", got)
	}
}

func TestExtract_NoProvenance(t *testing.T) {
	res := extract(t, epf(
		"JUNK#a\x01b",
		"1\x012",
	))
	if res.Schema.Provenance != nil {
		t.Errorf("expected no provenance, got %+v", res.Schema.Provenance)
	}
	if len(res.Schema.ColumnNames) != 2 {
		t.Errorf("expected parsing to continue without provenance")
	}
}

func TestExtract_UnrecognizedDirectiveIgnored(t *testing.T) {
	res := extract(t, epf(
		"demo20240101/widgets#a",
		"#rowCount:42",
		"#nocolon",
		"v",
	))
	schema := res.Schema
	if len(schema.PrimaryKeys) != 0 || len(schema.DeclaredTypes) != 0 || schema.ExportMode != "" {
		t.Errorf("unrecognized directives must not modify the schema: %+v", schema)
	}
	if string(res.FirstDataLine) != "v" {
		t.Errorf("expected first data line v, got %q", res.FirstDataLine)
	}
}

func TestExtract_EmptyFirstDataLinePreserved(t *testing.T) {
	res := extract(t, epf(
		"demo20240101/widgets#a",
		"",
	))
	if len(res.FirstDataLine) != 0 {
		t.Errorf("expected empty first data line, got %q", res.FirstDataLine)
	}
}

func TestExtract_EOFBeforeMarker(t *testing.T) {
	_, err := Extract(scan.NewScanner(strings.NewReader(epf("no marker here"))))
	if err == nil {
		t.Fatal("expected HeaderIncomplete error")
	}
	if eperrors.GetCode(err) != eperrors.CodeHeaderIncomplete {
		t.Errorf("expected code %s, got %s", eperrors.CodeHeaderIncomplete, eperrors.GetCode(err))
	}
}

func TestExtract_EOFAfterMarkerBeforeData(t *testing.T) {
	_, err := Extract(scan.NewScanner(strings.NewReader(epf(
		"demo20240101/widgets#a\x01b",
		"#primaryKey:a",
	))))
	if err == nil {
		t.Fatal("expected HeaderIncomplete error")
	}
	if eperrors.GetCode(err) != eperrors.CodeHeaderIncomplete {
		t.Errorf("expected code %s, got %s", eperrors.CodeHeaderIncomplete, eperrors.GetCode(err))
	}
}

func TestExtract_EmptyStream(t *testing.T) {
	_, err := Extract(scan.NewScanner(strings.NewReader("")))
	if eperrors.GetCode(err) != eperrors.CodeHeaderIncomplete {
		t.Errorf("expected code %s, got %v", eperrors.CodeHeaderIncomplete, err)
	}
}

func TestExtract_ColumnListMayContainHash(t *testing.T) {
	// Only the first '#' splits the marker line.
	res := extract(t, epf(
		"demo20240101/widgets#a#b\x01c",
		"v\x01w",
	))
	if got := strings.Join(res.Schema.ColumnNames, ","); got != "a#b,c" {
		t.Errorf("expected columns a#b,c, got %s", got)
	}
}
