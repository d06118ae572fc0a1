// Package header recovers the embedded EPF schema from the leading lines of
// a stream. The format emits a marker line carrying the column names, then
// zero or more #key:value metadata directives, then data lines. Because the
// source cannot be rewound, the first data line encountered is buffered and
// handed back to the caller along with the schema.
package header

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	eperrors "github.com/epforge/epforge/internal/errors"
	"github.com/epforge/epforge/internal/scan"
	"github.com/epforge/epforge/pkg/types"
)

// state tracks header parsing progress.
type state int

const (
	// stateSeekingMarker discards framing lines until the marker line.
	stateSeekingMarker state = iota
	// stateReadingMetadata consumes #key:value directives.
	stateReadingMetadata
	// stateDone means a data line was seen and the schema is complete.
	stateDone
)

// Recognized metadata directive keys. Unrecognized keys are ignored.
const (
	keyPrimaryKey = "primaryKey"
	keyDBTypes    = "dbTypes"
	keyExportMode = "exportMode"
)

// markerByte introduces the column list on the marker line and prefixes
// metadata directives.
const markerByte = '#'

// provenancePattern matches the path-like token preceding the marker:
// <group letters><4-digit year><2-digit month><2-digit day>/<name>.
var provenancePattern = regexp.MustCompile(`^([a-z]+)([0-9]{4})([0-9]{2})([0-9]{2})/([a-z_]+)`)

// Result holds the extracted schema and the buffered first data line, which
// must be decoded before any further line is read from the scanner.
type Result struct {
	Schema        *types.Schema
	FirstDataLine []byte
}

// Extract consumes lines from sc until the full schema and the first data
// line are recovered. End-of-stream before that point fails with a
// HEADER_INCOMPLETE error and no data may be read.
func Extract(sc *scan.Scanner) (*Result, error) {
	schema := &types.Schema{}
	st := stateSeekingMarker

	for {
		line, err := sc.Next()
		if err == io.EOF {
			if st == stateSeekingMarker {
				return nil, eperrors.NewHeaderIncomplete("stream ended before header marker line")
			}
			return nil, eperrors.NewHeaderIncomplete("stream ended before first data line")
		}
		if err != nil {
			return nil, eperrors.NewInternalError("reading header line", err)
		}

		switch st {
		case stateSeekingMarker:
			idx := bytes.IndexByte(line, markerByte)
			if idx < 0 {
				// Blank framing lines may precede the real header.
				continue
			}
			parseMarker(schema, line, idx)
			st = stateReadingMetadata

		case stateReadingMetadata:
			if len(line) > 0 && line[0] == markerByte {
				applyDirective(schema, line[1:])
				continue
			}
			// First data line: header parsing ends here and the line is
			// preserved for the row decoder.
			return &Result{Schema: schema, FirstDataLine: line}, nil
		}
	}
}

// parseMarker splits the marker line at its first '#'. The prefix, when it
// matches the provenance pattern, identifies the export; the suffix is the
// separator-joined column name list.
func parseMarker(schema *types.Schema, line []byte, idx int) {
	schema.ColumnNames = splitFields(line[idx+1:])

	if m := provenancePattern.FindStringSubmatch(string(line[:idx])); m != nil {
		schema.Provenance = &types.Provenance{
			Group: m[1],
			Year:  m[2],
			Month: m[3],
			Day:   m[4],
			Name:  m[5],
		}
	}
}

// applyDirective handles one #key:value metadata line. Directives without a
// colon and unrecognized keys are ignored without error.
func applyDirective(schema *types.Schema, rest []byte) {
	key, value, ok := strings.Cut(string(rest), ":")
	if !ok {
		return
	}

	switch key {
	case keyPrimaryKey:
		schema.PrimaryKeys = strings.Split(value, string(scan.FieldSeparator))
	case keyDBTypes:
		schema.DeclaredTypes = strings.Split(value, string(scan.FieldSeparator))
	case keyExportMode:
		schema.ExportMode = value
	}
}

func splitFields(b []byte) []string {
	return strings.Split(string(b), string(scan.FieldSeparator))
}
