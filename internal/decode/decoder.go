// Package decode maps logical lines to rows using the extracted schema.
package decode

import (
	"strings"

	eperrors "github.com/epforge/epforge/internal/errors"
	"github.com/epforge/epforge/internal/scan"
	"github.com/epforge/epforge/pkg/types"
)

// Decoder splits logical lines into rows keyed by column name.
type Decoder struct {
	schema *types.Schema
}

// NewDecoder creates a Decoder for the given schema.
func NewDecoder(schema *types.Schema) *Decoder {
	return &Decoder{schema: schema}
}

// Decode splits line on the field separator and maps fields to column names
// in schema order. A line whose field count disagrees with the schema's
// column count returns a FIELD_COUNT_MISMATCH error; the caller skips the
// line and continues, it must not stop the stream.
func (d *Decoder) Decode(line []byte) (types.Row, error) {
	fields := strings.Split(string(line), string(scan.FieldSeparator))
	if len(fields) != d.schema.NumColumns() {
		return nil, eperrors.NewFieldCountMismatch(d.schema.NumColumns(), len(fields))
	}

	row := make(types.Row, len(fields))
	for i, name := range d.schema.ColumnNames {
		row[name] = fields[i]
	}
	return row, nil
}
