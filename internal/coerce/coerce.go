// Package coerce converts raw field strings to typed values according to
// the declared EPF column types. EPF exports routinely represent "no value"
// as an empty field and upstream data quality varies, so converters never
// fail: a value that cannot be parsed degrades to null and downstream
// consumers decide its significance.
package coerce

import (
	"fmt"
	"strconv"

	"github.com/epforge/epforge/pkg/types"
)

// Converter transforms one raw field value into its typed form. A nil
// return signals an EPF null.
type Converter func(string) interface{}

// converters is the static dispatch table from declared type tag to
// converter. Tags not present here pass through as opaque strings.
var converters = map[string]Converter{
	types.TypeInteger: toInt64,
	types.TypeBigint:  toInt64,
	types.TypeReal:    toFloat64,
	types.TypeDouble:  toFloat64,
	types.TypeBoolean: toBool,
}

// ConverterFor returns the converter for a declared type tag, or nil when
// the tag is not recognized.
func ConverterFor(tag string) Converter {
	return converters[tag]
}

func toInt64(v string) interface{} {
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return n
}

func toFloat64(v string) interface{} {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return f
}

// toBool integer-parses the value and applies truthiness: nonzero is true.
func toBool(v string) interface{} {
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return n != 0
}

// Coercer applies per-column converters selected once from the schema.
type Coercer struct {
	byColumn map[string]Converter
}

// NewCoercer builds a Coercer for the schema. When the schema has no usable
// declared types (absent, or length disagrees with the column list) no
// converters are installed and every field passes through as a string.
func NewCoercer(schema *types.Schema) *Coercer {
	c := &Coercer{byColumn: make(map[string]Converter)}
	if !schema.HasTypedColumns() {
		return c
	}
	for i, name := range schema.ColumnNames {
		if conv := ConverterFor(schema.DeclaredTypes[i]); conv != nil {
			c.byColumn[name] = conv
		}
	}
	return c
}

// Apply coerces row values in place. Columns without a converter keep their
// raw string; values that are not already a primitive are stringified
// defensively.
func (c *Coercer) Apply(row types.Row) {
	for name, v := range row {
		conv, ok := c.byColumn[name]
		if !ok {
			switch v.(type) {
			case string, int64, float64, bool, nil:
			default:
				row[name] = fmt.Sprint(v)
			}
			continue
		}

		switch s := v.(type) {
		case string:
			row[name] = conv(s)
		case nil:
			// already null
		default:
			row[name] = conv(fmt.Sprint(v))
		}
	}
}

// Typed reports whether the named column has a converter installed.
func (c *Coercer) Typed(name string) bool {
	_, ok := c.byColumn[name]
	return ok
}
