package coerce

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/epforge/epforge/pkg/types"
)

func TestConverterProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 1000

	properties := gopter.NewProperties(parameters)

	properties.Property("integer values round-trip", prop.ForAll(
		func(n int64) bool {
			return toInt64(strconv.FormatInt(n, 10)) == n
		},
		gen.Int64(),
	))

	properties.Property("float values round-trip", prop.ForAll(
		func(f float64) bool {
			return toFloat64(strconv.FormatFloat(f, 'g', -1, 64)) == f
		},
		gen.Float64(),
	))

	properties.Property("boolean truthiness follows the integer value", prop.ForAll(
		func(n int64) bool {
			return toBool(strconv.FormatInt(n, 10)) == (n != 0)
		},
		gen.Int64(),
	))

	properties.Property("alphabetic input degrades to null, never errors", prop.ForAll(
		func(s string) bool {
			return toInt64(s) == nil && toFloat64(s) == nil && toBool(s) == nil
		},
		gen.AlphaString(),
	))

	properties.Property("converters return nil or their declared Go type", prop.ForAll(
		func(s string) bool {
			for tag, want := range map[string]func(interface{}) bool{
				types.TypeInteger: func(v interface{}) bool { _, ok := v.(int64); return ok },
				types.TypeReal:    func(v interface{}) bool { _, ok := v.(float64); return ok },
				types.TypeBoolean: func(v interface{}) bool { _, ok := v.(bool); return ok },
			} {
				v := ConverterFor(tag)(s)
				if v != nil && !want(v) {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
