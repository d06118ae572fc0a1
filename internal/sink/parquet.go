package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/epforge/epforge/pkg/types"
)

// ParquetSink writes batches to a single parquet file, one row group per
// batch. Column types follow the schema's declared EPF types; every column
// is nullable because coercion degrades unparseable values to null.
type ParquetSink struct {
	path   string
	file   *os.File
	mem    memory.Allocator
	schema *arrow.Schema
	writer *pqarrow.FileWriter
	rows   int64
}

// NewParquetSink creates the output file and parquet writer. codec selects
// the column compression; the EPF tooling historically emits snappy.
func NewParquetSink(path string, schema *types.Schema, codec compress.Compression) (*ParquetSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sink: creating output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: creating parquet file: %w", err)
	}

	arrowSchema := ArrowSchema(schema)
	props := parquet.NewWriterProperties(parquet.WithCompression(codec))
	w, err := pqarrow.NewFileWriter(arrowSchema, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: creating parquet writer: %w", err)
	}

	return &ParquetSink{
		path:   path,
		file:   f,
		mem:    memory.NewGoAllocator(),
		schema: arrowSchema,
		writer: w,
	}, nil
}

// ArrowSchema derives the arrow schema from the EPF schema. Columns without
// a usable declared type are utf8.
func ArrowSchema(s *types.Schema) *arrow.Schema {
	typed := s.HasTypedColumns()
	fields := make([]arrow.Field, len(s.ColumnNames))
	for i, name := range s.ColumnNames {
		var dt arrow.DataType = arrow.BinaryTypes.String
		if typed {
			switch s.DeclaredTypes[i] {
			case types.TypeInteger, types.TypeBigint:
				dt = arrow.PrimitiveTypes.Int64
			case types.TypeReal, types.TypeDouble:
				dt = arrow.PrimitiveTypes.Float64
			case types.TypeBoolean:
				dt = arrow.FixedWidthTypes.Boolean
			}
		}
		fields[i] = arrow.Field{Name: name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// WriteBatch converts the rows to an arrow record and writes it as one row
// group.
func (p *ParquetSink) WriteBatch(ctx context.Context, rows []types.Row, schema *types.Schema) (*BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := p.buildRecord(rows, schema)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	if err := p.writer.Write(rec); err != nil {
		return nil, fmt.Errorf("sink: writing parquet row group: %w", err)
	}

	p.rows += int64(len(rows))
	return &BatchResult{RowsWritten: int64(len(rows))}, nil
}

func (p *ParquetSink) buildRecord(rows []types.Row, schema *types.Schema) (arrow.Record, error) {
	bldr := array.NewRecordBuilder(p.mem, p.schema)
	defer bldr.Release()

	for _, row := range rows {
		for i, name := range schema.ColumnNames {
			if err := appendValue(bldr.Field(i), row[name]); err != nil {
				return nil, fmt.Errorf("sink: column %q: %w", name, err)
			}
		}
	}

	return bldr.NewRecord(), nil
}

// appendValue appends one coerced value to its column builder. Coercion
// guarantees typed columns carry their native type or nil; string columns
// tolerate anything by stringifying.
func appendValue(b array.Builder, v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch fb := b.(type) {
	case *array.Int64Builder:
		n, ok := v.(int64)
		if !ok {
			b.AppendNull()
			return nil
		}
		fb.Append(n)
	case *array.Float64Builder:
		f, ok := v.(float64)
		if !ok {
			b.AppendNull()
			return nil
		}
		fb.Append(f)
	case *array.BooleanBuilder:
		t, ok := v.(bool)
		if !ok {
			b.AppendNull()
			return nil
		}
		fb.Append(t)
	case *array.StringBuilder:
		if s, ok := v.(string); ok {
			fb.Append(s)
		} else {
			fb.Append(fmt.Sprint(v))
		}
	default:
		return fmt.Errorf("unsupported builder type %T", b)
	}
	return nil
}

// Close finalizes the parquet footer and closes the file.
func (p *ParquetSink) Close(ctx context.Context) (*Summary, error) {
	if err := p.writer.Close(); err != nil {
		p.file.Close()
		return nil, fmt.Errorf("sink: finalizing parquet file: %w", err)
	}
	if err := p.file.Close(); err != nil {
		return nil, fmt.Errorf("sink: closing parquet file: %w", err)
	}

	info, err := os.Stat(p.path)
	if err != nil {
		return nil, fmt.Errorf("sink: stat parquet file: %w", err)
	}

	return &Summary{Path: p.path, Rows: p.rows, SizeBytes: info.Size()}, nil
}

// CompressionCodec maps a config compression name to a parquet codec.
func CompressionCodec(name string) (compress.Compression, error) {
	switch name {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("sink: unsupported parquet compression %q", name)
	}
}
