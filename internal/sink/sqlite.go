package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/epforge/epforge/pkg/types"
)

// SQLiteSink writes batches into an immutable SQLite micro-partition.
// Column affinities follow the declared EPF types; the export's primary key
// columns, when present, become the table's primary key. The database runs
// in WAL mode during the load and is checkpointed back to DELETE mode on
// Close so the finished file is a single self-contained artifact.
type SQLiteSink struct {
	path    string
	table   string
	db      *sql.DB
	columns []string
	insert  string
	rows    int64
}

// NewSQLiteSink creates the partition file and its table.
func NewSQLiteSink(ctx context.Context, path string, schema *types.Schema) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sink: creating output directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sink: opening sqlite partition: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: setting journal mode: %w", err)
	}

	table := tableName(schema)
	if _, err := db.ExecContext(ctx, createTableSQL(table, schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: creating table: %w", err)
	}

	s := &SQLiteSink{
		path:    path,
		table:   table,
		db:      db,
		columns: schema.ColumnNames,
		insert:  insertSQL(table, schema.ColumnNames),
	}
	return s, nil
}

// tableName derives the table name from the export's provenance, falling
// back to a generic name when provenance is absent.
func tableName(schema *types.Schema) string {
	if schema.Provenance != nil && schema.Provenance.Name != "" {
		return schema.Provenance.Name
	}
	return "export"
}

// createTableSQL builds the CREATE TABLE statement. WITHOUT ROWID is only
// usable when the export declares a primary key.
func createTableSQL(table string, schema *types.Schema) string {
	typed := schema.HasTypedColumns()
	defs := make([]string, 0, len(schema.ColumnNames)+1)
	for i, name := range schema.ColumnNames {
		affinity := "TEXT"
		if typed {
			affinity = sqliteAffinity(schema.DeclaredTypes[i])
		}
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdent(name), affinity))
	}

	suffix := ""
	if len(schema.PrimaryKeys) > 0 {
		quoted := make([]string, len(schema.PrimaryKeys))
		for i, pk := range schema.PrimaryKeys {
			quoted[i] = quoteIdent(pk)
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
		suffix = " WITHOUT ROWID"
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)%s", quoteIdent(table), strings.Join(defs, ", "), suffix)
}

// sqliteAffinity maps a declared EPF type to a SQLite column affinity.
func sqliteAffinity(tag string) string {
	switch tag {
	case types.TypeInteger, types.TypeBigint, types.TypeBoolean:
		return "INTEGER"
	case types.TypeReal, types.TypeDouble:
		return "REAL"
	default:
		return "TEXT"
	}
}

func insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	holes := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		holes[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(holes, ", "))
}

// quoteIdent quotes an identifier that originates from untrusted header
// metadata.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// WriteBatch inserts the rows inside a single transaction.
func (s *SQLiteSink) WriteBatch(ctx context.Context, rows []types.Row, schema *types.Schema) (*BatchResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sink: beginning transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.insert)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("sink: preparing insert: %w", err)
	}

	args := make([]interface{}, len(s.columns))
	for _, row := range rows {
		for i, name := range s.columns {
			args[i] = row[name]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			tx.Rollback()
			return nil, fmt.Errorf("sink: inserting row: %w", err)
		}
	}

	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("sink: closing insert statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sink: committing batch: %w", err)
	}

	s.rows += int64(len(rows))
	return &BatchResult{RowsWritten: int64(len(rows))}, nil
}

// Close checkpoints the WAL, switches the journal back to DELETE mode for
// immutability, and closes the database.
func (s *SQLiteSink) Close(ctx context.Context) (*Summary, error) {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("sink: checkpointing WAL: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("sink: resetting journal mode: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return nil, fmt.Errorf("sink: closing sqlite partition: %w", err)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("sink: stat sqlite partition: %w", err)
	}

	return &Summary{Path: s.path, Rows: s.rows, SizeBytes: info.Size()}, nil
}

// Table returns the table name the sink writes into.
func (s *SQLiteSink) Table() string {
	return s.table
}
