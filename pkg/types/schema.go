// Package types provides core data types shared across the epforge pipeline.
package types

// Declared EPF column types recognized by the coercion layer. Any other
// declared type is treated as an opaque string.
const (
	TypeInteger = "INTEGER"
	TypeBigint  = "BIGINT"
	TypeReal    = "REAL"
	TypeDouble  = "DOUBLE"
	TypeBoolean = "BOOLEAN"
)

// Provenance identifies the export that produced an EPF stream. It is
// recovered from the path-like token preceding the header marker.
type Provenance struct {
	// Group is the feed group, e.g. "itunes"
	Group string `json:"group"`

	// Name is the dataset name, e.g. "application"
	Name string `json:"name"`

	// Year, Month and Day are the export date parts as they appear in the
	// stream (zero-padded decimal strings)
	Year  string `json:"year"`
	Month string `json:"month"`
	Day   string `json:"day"`
}

// DateString returns the export date as YYYY-MM-DD.
func (p Provenance) DateString() string {
	return p.Year + "-" + p.Month + "-" + p.Day
}

// Schema describes the structure of an EPF export. It is produced once by
// the header extractor and immutable thereafter.
type Schema struct {
	// ColumnNames is the ordered list of column names; order defines the
	// field position mapping for every data line
	ColumnNames []string `json:"column_names"`

	// DeclaredTypes holds the per-column EPF type tags from the dbTypes
	// directive, or is empty when the export did not provide them
	DeclaredTypes []string `json:"declared_types,omitempty"`

	// PrimaryKeys lists the primary key column names, may be empty
	PrimaryKeys []string `json:"primary_keys,omitempty"`

	// ExportMode is the exportMode directive value, passed through unmodified
	ExportMode string `json:"export_mode,omitempty"`

	// Provenance is nil when the marker line prefix did not match the
	// expected pattern
	Provenance *Provenance `json:"provenance,omitempty"`
}

// NumColumns returns the number of columns in the schema.
func (s *Schema) NumColumns() int {
	return len(s.ColumnNames)
}

// HasTypedColumns reports whether declared types are usable for coercion.
// A declared-type list whose length disagrees with the column list is
// ignored entirely; the mismatch is not fatal.
func (s *Schema) HasTypedColumns() bool {
	return len(s.DeclaredTypes) > 0 && len(s.DeclaredTypes) == len(s.ColumnNames)
}

// IsPrimaryKey reports whether the named column is part of the primary key.
func (s *Schema) IsPrimaryKey(name string) bool {
	for _, pk := range s.PrimaryKeys {
		if pk == name {
			return true
		}
	}
	return false
}
