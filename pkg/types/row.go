package types

// Row maps column names to decoded values. Values are string, int64,
// float64, bool, or nil for an EPF null. Keys are exactly the schema's
// column names; iteration order is defined by Schema.ColumnNames.
//
// A Row is transient: it is created by the row decoder, coerced in place,
// placed into a batch, and never retained past the batch's handoff.
type Row map[string]interface{}
