// Package sheetsync reconciles the asset store with an external spreadsheet.
// The reconciler speaks to any TabularSource; the production implementation
// is a Google Sheets values-API client.
package sheetsync

import (
	"context"
	"time"
)

// Canonical column keys used in Row.Values. The mapping from these keys to
// actual spreadsheet header names lives in Config.Columns.
const (
	ColTag          = "tag"
	ColName         = "name"
	ColCategory     = "category"
	ColType         = "type"
	ColSerialNumber = "serial_number"
	ColStatus       = "status"
	ColCondition    = "condition"
	ColLocation     = "location"
	ColNotes        = "notes"
	ColModifiedAt   = "modified_at"
)

// Row is one record from a tabular source. Ref is the source's opaque
// locator for the row (a sheet row number for Google Sheets). Values are
// keyed by the canonical column keys above. ModifiedAt is nil when the
// source carries no revision metadata for the row.
type Row struct {
	Ref        string
	Values     map[string]string
	ModifiedAt *time.Time
}

// Tag returns the row's asset tag, the join key for reconciliation.
func (r Row) Tag() string {
	return r.Values[ColTag]
}

// TabularSource is a remote table of asset rows the reconciler can read and
// write. Implementations must treat Append and Update as row-scoped writes;
// the reconciler never rewrites the whole table.
type TabularSource interface {
	// Ping verifies connectivity and access to the table.
	Ping(ctx context.Context) error
	// Rows reads all data rows.
	Rows(ctx context.Context) ([]Row, error)
	// Append adds a new row and returns its ref.
	Append(ctx context.Context, row Row) (string, error)
	// Update overwrites the row at ref.
	Update(ctx context.Context, ref string, row Row) error
}
