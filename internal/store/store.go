package store

import (
	"context"
	"errors"
	"regexp"
	"sort"
)

var (
	// ErrNotFound is returned by GetRecord when no row matches.
	ErrNotFound = errors.New("record not found")

	// ErrTableNotFound is returned when an operation targets a missing table.
	ErrTableNotFound = errors.New("table not found")

	// ErrInvalidIdentifier is returned for table or column names that are
	// not plain SQL identifiers.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrNotConfigured is returned when a requested setting has no value.
	ErrNotConfigured = errors.New("setting not configured")
)

// Record is a single row keyed by column name. INTEGER columns read back
// as int64, TEXT columns as string, and NULL as nil.
type Record map[string]any

// Conditions selects rows by exact column equality. A nil value matches
// NULL. Empty conditions match every row.
type Conditions map[string]any

// RecordStore is the site-scoped record access used by schema migrations
// and cache readers. Every call touches the store's own site only.
type RecordStore interface {
	// SiteID returns the site the store is bound to.
	SiteID() string

	TableExists(ctx context.Context, table string) (bool, error)
	GetAllRecords(ctx context.Context, table string) ([]Record, error)
	GetRecords(ctx context.Context, table string, conds Conditions) ([]Record, error)
	GetRecord(ctx context.Context, table string, conds Conditions) (Record, error)

	// InsertRecord inserts rec, replacing any row that conflicts on the
	// primary key or a unique key.
	InsertRecord(ctx context.Context, table string, rec Record) error
	DeleteRecords(ctx context.Context, table string, conds Conditions) error

	// CopyAllRows copies every row of src into dst over the columns both
	// tables share, then drops src.
	CopyAllRows(ctx context.Context, src, dst string) error
	DropTable(ctx context.Context, table string) error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be used unquoted as a table or
// column name.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

// Int64 returns the column value as an integer. The second result is false
// for NULL, a missing column, or a non-numeric value.
func (r Record) Int64(col string) (int64, bool) {
	switch v := r[col].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// String returns the column value as text. The second result is false for
// NULL or a missing column.
func (r Record) String(col string) (string, bool) {
	switch v := r[col].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// sortedKeys returns the keys of m in lexical order so generated SQL is
// deterministic.
func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
