package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements RecordStore over one SQLite database per site.
type SQLiteStore struct {
	db     *sqlx.DB
	siteID string
}

// SitePath returns the database file used for siteID under dataDir.
func SitePath(dataDir, siteID string) string {
	return filepath.Join(dataDir, "sites", siteID+".db")
}

// OpenSite opens (or creates) the database of siteID under dataDir.
func OpenSite(dataDir, siteID string) (*SQLiteStore, error) {
	path := SitePath(dataDir, siteID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating site directory: %w", err)
	}
	return NewSQLiteStore(path, siteID)
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath bound to
// siteID, enables WAL mode, and runs the store's own bookkeeping
// migrations. Use ":memory:" for a throwaway database.
func NewSQLiteStore(dbPath, siteID string) (*SQLiteStore, error) {
	if strings.TrimSpace(siteID) == "" {
		return nil, fmt.Errorf("site id must not be empty")
	}

	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db, siteID: siteID}
	if err := runMigrations(db, siteMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// openSQLite opens dbPath and applies connection pragmas. The pool is
// limited to a single connection: writes are serialized by SQLite anyway,
// and an in-memory database only lives as long as its connection.
func openSQLite(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SiteID returns the site the store is bound to.
func (s *SQLiteStore) SiteID() string {
	return s.siteID
}

// ExecDDL runs a schema statement such as CREATE TABLE.
func (s *SQLiteStore) ExecDDL(ctx context.Context, stmt string) error {
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("executing ddl: %w", err)
	}
	return nil
}

// TableExists reports whether table is present in the site database.
func (s *SQLiteStore) TableExists(ctx context.Context, table string) (bool, error) {
	if !ValidIdentifier(table) {
		return false, fmt.Errorf("%w: %q", ErrInvalidIdentifier, table)
	}

	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", table, err)
	}
	return count > 0, nil
}

// requireTable returns ErrTableNotFound when table is absent.
func (s *SQLiteStore) requireTable(ctx context.Context, table string) error {
	ok, err := s.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return nil
}

// GetAllRecords returns every row of table.
func (s *SQLiteStore) GetAllRecords(ctx context.Context, table string) ([]Record, error) {
	return s.GetRecords(ctx, table, nil)
}

// GetRecords returns the rows of table matching conds.
func (s *SQLiteStore) GetRecords(ctx context.Context, table string, conds Conditions) ([]Record, error) {
	if err := s.requireTable(ctx, table); err != nil {
		return nil, err
	}

	where, args, err := whereClause(conds)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM "+table+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec := make(map[string]any)
		if err := rows.MapScan(rec); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		records = append(records, Record(rec))
	}

	return records, rows.Err()
}

// GetRecord returns the first row of table matching conds, or ErrNotFound.
func (s *SQLiteStore) GetRecord(ctx context.Context, table string, conds Conditions) (Record, error) {
	if err := s.requireTable(ctx, table); err != nil {
		return nil, err
	}

	where, args, err := whereClause(conds)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowxContext(ctx, "SELECT * FROM "+table+where+" LIMIT 1", args...)
	rec := make(map[string]any)
	if err := row.MapScan(rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %v", ErrNotFound, table, map[string]any(conds))
		}
		return nil, fmt.Errorf("getting %s record: %w", table, err)
	}

	return Record(rec), nil
}

// InsertRecord inserts or replaces rec in table.
func (s *SQLiteStore) InsertRecord(ctx context.Context, table string, rec Record) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, table)
	}
	if len(rec) == 0 {
		return fmt.Errorf("inserting into %s: empty record", table)
	}

	cols := sortedKeys(rec)
	args := make([]any, len(cols))
	for i, c := range cols {
		if !ValidIdentifier(c) {
			return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, c)
		}
		args[i] = rec[c]
	}

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders(len(cols)))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

// DeleteRecords deletes the rows of table matching conds.
func (s *SQLiteStore) DeleteRecords(ctx context.Context, table string, conds Conditions) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, table)
	}

	where, args, err := whereClause(conds)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table+where, args...); err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	return nil
}

// tableColumn is one row of PRAGMA table_info.
type tableColumn struct {
	CID          int            `db:"cid"`
	Name         string         `db:"name"`
	Type         string         `db:"type"`
	NotNull      int            `db:"notnull"`
	DefaultValue sql.NullString `db:"dflt_value"`
	PK           int            `db:"pk"`
}

// columns returns the column names of table in declaration order.
func columns(ctx context.Context, q sqlx.QueryerContext, table string) ([]string, error) {
	var info []tableColumn
	if err := sqlx.SelectContext(ctx, q, &info, fmt.Sprintf("PRAGMA table_info(%s)", table)); err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	names := make([]string, len(info))
	for i, c := range info {
		names[i] = c.Name
	}
	return names, nil
}

// CopyAllRows copies src into dst over their shared columns and drops src,
// all within one transaction.
func (s *SQLiteStore) CopyAllRows(ctx context.Context, src, dst string) error {
	if err := s.requireTable(ctx, src); err != nil {
		return err
	}
	if err := s.requireTable(ctx, dst); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	srcCols, err := columns(ctx, tx, src)
	if err != nil {
		return err
	}
	dstCols, err := columns(ctx, tx, dst)
	if err != nil {
		return err
	}

	inSrc := make(map[string]bool, len(srcCols))
	for _, c := range srcCols {
		inSrc[c] = true
	}
	var shared []string
	for _, c := range dstCols {
		if inSrc[c] {
			shared = append(shared, c)
		}
	}
	if len(shared) == 0 {
		return fmt.Errorf("copying %s into %s: no shared columns", src, dst)
	}

	list := strings.Join(shared, ", ")
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) SELECT %s FROM %s", dst, list, list, src)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("copying %s into %s: %w", src, dst, err)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+src); err != nil {
		return fmt.Errorf("dropping %s: %w", src, err)
	}

	return tx.Commit()
}

// DropTable drops table if it exists.
func (s *SQLiteStore) DropTable(ctx context.Context, table string) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, table)
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("dropping %s: %w", table, err)
	}
	return nil
}

// whereClause builds " WHERE a = ? AND b IS NULL" for conds, or "" when
// conds is empty.
func whereClause(conds Conditions) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}

	var (
		parts []string
		args  []any
	)
	for _, col := range sortedKeys(conds) {
		if !ValidIdentifier(col) {
			return "", nil, fmt.Errorf("%w: column %q", ErrInvalidIdentifier, col)
		}
		v := conds[col]
		if v == nil {
			parts = append(parts, col+" IS NULL")
			continue
		}
		parts = append(parts, col+" = ?")
		args = append(args, v)
	}

	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
