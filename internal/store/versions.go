package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SchemaVersion is the persisted version of one schema in a site database.
type SchemaVersion struct {
	Name      string `db:"name"`
	Version   int    `db:"version"`
	UpdatedAt int64  `db:"updated_at"`
}

// GetSchemaVersion returns the installed version of schema name, or 0 when
// it has never been installed.
func (s *SQLiteStore) GetSchemaVersion(ctx context.Context, name string) (int, error) {
	var version int
	err := s.db.GetContext(ctx, &version,
		"SELECT version FROM schema_versions WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading version of schema %s: %w", name, err)
	}
	return version, nil
}

// SetSchemaVersion records version as installed for schema name.
func (s *SQLiteStore) SetSchemaVersion(ctx context.Context, name string, version int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO schema_versions (name, version, updated_at)
		VALUES (?, ?, ?)`,
		name, version, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("recording version %d of schema %s: %w", version, name, err)
	}
	return nil
}

// GetSchemaVersions lists every schema installed in the site database.
func (s *SQLiteStore) GetSchemaVersions(ctx context.Context) ([]SchemaVersion, error) {
	var versions []SchemaVersion
	err := s.db.SelectContext(ctx, &versions,
		"SELECT name, version, updated_at FROM schema_versions ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing schema versions: %w", err)
	}
	return versions, nil
}
