package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration holds a single bookkeeping migration with its target version
// and SQL. These cover the store's own tables only; site data tables are
// declared by schemas and upgraded through their steps.
type migration struct {
	version int
	sql     string
}

// siteMigrations is the ordered list of bookkeeping migrations for a site
// database. Each migration's version must be sequential starting from 1.
var siteMigrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS store_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_versions (
	name    TEXT PRIMARY KEY,
	version INTEGER NOT NULL
);

INSERT INTO store_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE schema_versions ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0;

INSERT INTO store_version (version) VALUES (2);
`,
	},
}

// appMigrations is the ordered list of migrations for the app-level
// database shared by all sites.
var appMigrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS store_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS core_config (
	name  TEXT PRIMARY KEY,
	value TEXT
);

INSERT INTO store_version (version) VALUES (1);
`,
	},
}

// runMigrations checks the current store version and applies any
// outstanding migrations in order.
func runMigrations(db *sqlx.DB, migrations []migration) error {
	currentVersion := 0

	// Check if store_version table exists.
	var tableCount int
	err := db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='store_version'",
	)
	if err != nil {
		return fmt.Errorf("checking store_version table: %w", err)
	}

	if tableCount > 0 {
		err = db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM store_version")
		if err != nil {
			return fmt.Errorf("reading store version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}
