package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// defaultLeadTimeKey prefixes the per-site default reminder lead time.
const defaultLeadTimeKey = "calendar_default_notif_time#"

// ConfigStore is the app-level name/value settings database shared by all
// sites.
type ConfigStore struct {
	db *sqlx.DB
}

// OpenConfig opens (or creates) the app-level database under dataDir.
func OpenConfig(dataDir string) (*ConfigStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return NewConfigStore(filepath.Join(dataDir, "app.db"))
}

// NewConfigStore opens the settings database at dbPath and applies its
// migrations. Use ":memory:" for a throwaway database.
func NewConfigStore(dbPath string) (*ConfigStore, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db, appMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &ConfigStore{db: db}, nil
}

// Close closes the underlying database connection.
func (c *ConfigStore) Close() error {
	return c.db.Close()
}

// Get returns the value stored under name, or ErrNotConfigured.
func (c *ConfigStore) Get(ctx context.Context, name string) (string, error) {
	var value sql.NullString
	err := c.db.GetContext(ctx, &value, "SELECT value FROM core_config WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !value.Valid) {
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", name, err)
	}
	return value.String, nil
}

// Set stores value under name, replacing any previous value.
func (c *ConfigStore) Set(ctx context.Context, name, value string) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO core_config (name, value) VALUES (?, ?)", name, value)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", name, err)
	}
	return nil
}

// Delete removes the value stored under name.
func (c *ConfigStore) Delete(ctx context.Context, name string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM core_config WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting setting %s: %w", name, err)
	}
	return nil
}

// GetDefaultReminderLeadTime returns the stored default reminder lead time
// of siteID. The unit is whatever was last written: minutes for data from
// before calendar schema v4, seconds afterwards.
func (c *ConfigStore) GetDefaultReminderLeadTime(ctx context.Context, siteID string) (int64, error) {
	raw, err := c.Get(ctx, defaultLeadTimeKey+siteID)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing default lead time for site %s: %w", siteID, err)
	}
	return v, nil
}

// SetDefaultReminderLeadTime stores the default reminder lead time of
// siteID in seconds.
func (c *ConfigStore) SetDefaultReminderLeadTime(ctx context.Context, seconds int64, siteID string) error {
	return c.Set(ctx, defaultLeadTimeKey+siteID, strconv.FormatInt(seconds, 10))
}
