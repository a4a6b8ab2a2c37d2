package testutil

import (
	"context"
	"testing"

	"github.com/nhle/sitecache/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore for siteID with the
// bookkeeping migrations applied. It automatically closes the store when
// the test completes.
func NewTestStore(t *testing.T, siteID string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:", siteID)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestConfigStore creates an in-memory ConfigStore closed on cleanup.
func NewTestConfigStore(t *testing.T) *store.ConfigStore {
	t.Helper()

	c, err := store.NewConfigStore(":memory:")
	if err != nil {
		t.Fatalf("creating test config store: %v", err)
	}

	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("closing test config store: %v", err)
		}
	})

	return c
}

// Exec runs raw SQL statements against s, failing the test on error.
func Exec(t *testing.T, s *store.SQLiteStore, stmts ...string) {
	t.Helper()

	for _, stmt := range stmts {
		if err := s.ExecDDL(context.Background(), stmt); err != nil {
			t.Fatalf("executing %q: %v", stmt, err)
		}
	}
}

// Insert stores each record in table, failing the test on error.
func Insert(t *testing.T, s store.RecordStore, table string, records ...store.Record) {
	t.Helper()

	for _, rec := range records {
		if err := s.InsertRecord(context.Background(), table, rec); err != nil {
			t.Fatalf("inserting into %s: %v", table, err)
		}
	}
}
