// Package sitedb installs and upgrades registered schemas in site
// databases and records the installed version of each.
package sitedb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/sitecache/internal/schema"
	"github.com/nhle/sitecache/internal/store"
)

// SiteStore is a site database that can run DDL and persist schema
// versions on top of record access.
type SiteStore interface {
	store.RecordStore
	ExecDDL(ctx context.Context, stmt string) error
	GetSchemaVersion(ctx context.Context, name string) (int, error)
	SetSchemaVersion(ctx context.Context, name string, version int) error
}

// Result describes what ApplySchema did for one schema.
type Result struct {
	Schema  string
	From    int
	To      int
	Skipped bool
	Steps   []string
	Elapsed time.Duration
}

// Manager holds the schemas every site database must carry.
type Manager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	schemas []*schema.Schema
}

// NewManager creates a Manager with no registered schemas.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger.Named("sitedb")}
}

// Register adds s after validating it. Schema names must be unique.
func (m *Manager) Register(s *schema.Schema) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.schemas {
		if existing.Name == s.Name {
			return fmt.Errorf("schema %s already registered", s.Name)
		}
	}
	m.schemas = append(m.schemas, s)
	return nil
}

// Schemas returns the registered schemas in registration order.
func (m *Manager) Schemas() []*schema.Schema {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*schema.Schema, len(m.schemas))
	copy(out, m.schemas)
	return out
}

// ApplySchemas applies every registered schema to st. A failing schema
// does not prevent the others from being applied; all failures are
// returned joined.
func (m *Manager) ApplySchemas(ctx context.Context, st SiteStore) ([]Result, error) {
	runID := uuid.NewString()
	logger := m.logger.With(zap.String("site", st.SiteID()), zap.String("run_id", runID))

	var (
		results []Result
		errs    []error
	)
	for _, s := range m.Schemas() {
		res, err := m.applySchema(ctx, st, s, logger)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

// ApplySchema brings s up to date in st. Tables are created if missing;
// on an existing install the pending steps run, and the new version is
// recorded only when all of them succeed.
func (m *Manager) ApplySchema(ctx context.Context, st SiteStore, s *schema.Schema) (Result, error) {
	logger := m.logger.With(zap.String("site", st.SiteID()), zap.String("run_id", uuid.NewString()))
	return m.applySchema(ctx, st, s, logger)
}

func (m *Manager) applySchema(ctx context.Context, st SiteStore, s *schema.Schema, logger *zap.Logger) (Result, error) {
	start := time.Now()
	logger = logger.With(zap.String("schema", s.Name))

	installed, err := st.GetSchemaVersion(ctx, s.Name)
	if err != nil {
		return Result{}, fmt.Errorf("schema %s: %w", s.Name, err)
	}

	res := Result{Schema: s.Name, From: installed, To: installed}
	if installed >= s.Version {
		res.Skipped = true
		logger.Debug("schema up to date", zap.Int("version", installed))
		return res, nil
	}

	for _, t := range s.Tables {
		if err := st.ExecDDL(ctx, t.CreateSQL()); err != nil {
			return res, fmt.Errorf("schema %s: creating table %s: %w", s.Name, t.Name, err)
		}
	}

	// A fresh install has no older data to carry over.
	if installed > 0 {
		for _, step := range s.PendingSteps(installed) {
			res.Steps = append(res.Steps, step.Name)
		}
		logger.Info("migrating schema",
			zap.Int("from_version", installed),
			zap.Int("to_version", s.Version),
			zap.Strings("steps", res.Steps),
		)
		if err := s.Migrate(ctx, st, installed, st.SiteID()); err != nil {
			logger.Error("schema migration failed", zap.Error(err))
			return res, err
		}
	}

	if err := st.SetSchemaVersion(ctx, s.Name, s.Version); err != nil {
		return res, fmt.Errorf("schema %s: %w", s.Name, err)
	}

	res.To = s.Version
	res.Elapsed = time.Since(start)
	logger.Info("schema applied",
		zap.Int("from_version", installed),
		zap.Int("to_version", s.Version),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// ClearCache empties the clearable tables of every registered schema.
func (m *Manager) ClearCache(ctx context.Context, st SiteStore) error {
	for _, s := range m.Schemas() {
		for _, table := range s.CanBeCleared {
			ok, err := st.TableExists(ctx, table)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := st.DeleteRecords(ctx, table, nil); err != nil {
				return fmt.Errorf("schema %s: clearing %s: %w", s.Name, table, err)
			}
			m.logger.Info("table cleared", zap.String("site", st.SiteID()), zap.String("table", table))
		}
	}
	return nil
}
