// Package schema declares the tables of a site-scoped cache database and
// the version-gated steps that upgrade on-device data between schema
// versions.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/sitecache/internal/store"
)

// ColumnType is the declared SQLite storage class of a column.
type ColumnType string

const (
	Integer ColumnType = "INTEGER"
	Text    ColumnType = "TEXT"
)

// Column describes a single table column.
type Column struct {
	Name       string
	Type       ColumnType
	NotNull    bool
	PrimaryKey bool
	Unique     bool
}

// Table is a declarative table definition.
type Table struct {
	Name    string
	Columns []Column

	// UniqueKeys lists column tuples that must be unique jointly.
	UniqueKeys [][]string
}

// StepFunc performs one migration step against a site's store.
type StepFunc func(ctx context.Context, rs store.RecordStore, installed int, siteID string) error

// Step is a migration step that applies when the installed version is
// below Threshold.
type Step struct {
	Threshold int
	Name      string
	Run       StepFunc
}

// AppliesTo reports whether the step must run for the installed version.
func (s Step) AppliesTo(installed int) bool {
	return installed < s.Threshold
}

// Schema is a named, versioned set of tables plus the steps that bring
// older on-device data up to Version.
type Schema struct {
	Name    string
	Version int

	// CanBeCleared lists tables that hold disposable cached data.
	CanBeCleared []string

	Tables []Table
	Steps  []Step
}

// Table returns the declared table with the given name.
func (s *Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// PendingSteps returns the steps that would run for the installed version,
// in execution order.
func (s *Schema) PendingSteps(installed int) []Step {
	if installed >= s.Version {
		return nil
	}
	var steps []Step
	for _, st := range s.Steps {
		if st.AppliesTo(installed) {
			steps = append(steps, st)
		}
	}
	return steps
}

// Migrate runs every pending step in ascending threshold order. It stops at
// the first failing step and returns a *StepError; steps already completed
// are not rolled back. Migrate does not record the new version.
func (s *Schema) Migrate(ctx context.Context, rs store.RecordStore, installed int, siteID string) error {
	for _, st := range s.PendingSteps(installed) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := st.Run(ctx, rs, installed, siteID); err != nil {
			return &StepError{
				Schema:    s.Name,
				Step:      st.Name,
				Threshold: st.Threshold,
				SiteID:    siteID,
				Err:       err,
			}
		}
	}
	return nil
}

// Validate checks the declaration for internal consistency.
func (s *Schema) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: schema name must not be empty", ErrInvalidSchema)
	}
	if s.Version < 1 {
		return fmt.Errorf("%w: schema %s: version must be at least 1", ErrInvalidSchema, s.Name)
	}

	tables := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		if tables[t.Name] {
			return fmt.Errorf("%w: schema %s: duplicate table %s", ErrInvalidSchema, s.Name, t.Name)
		}
		tables[t.Name] = true
		if err := t.Validate(); err != nil {
			return fmt.Errorf("schema %s: %w", s.Name, err)
		}
	}

	for _, name := range s.CanBeCleared {
		if !tables[name] {
			return fmt.Errorf("%w: schema %s: clearable table %s is not declared", ErrInvalidSchema, s.Name, name)
		}
	}

	prev := 0
	for _, st := range s.Steps {
		if st.Run == nil {
			return fmt.Errorf("%w: schema %s: step %q has no function", ErrInvalidSchema, s.Name, st.Name)
		}
		if st.Threshold <= prev {
			return fmt.Errorf("%w: schema %s: step %q threshold %d is not ascending",
				ErrInvalidSchema, s.Name, st.Name, st.Threshold)
		}
		if st.Threshold > s.Version {
			return fmt.Errorf("%w: schema %s: step %q threshold %d exceeds version %d",
				ErrInvalidSchema, s.Name, st.Name, st.Threshold, s.Version)
		}
		prev = st.Threshold
	}

	return nil
}

// Validate checks column names, primary key count, and unique key tuples.
func (t Table) Validate() error {
	if !store.ValidIdentifier(t.Name) {
		return fmt.Errorf("%w: invalid table name %q", ErrInvalidSchema, t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: table %s has no columns", ErrInvalidSchema, t.Name)
	}

	cols := make(map[string]bool, len(t.Columns))
	pks := 0
	for _, c := range t.Columns {
		if !store.ValidIdentifier(c.Name) {
			return fmt.Errorf("%w: table %s: invalid column name %q", ErrInvalidSchema, t.Name, c.Name)
		}
		if cols[c.Name] {
			return fmt.Errorf("%w: table %s: duplicate column %s", ErrInvalidSchema, t.Name, c.Name)
		}
		cols[c.Name] = true
		if c.Type != Integer && c.Type != Text {
			return fmt.Errorf("%w: table %s: column %s has unsupported type %q",
				ErrInvalidSchema, t.Name, c.Name, c.Type)
		}
		if c.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		return fmt.Errorf("%w: table %s declares %d primary key columns", ErrInvalidSchema, t.Name, pks)
	}

	for _, key := range t.UniqueKeys {
		if len(key) == 0 {
			return fmt.Errorf("%w: table %s: empty unique key", ErrInvalidSchema, t.Name)
		}
		for _, name := range key {
			if !cols[name] {
				return fmt.Errorf("%w: table %s: unique key references undeclared column %s",
					ErrInvalidSchema, t.Name, name)
			}
		}
	}

	return nil
}

// ColumnNames returns the declared column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
