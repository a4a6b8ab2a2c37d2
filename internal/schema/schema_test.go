package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/sitecache/internal/store"
	"github.com/nhle/sitecache/internal/testutil"
)

func noop(context.Context, store.RecordStore, int, string) error { return nil }

func validSchema() *Schema {
	return &Schema{
		Name:    "Notes",
		Version: 3,
		Tables: []Table{
			{
				Name: "notes",
				Columns: []Column{
					{Name: "id", Type: Integer, PrimaryKey: true},
					{Name: "body", Type: Text, NotNull: true},
					{Name: "owner", Type: Integer},
				},
				UniqueKeys: [][]string{{"owner", "body"}},
			},
		},
		CanBeCleared: []string{"notes"},
		Steps: []Step{
			{Threshold: 2, Name: "two", Run: noop},
			{Threshold: 3, Name: "three", Run: noop},
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validSchema().Validate())

	tests := []struct {
		name   string
		mutate func(s *Schema)
	}{
		{"empty name", func(s *Schema) { s.Name = " " }},
		{"zero version", func(s *Schema) { s.Version = 0 }},
		{"duplicate table", func(s *Schema) { s.Tables = append(s.Tables, s.Tables[0]) }},
		{"no columns", func(s *Schema) { s.Tables[0].Columns = nil }},
		{"bad table name", func(s *Schema) { s.Tables[0].Name = "notes; DROP" }},
		{"bad column name", func(s *Schema) { s.Tables[0].Columns[1].Name = "body text" }},
		{"duplicate column", func(s *Schema) { s.Tables[0].Columns[2].Name = "body" }},
		{"unknown type", func(s *Schema) { s.Tables[0].Columns[2].Type = "REAL" }},
		{"two primary keys", func(s *Schema) { s.Tables[0].Columns[2].PrimaryKey = true }},
		{"empty unique key", func(s *Schema) { s.Tables[0].UniqueKeys = [][]string{{}} }},
		{"unique key on undeclared column", func(s *Schema) { s.Tables[0].UniqueKeys = [][]string{{"owner", "title"}} }},
		{"clearable table undeclared", func(s *Schema) { s.CanBeCleared = []string{"drafts"} }},
		{"step without function", func(s *Schema) { s.Steps[0].Run = nil }},
		{"steps out of order", func(s *Schema) { s.Steps[0].Threshold, s.Steps[1].Threshold = 3, 2 }},
		{"duplicate threshold", func(s *Schema) { s.Steps[1].Threshold = 2 }},
		{"threshold above version", func(s *Schema) { s.Steps[1].Threshold = 4 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchema()
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSchema)
		})
	}
}

func TestCreateSQL(t *testing.T) {
	got := validSchema().Tables[0].CreateSQL()
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL, owner INTEGER, UNIQUE (owner, body))",
		got)
}

func TestCreateSQL_Executes(t *testing.T) {
	st := testutil.NewTestStore(t, "site")
	table := validSchema().Tables[0]

	testutil.Exec(t, st, table.CreateSQL(), table.CreateSQL())

	ok, err := st.TableExists(context.Background(), "notes")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMigrate_RunsPendingStepsInOrder(t *testing.T) {
	var ran []string
	record := func(name string) StepFunc {
		return func(_ context.Context, _ store.RecordStore, installed int, siteID string) error {
			assert.Equal(t, "site", siteID)
			ran = append(ran, name)
			return nil
		}
	}

	s := &Schema{
		Name:    "Ordered",
		Version: 4,
		Steps: []Step{
			{Threshold: 2, Name: "two", Run: record("two")},
			{Threshold: 3, Name: "three", Run: record("three")},
			{Threshold: 4, Name: "four", Run: record("four")},
		},
	}
	st := testutil.NewTestStore(t, "site")

	tests := []struct {
		installed int
		want      []string
	}{
		{0, []string{"two", "three", "four"}},
		{1, []string{"two", "three", "four"}},
		{2, []string{"three", "four"}},
		{3, []string{"four"}},
		{4, nil},
		{9, nil},
	}
	for _, tt := range tests {
		ran = nil
		require.NoError(t, s.Migrate(context.Background(), st, tt.installed, "site"))
		assert.Equal(t, tt.want, ran, "installed=%d", tt.installed)
	}
}

func TestMigrate_StopsAtFailingStep(t *testing.T) {
	boom := errors.New("boom")
	var ranLast bool
	s := &Schema{
		Name:    "Failing",
		Version: 3,
		Steps: []Step{
			{Threshold: 2, Name: "breaks", Run: func(context.Context, store.RecordStore, int, string) error { return boom }},
			{Threshold: 3, Name: "after", Run: func(context.Context, store.RecordStore, int, string) error {
				ranLast = true
				return nil
			}},
		},
	}

	err := s.Migrate(context.Background(), testutil.NewTestStore(t, "site"), 1, "site")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "breaks", stepErr.Step)
	assert.Equal(t, 2, stepErr.Threshold)
	assert.Equal(t, "site", stepErr.SiteID)
	assert.False(t, ranLast)
}

func TestMigrate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := validSchema().Migrate(ctx, testutil.NewTestStore(t, "site"), 1, "site")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPendingSteps(t *testing.T) {
	s := validSchema()
	assert.Len(t, s.PendingSteps(0), 2)
	assert.Len(t, s.PendingSteps(2), 1)
	assert.Empty(t, s.PendingSteps(3))
}
