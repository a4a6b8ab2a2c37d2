// Package calendar declares the calendar site schema, its upgrade steps,
// and typed access to cached events and reminders.
package calendar

import (
	"go.uber.org/zap"

	"github.com/nhle/sitecache/internal/schema"
)

const (
	// SchemaName identifies the calendar schema in schema_versions.
	SchemaName = "AddonCalendarProvider"

	// SchemaVersion is the current calendar schema version.
	SchemaVersion = 4

	EventsTable    = "addon_calendar_events_3"
	RemindersTable = "addon_calendar_reminders"
)

// LegacyEventsTables lists the events tables of earlier schema
// generations, newest first.
var LegacyEventsTables = []string{
	"addon_calendar_events_2",
	"addon_calendar_events",
}

// Option customizes the calendar schema.
type Option func(*options)

type options struct {
	logger         *zap.Logger
	maxConcurrency int
}

// WithLogger sets the logger used by the upgrade steps.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxConcurrency bounds how many reminders are migrated at once.
// Zero or negative means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(o *options) { o.maxConcurrency = n }
}

func integer(name string) schema.Column { return schema.Column{Name: name, Type: schema.Integer} }
func text(name string) schema.Column    { return schema.Column{Name: name, Type: schema.Text} }

// eventsTable is the v3+ events table. Column names and types must stay
// as they are so data written by earlier releases remains readable.
var eventsTable = schema.Table{
	Name: EventsTable,
	Columns: []schema.Column{
		{Name: "id", Type: schema.Integer, PrimaryKey: true},
		{Name: "name", Type: schema.Text, NotNull: true},
		text("description"),
		text("eventtype"),
		integer("courseid"),
		integer("timestart"),
		integer("timeduration"),
		integer("categoryid"),
		integer("groupid"),
		integer("userid"),
		integer("instance"),
		text("modulename"),
		integer("timemodified"),
		integer("repeatid"),
		integer("visible"),
		text("uuid"),
		integer("sequence"),
		integer("subscriptionid"),
		text("location"),
		integer("eventcount"),
		integer("timesort"),
		text("category"),
		text("course"),
		text("subscription"),
		integer("canedit"),
		integer("candelete"),
		text("deleteurl"),
		text("editurl"),
		text("viewurl"),
		integer("isactionevent"),
		text("url"),
		integer("islastday"),
		text("popupname"),
		integer("mindaytimestamp"),
		integer("maxdaytimestamp"),
		integer("draggable"),
	},
}

var remindersTable = schema.Table{
	Name: RemindersTable,
	Columns: []schema.Column{
		{Name: "id", Type: schema.Integer, PrimaryKey: true},
		integer("eventid"),
		integer("time"),
	},
	UniqueKeys: [][]string{
		{"eventid", "time"},
	},
}

// NewSiteSchema returns the calendar site schema. settings supplies the
// default reminder lead time converted by the v4 step.
func NewSiteSchema(settings Settings, opts ...Option) *schema.Schema {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	reminders := &reminderMigrator{
		settings: settings,
		logger:   o.logger.Named("calendar"),
		limit:    o.maxConcurrency,
	}

	return &schema.Schema{
		Name:         SchemaName,
		Version:      SchemaVersion,
		CanBeCleared: []string{EventsTable},
		Tables:       []schema.Table{eventsTable, remindersTable},
		Steps: []schema.Step{
			{
				// Events moved to a new table format in v3.
				Threshold: 3,
				Name:      "rename legacy events table",
				Run:       schema.RenameLegacyTable(LegacyEventsTables, EventsTable),
			},
			{
				// Reminder times became lead times in seconds in v4.
				Threshold: 4,
				Name:      "normalize reminder offsets",
				Run:       reminders.step,
			},
		},
	}
}
