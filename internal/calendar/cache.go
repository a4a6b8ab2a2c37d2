package calendar

import (
	"context"
	"fmt"
	"sort"

	"github.com/nhle/sitecache/internal/model"
	"github.com/nhle/sitecache/internal/store"
)

// Cache gives typed access to the calendar tables of one site. It assumes
// the calendar schema is installed at SchemaVersion.
type Cache struct {
	rs store.RecordStore
}

// NewCache returns a Cache over rs.
func NewCache(rs store.RecordStore) *Cache {
	return &Cache{rs: rs}
}

// UpsertEvents inserts or replaces events.
func (c *Cache) UpsertEvents(ctx context.Context, events []model.Event) error {
	for _, e := range events {
		if err := c.rs.InsertRecord(ctx, EventsTable, EventRecord(e)); err != nil {
			return fmt.Errorf("storing event %d: %w", e.ID, err)
		}
	}
	return nil
}

// GetEvent returns the cached event with the given id. The error wraps
// store.ErrNotFound when the event is not cached.
func (c *Cache) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	rec, err := c.rs.GetRecord(ctx, EventsTable, store.Conditions{"id": id})
	if err != nil {
		return model.Event{}, fmt.Errorf("getting event %d: %w", id, err)
	}
	return EventFromRecord(rec), nil
}

// GetEventsInRange returns events overlapping [from, to), ordered by start
// time then id.
func (c *Cache) GetEventsInRange(ctx context.Context, from, to int64) ([]model.Event, error) {
	records, err := c.rs.GetAllRecords(ctx, EventsTable)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	var events []model.Event
	for _, rec := range records {
		e := EventFromRecord(rec)
		if e.TimeStart < to && e.TimeEnd() >= from {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].TimeStart != events[j].TimeStart {
			return events[i].TimeStart < events[j].TimeStart
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// DeleteEvent removes an event and its reminders.
func (c *Cache) DeleteEvent(ctx context.Context, id int64) error {
	if err := c.rs.DeleteRecords(ctx, RemindersTable, store.Conditions{"eventid": id}); err != nil {
		return fmt.Errorf("deleting reminders of event %d: %w", id, err)
	}
	if err := c.rs.DeleteRecords(ctx, EventsTable, store.Conditions{"id": id}); err != nil {
		return fmt.Errorf("deleting event %d: %w", id, err)
	}
	return nil
}

// AddReminder stores r. A zero ID lets the database assign one.
func (c *Cache) AddReminder(ctx context.Context, r model.Reminder) error {
	if r.Time != nil && *r.Time < 0 {
		return fmt.Errorf("reminder lead time must not be negative, got %d", *r.Time)
	}
	if err := c.rs.InsertRecord(ctx, RemindersTable, ReminderRecord(r)); err != nil {
		return fmt.Errorf("storing reminder for event %d: %w", r.EventID, err)
	}
	return nil
}

// GetReminders returns the reminders of an event ordered by id.
func (c *Cache) GetReminders(ctx context.Context, eventID int64) ([]model.Reminder, error) {
	records, err := c.rs.GetRecords(ctx, RemindersTable, store.Conditions{"eventid": eventID})
	if err != nil {
		return nil, fmt.Errorf("listing reminders of event %d: %w", eventID, err)
	}

	reminders := make([]model.Reminder, 0, len(records))
	for _, rec := range records {
		reminders = append(reminders, ReminderFromRecord(rec))
	}
	sort.Slice(reminders, func(i, j int) bool { return reminders[i].ID < reminders[j].ID })
	return reminders, nil
}

// DeleteReminder removes a reminder by id.
func (c *Cache) DeleteReminder(ctx context.Context, id int64) error {
	if err := c.rs.DeleteRecords(ctx, RemindersTable, store.Conditions{"id": id}); err != nil {
		return fmt.Errorf("deleting reminder %d: %w", id, err)
	}
	return nil
}

// EventRecord converts an event into an events table row.
func EventRecord(e model.Event) store.Record {
	return store.Record{
		"id":              e.ID,
		"name":            e.Name,
		"description":     e.Description,
		"eventtype":       e.EventType,
		"courseid":        nullable(e.CourseID),
		"timestart":       e.TimeStart,
		"timeduration":    e.TimeDuration,
		"categoryid":      nullable(e.CategoryID),
		"groupid":         nullable(e.GroupID),
		"userid":          nullable(e.UserID),
		"instance":        nullable(e.Instance),
		"modulename":      nullable(e.ModuleName),
		"timemodified":    e.TimeModified,
		"repeatid":        nullable(e.RepeatID),
		"visible":         e.Visible,
		"uuid":            nullable(e.UUID),
		"sequence":        nullable(e.Sequence),
		"subscriptionid":  nullable(e.SubscriptionID),
		"location":        nullable(e.Location),
		"eventcount":      nullable(e.EventCount),
		"timesort":        nullable(e.TimeSort),
		"category":        nullable(e.Category),
		"course":          nullable(e.Course),
		"subscription":    nullable(e.Subscription),
		"canedit":         nullable(e.CanEdit),
		"candelete":       nullable(e.CanDelete),
		"deleteurl":       nullable(e.DeleteURL),
		"editurl":         nullable(e.EditURL),
		"viewurl":         nullable(e.ViewURL),
		"isactionevent":   nullable(e.IsActionEvent),
		"url":             nullable(e.URL),
		"islastday":       nullable(e.IsLastDay),
		"popupname":       nullable(e.PopupName),
		"mindaytimestamp": nullable(e.MinDayTimestamp),
		"maxdaytimestamp": nullable(e.MaxDayTimestamp),
		"draggable":       nullable(e.Draggable),
	}
}

// EventFromRecord converts an events table row into an event. NULL in a
// required field reads as its zero value.
func EventFromRecord(rec store.Record) model.Event {
	var e model.Event
	e.ID, _ = rec.Int64("id")
	e.Name, _ = rec.String("name")
	e.Description, _ = rec.String("description")
	e.EventType, _ = rec.String("eventtype")
	e.TimeStart, _ = rec.Int64("timestart")
	e.TimeDuration, _ = rec.Int64("timeduration")
	e.TimeModified, _ = rec.Int64("timemodified")
	e.Visible, _ = rec.Int64("visible")

	e.CourseID = optInt(rec, "courseid")
	e.CategoryID = optInt(rec, "categoryid")
	e.GroupID = optInt(rec, "groupid")
	e.UserID = optInt(rec, "userid")
	e.Instance = optInt(rec, "instance")
	e.ModuleName = optString(rec, "modulename")
	e.RepeatID = optInt(rec, "repeatid")
	e.UUID = optString(rec, "uuid")
	e.Sequence = optInt(rec, "sequence")
	e.SubscriptionID = optInt(rec, "subscriptionid")
	e.Location = optString(rec, "location")
	e.EventCount = optInt(rec, "eventcount")
	e.TimeSort = optInt(rec, "timesort")
	e.Category = optString(rec, "category")
	e.Course = optString(rec, "course")
	e.Subscription = optString(rec, "subscription")
	e.CanEdit = optInt(rec, "canedit")
	e.CanDelete = optInt(rec, "candelete")
	e.DeleteURL = optString(rec, "deleteurl")
	e.EditURL = optString(rec, "editurl")
	e.ViewURL = optString(rec, "viewurl")
	e.IsActionEvent = optInt(rec, "isactionevent")
	e.URL = optString(rec, "url")
	e.IsLastDay = optInt(rec, "islastday")
	e.PopupName = optString(rec, "popupname")
	e.MinDayTimestamp = optInt(rec, "mindaytimestamp")
	e.MaxDayTimestamp = optInt(rec, "maxdaytimestamp")
	e.Draggable = optInt(rec, "draggable")
	return e
}

// ReminderRecord converts a reminder into a reminders table row.
func ReminderRecord(r model.Reminder) store.Record {
	rec := store.Record{
		"eventid": r.EventID,
		"time":    nullable(r.Time),
	}
	if r.ID != 0 {
		rec["id"] = r.ID
	}
	return rec
}

// ReminderFromRecord converts a reminders table row into a reminder.
func ReminderFromRecord(rec store.Record) model.Reminder {
	var r model.Reminder
	r.ID, _ = rec.Int64("id")
	r.EventID, _ = rec.Int64("eventid")
	r.Time = optInt(rec, "time")
	return r
}

// nullable turns a nil pointer into an untyped nil so it is stored as NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func optInt(rec store.Record, col string) *int64 {
	v, ok := rec.Int64(col)
	if !ok {
		return nil
	}
	return &v
}

func optString(rec store.Record, col string) *string {
	v, ok := rec.String(col)
	if !ok {
		return nil
	}
	return &v
}
