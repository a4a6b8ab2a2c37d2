package calendar

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/sitecache/internal/store"
)

// defaultReminderSentinel is the pre-v4 reminder time meaning "use the
// default lead time".
const defaultReminderSentinel = -1

// Settings provides the per-site default reminder lead time.
type Settings interface {
	GetDefaultReminderLeadTime(ctx context.Context, siteID string) (int64, error)
	SetDefaultReminderLeadTime(ctx context.Context, seconds int64, siteID string) error
}

// ReminderStats summarizes one run of the reminder migration.
type ReminderStats struct {
	Total     int
	Converted int // rewritten to a lead time relative to the event start
	Defaulted int // rewritten to null (default lead time)
	Orphaned  int // deleted because the event is not cached
	Invalid   int // deleted because the reminder fired after the event
	Failed    int // could not be rewritten and was deleted instead
}

type reminderCounters struct {
	converted, defaulted, orphaned, invalid, failed atomic.Int64
}

func (c *reminderCounters) stats(total int) ReminderStats {
	return ReminderStats{
		Total:     total,
		Converted: int(c.converted.Load()),
		Defaulted: int(c.defaulted.Load()),
		Orphaned:  int(c.orphaned.Load()),
		Invalid:   int(c.invalid.Load()),
		Failed:    int(c.failed.Load()),
	}
}

type reminderMigrator struct {
	settings Settings
	logger   *zap.Logger
	limit    int
}

func (m *reminderMigrator) step(ctx context.Context, rs store.RecordStore, installed int, siteID string) error {
	stats, err := m.migrate(ctx, rs, siteID)
	if err != nil {
		return err
	}
	m.logger.Info("reminders migrated",
		zap.String("site", siteID),
		zap.Int("from_version", installed),
		zap.Int("total", stats.Total),
		zap.Int("converted", stats.Converted),
		zap.Int("defaulted", stats.Defaulted),
		zap.Int("orphaned", stats.Orphaned),
		zap.Int("invalid", stats.Invalid),
		zap.Int("failed", stats.Failed),
	)
	return nil
}

// MigrateReminders rewrites pre-v4 reminders of rs in place. Stored times
// used to be compared against the event start directly; they become a lead
// time in seconds before the start, or null for the default lead time.
// The default lead time setting is converted from minutes to seconds.
func MigrateReminders(
	ctx context.Context,
	rs store.RecordStore,
	settings Settings,
	logger *zap.Logger,
	maxConcurrency int,
) (ReminderStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &reminderMigrator{settings: settings, logger: logger, limit: maxConcurrency}
	return m.migrate(ctx, rs, rs.SiteID())
}

func (m *reminderMigrator) migrate(ctx context.Context, rs store.RecordStore, siteID string) (ReminderStats, error) {
	m.convertDefaultLeadTime(ctx, siteID)

	records, err := rs.GetAllRecords(ctx, RemindersTable)
	if err != nil {
		return ReminderStats{}, fmt.Errorf("reading reminders: %w", err)
	}

	events := newEventMemo(rs)
	var counters reminderCounters

	var g errgroup.Group
	if m.limit > 0 {
		g.SetLimit(m.limit)
	}
	for _, rec := range records {
		g.Go(func() error {
			return m.migrateReminder(ctx, rs, events, rec, &counters)
		})
	}

	// Wait joins every reminder, failed or not, before reporting.
	err = g.Wait()
	return counters.stats(len(records)), err
}

// convertDefaultLeadTime rewrites the stored default lead time from minutes
// to seconds. A missing or unreadable setting leaves nothing to convert.
func (m *reminderMigrator) convertDefaultLeadTime(ctx context.Context, siteID string) {
	if m.settings == nil {
		return
	}

	minutes, err := m.settings.GetDefaultReminderLeadTime(ctx, siteID)
	if err != nil {
		if !errors.Is(err, store.ErrNotConfigured) {
			m.logger.Warn("reading default lead time", zap.String("site", siteID), zap.Error(err))
		}
		return
	}
	if minutes == 0 {
		return
	}

	if err := m.settings.SetDefaultReminderLeadTime(ctx, minutes*60, siteID); err != nil {
		m.logger.Warn("storing default lead time", zap.String("site", siteID), zap.Error(err))
	}
}

// migrateReminder leaves rec either rewritten or deleted. It only returns
// an error when neither could be done.
func (m *reminderMigrator) migrateReminder(
	ctx context.Context,
	rs store.RecordStore,
	events *eventMemo,
	rec store.Record,
	counters *reminderCounters,
) error {
	id := rec["id"]

	eventID, ok := rec.Int64("eventid")
	if !ok {
		counters.orphaned.Add(1)
		return m.deleteReminder(ctx, rs, id)
	}

	event, err := events.get(ctx, eventID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("looking up reminder event",
				zap.Any("reminder", id), zap.Int64("event", eventID), zap.Error(err))
		}
		counters.orphaned.Add(1)
		return m.deleteReminder(ctx, rs, id)
	}

	out := rec.Clone()
	t, hasTime := rec.Int64("time")
	start, hasStart := event.Int64("timestart")

	switch {
	case !hasTime || t == 0 || t == defaultReminderSentinel:
		out["time"] = nil
		counters.defaulted.Add(1)
	case !hasStart || t > start:
		// The reminder would fire after the event started.
		counters.invalid.Add(1)
		return m.deleteReminder(ctx, rs, id)
	default:
		out["time"] = start - t
		counters.converted.Add(1)
	}

	if err := rs.InsertRecord(ctx, RemindersTable, out); err != nil {
		m.logger.Warn("rewriting reminder, deleting it instead",
			zap.Any("reminder", id), zap.Error(err))
		counters.failed.Add(1)
		return m.deleteReminder(ctx, rs, id)
	}
	return nil
}

func (m *reminderMigrator) deleteReminder(ctx context.Context, rs store.RecordStore, id any) error {
	if err := rs.DeleteRecords(ctx, RemindersTable, store.Conditions{"id": id}); err != nil {
		return fmt.Errorf("deleting reminder %v: %w", id, err)
	}
	return nil
}

// eventMemo resolves events by id, fetching each id at most once across
// concurrent callers. Not-found results are remembered too.
type eventMemo struct {
	rs    store.RecordStore
	group singleflight.Group

	mu      sync.Mutex
	found   map[int64]store.Record
	missing map[int64]error
}

func newEventMemo(rs store.RecordStore) *eventMemo {
	return &eventMemo{
		rs:      rs,
		found:   make(map[int64]store.Record),
		missing: make(map[int64]error),
	}
}

func (m *eventMemo) get(ctx context.Context, id int64) (store.Record, error) {
	m.mu.Lock()
	if rec, ok := m.found[id]; ok {
		m.mu.Unlock()
		return rec, nil
	}
	if err, ok := m.missing[id]; ok {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		rec, err := m.rs.GetRecord(ctx, EventsTable, store.Conditions{"id": id})

		m.mu.Lock()
		defer m.mu.Unlock()
		switch {
		case err == nil:
			m.found[id] = rec
		case errors.Is(err, store.ErrNotFound):
			m.missing[id] = err
		}
		return rec, err
	})
	if err != nil {
		return nil, err
	}
	return v.(store.Record), nil
}
