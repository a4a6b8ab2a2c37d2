package calendar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/sitecache/internal/model"
	"github.com/nhle/sitecache/internal/store"
)

func ptr[T any](v T) *T { return &v }

func TestCache_EventRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newCalendarStore(t))

	in := model.Event{
		ID:           42,
		Name:         "Assignment due",
		Description:  "<p>Submit the essay</p>",
		EventType:    model.EventTypeDue,
		TimeStart:    1_700_000_000,
		TimeDuration: 0,
		CourseID:     ptr(int64(5)),
		ModuleName:   ptr("assign"),
		Instance:     ptr(int64(9)),
		TimeModified: 1_699_000_000,
		Visible:      1,
		ViewURL:      ptr("https://school.example/mod/assign/view.php?id=9"),
		IsLastDay:    ptr(int64(0)),
	}
	require.NoError(t, cache.UpsertEvents(ctx, []model.Event{in}))

	got, err := cache.GetEvent(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, err = cache.GetEvent(ctx, 43)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCache_GetEventsInRange(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newCalendarStore(t))

	require.NoError(t, cache.UpsertEvents(ctx, []model.Event{
		{ID: 3, Name: "late", TimeStart: 300},
		{ID: 1, Name: "early", TimeStart: 100, TimeDuration: 50},
		{ID: 2, Name: "same start", TimeStart: 100},
		{ID: 4, Name: "outside", TimeStart: 1000},
	}))

	events, err := cache.GetEventsInRange(ctx, 120, 400)
	require.NoError(t, err)

	var ids []int64
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	// Event 1 runs until 150 so it overlaps; event 2 ended at 100.
	assert.Equal(t, []int64{1, 3}, ids)
}

func TestCache_Reminders(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newCalendarStore(t))

	require.NoError(t, cache.UpsertEvents(ctx, []model.Event{{ID: 1, Name: "exam", TimeStart: 10_000}}))
	require.NoError(t, cache.AddReminder(ctx, model.Reminder{EventID: 1, Time: ptr(int64(600))}))
	require.NoError(t, cache.AddReminder(ctx, model.Reminder{EventID: 1}))
	assert.Error(t, cache.AddReminder(ctx, model.Reminder{EventID: 1, Time: ptr(int64(-5))}))

	reminders, err := cache.GetReminders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	assert.Equal(t, int64(600), *reminders[0].Time)
	assert.Equal(t, int64(9_400), reminders[0].FireAt(10_000, 3600))
	assert.True(t, reminders[1].IsDefault())
	assert.Equal(t, int64(6_400), reminders[1].FireAt(10_000, 3600))

	require.NoError(t, cache.DeleteReminder(ctx, reminders[0].ID))
	reminders, err = cache.GetReminders(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, reminders, 1)

	require.NoError(t, cache.DeleteEvent(ctx, 1))
	reminders, err = cache.GetReminders(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, reminders)
}
