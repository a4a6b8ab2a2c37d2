package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReminder_FireAt(t *testing.T) {
	lead := int64(600)

	r := Reminder{ID: 1, EventID: 2, Time: &lead}
	assert.False(t, r.IsDefault())
	assert.Equal(t, int64(9400), r.FireAt(10000, 900))

	r.Time = nil
	assert.True(t, r.IsDefault())
	assert.Equal(t, int64(9100), r.FireAt(10000, 900))
}

func TestEvent_TimeEnd(t *testing.T) {
	e := Event{TimeStart: 1000, TimeDuration: 3600}
	assert.Equal(t, int64(4600), e.TimeEnd())
}
