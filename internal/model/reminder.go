package model

// Reminder schedules a local notification ahead of a cached event.
type Reminder struct {
	ID      int64 `json:"id" db:"id"`
	EventID int64 `json:"eventid" db:"eventid"`

	// Time is the lead time in seconds before the event starts.
	// Nil means the site's default lead time applies.
	Time *int64 `json:"time" db:"time"`
}

// IsDefault reports whether the reminder follows the default lead time.
func (r Reminder) IsDefault() bool {
	return r.Time == nil
}

// FireAt returns the Unix timestamp at which the reminder fires for an
// event starting at timeStart, using defaultLead when the reminder has
// no explicit lead time.
func (r Reminder) FireAt(timeStart, defaultLead int64) int64 {
	if r.Time == nil {
		return timeStart - defaultLead
	}
	return timeStart - *r.Time
}
