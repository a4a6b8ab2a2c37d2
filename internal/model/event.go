package model

// Event type tags as reported by the platform.
const (
	EventTypeSite     = "site"
	EventTypeCategory = "category"
	EventTypeCourse   = "course"
	EventTypeGroup    = "group"
	EventTypeUser     = "user"
	EventTypeDue      = "due"
	EventTypeOpen     = "open"
	EventTypeClose    = "close"
)

// Event is a calendar event cached on the device for offline display.
// Fields below the Visible marker are denormalized display projections
// copied from the server response; they are not authoritative.
type Event struct {
	// ID is the server-side event identifier.
	ID int64 `json:"id" db:"id"`

	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	EventType   string `json:"eventtype" db:"eventtype"`

	// TimeStart is the event start as Unix epoch seconds.
	TimeStart int64 `json:"timestart" db:"timestart"`

	// TimeDuration is the length of the event in seconds.
	TimeDuration int64 `json:"timeduration" db:"timeduration"`

	CourseID     *int64  `json:"courseid,omitempty" db:"courseid"`
	CategoryID   *int64  `json:"categoryid,omitempty" db:"categoryid"`
	GroupID      *int64  `json:"groupid,omitempty" db:"groupid"`
	UserID       *int64  `json:"userid,omitempty" db:"userid"`
	Instance     *int64  `json:"instance,omitempty" db:"instance"`
	ModuleName   *string `json:"modulename,omitempty" db:"modulename"`
	TimeModified int64   `json:"timemodified" db:"timemodified"`
	RepeatID     *int64  `json:"repeatid,omitempty" db:"repeatid"`
	Visible      int64   `json:"visible" db:"visible"`

	UUID           *string `json:"uuid,omitempty" db:"uuid"`
	Sequence       *int64  `json:"sequence,omitempty" db:"sequence"`
	SubscriptionID *int64  `json:"subscriptionid,omitempty" db:"subscriptionid"`

	Location        *string `json:"location,omitempty" db:"location"`
	EventCount      *int64  `json:"eventcount,omitempty" db:"eventcount"`
	TimeSort        *int64  `json:"timesort,omitempty" db:"timesort"`
	Category        *string `json:"category,omitempty" db:"category"`
	Course          *string `json:"course,omitempty" db:"course"`
	Subscription    *string `json:"subscription,omitempty" db:"subscription"`
	CanEdit         *int64  `json:"canedit,omitempty" db:"canedit"`
	CanDelete       *int64  `json:"candelete,omitempty" db:"candelete"`
	DeleteURL       *string `json:"deleteurl,omitempty" db:"deleteurl"`
	EditURL         *string `json:"editurl,omitempty" db:"editurl"`
	ViewURL         *string `json:"viewurl,omitempty" db:"viewurl"`
	IsActionEvent   *int64  `json:"isactionevent,omitempty" db:"isactionevent"`
	URL             *string `json:"url,omitempty" db:"url"`
	IsLastDay       *int64  `json:"islastday,omitempty" db:"islastday"`
	PopupName       *string `json:"popupname,omitempty" db:"popupname"`
	MinDayTimestamp *int64  `json:"mindaytimestamp,omitempty" db:"mindaytimestamp"`
	MaxDayTimestamp *int64  `json:"maxdaytimestamp,omitempty" db:"maxdaytimestamp"`
	Draggable       *int64  `json:"draggable,omitempty" db:"draggable"`
}

// TimeEnd returns the end of the event as Unix epoch seconds.
func (e Event) TimeEnd() int64 {
	return e.TimeStart + e.TimeDuration
}
