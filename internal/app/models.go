package app

import "time"

type BookingStatus string

const (
	BookingStatusUpcoming  BookingStatus = "upcoming"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Terminal reports whether no further status transitions are allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// Profile is the owner of a public booking page.
type Profile struct {
	ID         string  `json:"id"`
	Subject    string  `json:"subject"` // externally issued identity, unique
	Email      string  `json:"email"`
	Timezone   string  `json:"timezone"` // IANA name, defaults to UTC
	HourlyRate float64 `json:"hourly_rate,omitempty"`
	Title      string  `json:"title,omitempty"`
	About      string  `json:"about,omitempty"`
	Location   string  `json:"location,omitempty"`

	Recurring []AvailabilityRule `json:"recurring_availability"`
	Overrides []DateOverride     `json:"date_overrides"`

	// Serialized oauth2 token. Nil means the calendar reconciler is
	// disabled for this profile.
	GoogleToken []byte `json:"-"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// CalendarConnected reports whether external calendar credentials are present.
func (p *Profile) CalendarConnected() bool {
	return len(p.GoogleToken) > 0
}

// AvailabilityRule is one recurring weekly window, day given as the full
// English weekday name, times as HH:MM wall clock in the profile's timezone.
type AvailabilityRule struct {
	ID        int    `json:"id,omitempty"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// DateOverride replaces every recurring rule for its date. Multiple overrides
// for the same date are all returned; they are never merged with recurring
// rules.
type DateOverride struct {
	ID        int    `json:"id,omitempty"`
	Date      string `json:"date"` // yyyy-mm-dd
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Window is a bookable interval on a specific date.
type Window struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type Booking struct {
	ID          string        `json:"id"`
	ProfileID   string        `json:"profile_id"`
	ClientName  string        `json:"client_name"`
	ClientEmail string        `json:"client_email"`
	Message     string        `json:"message,omitempty"`
	Date        string        `json:"date"` // yyyy-mm-dd
	StartTime   string        `json:"start_time"`
	EndTime     string        `json:"end_time"`
	Status      BookingStatus `json:"status"`

	// Set only by the reconciler: either the booking originated from the
	// external calendar, or it has already been exported there. Acts as
	// the join key between the ledger and the calendar.
	ExternalEventID string `json:"external_event_id,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Imported reports whether the booking is owned by the reconciler.
func (b *Booking) Imported() bool {
	return b.ExternalEventID != ""
}

// SyncResult reports what one reconciler run did.
type SyncResult struct {
	Imported int `json:"imported"`
	Exported int `json:"exported"`
}
