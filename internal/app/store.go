package app

import "context"

// Store is the persistence boundary for profiles and bookings. The pgx
// implementation lives in db.go; tests substitute an in-memory fake.
type Store interface {
	CreateProfile(ctx context.Context, p *Profile) error
	GetProfile(ctx context.Context, id string) (*Profile, error)
	GetProfileBySubject(ctx context.Context, subject string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	ReplaceAvailability(ctx context.Context, profileID string, rules []AvailabilityRule, overrides []DateOverride) error
	SaveGoogleToken(ctx context.Context, profileID string, token []byte) error

	InsertBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id string) (*Booking, error)
	ListBookings(ctx context.Context, profileID string) ([]Booking, error)
	ListUpcomingByDate(ctx context.Context, profileID, date string) ([]Booking, error)
	// ListUnexported returns upcoming bookings with no external event id.
	// Terminal bookings stay local: exporting a cancelled booking would
	// re-import it as upcoming on the next destructive replace.
	ListUnexported(ctx context.Context, profileID string) ([]Booking, error)
	// UpdateBookingStatus flips the status only when the current status
	// matches from; reports whether a row changed.
	UpdateBookingStatus(ctx context.Context, id string, from, to BookingStatus) (bool, error)
	SetExternalEventID(ctx context.Context, bookingID, eventID string) error
	// ReplaceImported atomically deletes every booking for the profile that
	// carries an external event id and inserts the fresh candidate set.
	ReplaceImported(ctx context.Context, profileID string, fresh []Booking) (int, error)
}
