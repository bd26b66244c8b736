package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// memStore is an in-memory Store with the same uniqueness rule the partial
// index enforces in Postgres.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	bookings map[string]*Booking
	nextID   int
}

func newMemStore() *memStore {
	return &memStore{
		profiles: make(map[string]*Profile),
		bookings: make(map[string]*Booking),
	}
}

func (m *memStore) id() string {
	m.nextID++
	return "id-" + strconv.Itoa(m.nextID)
}

func (m *memStore) CreateProfile(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = m.id()
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memStore) GetProfile(_ context.Context, id string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: profile", ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetProfileBySubject(_ context.Context, subject string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Subject == subject {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: profile", ErrNotFound)
}

func (m *memStore) ListProfiles(_ context.Context) ([]Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Profile
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memStore) ReplaceAvailability(_ context.Context, profileID string, rules []AvailabilityRule, overrides []DateOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[profileID]
	if !ok {
		return fmt.Errorf("%w: profile", ErrNotFound)
	}
	p.Recurring = append([]AvailabilityRule(nil), rules...)
	p.Overrides = append([]DateOverride(nil), overrides...)
	return nil
}

func (m *memStore) SaveGoogleToken(_ context.Context, profileID string, token []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[profileID]
	if !ok {
		return fmt.Errorf("%w: profile", ErrNotFound)
	}
	p.GoogleToken = token
	return nil
}

func (m *memStore) windowTaken(b *Booking, ignoreID string) bool {
	for _, other := range m.bookings {
		if other.ID == ignoreID || other.ProfileID != b.ProfileID {
			continue
		}
		if other.Status != BookingStatusCancelled &&
			other.Date == b.Date && other.StartTime == b.StartTime && other.EndTime == b.EndTime {
			return true
		}
	}
	return false
}

func (m *memStore) InsertBooking(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.windowTaken(b, "") {
		return fmt.Errorf("%w: slot already booked", ErrConflict)
	}
	if b.ID == "" {
		b.ID = m.id()
	}
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memStore) GetBooking(_ context.Context, id string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: booking", ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) ListBookings(_ context.Context, profileID string) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.ProfileID == profileID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) ListUpcomingByDate(_ context.Context, profileID, date string) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.ProfileID == profileID && b.Date == date && b.Status == BookingStatusUpcoming {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) ListUnexported(_ context.Context, profileID string) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.ProfileID == profileID && b.ExternalEventID == "" && b.Status == BookingStatusUpcoming {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) UpdateBookingStatus(_ context.Context, id string, from, to BookingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

func (m *memStore) SetExternalEventID(_ context.Context, bookingID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return fmt.Errorf("%w: booking", ErrNotFound)
	}
	b.ExternalEventID = eventID
	return nil
}

func (m *memStore) ReplaceImported(_ context.Context, profileID string, fresh []Booking) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// All-or-nothing, like the transactional pgx implementation.
	next := make(map[string]*Booking, len(m.bookings))
	for id, b := range m.bookings {
		if b.ProfileID == profileID && b.ExternalEventID != "" {
			continue
		}
		cp := *b
		next[id] = &cp
	}
	for i := range fresh {
		b := fresh[i]
		if b.ID == "" {
			b.ID = m.id()
		}
		for _, other := range next {
			if other.ProfileID == b.ProfileID && other.Status != BookingStatusCancelled &&
				other.Date == b.Date && other.StartTime == b.StartTime && other.EndTime == b.EndTime {
				return 0, fmt.Errorf("%w: slot already booked", ErrConflict)
			}
		}
		cp := b
		next[b.ID] = &cp
	}
	m.bookings = next
	return len(fresh), nil
}

// fakeCalendar scripts the provider for reconciler tests.
type fakeCalendar struct {
	events    []Event
	listErr   error
	createErr map[string]error // keyed by attendee email
	created   []EventRequest
	nextID    int
}

func (f *fakeCalendar) ListUpcomingEvents(_ context.Context, _ []byte) ([]Event, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.events, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _ []byte, req EventRequest) (string, error) {
	if err := f.createErr[req.AttendeeEmail]; err != nil {
		return "", err
	}
	f.created = append(f.created, req)
	f.nextID++
	return fmt.Sprintf("gcal-%d", f.nextID), nil
}

// fakeNotifier records sends and optionally fails.
type fakeNotifier struct {
	mu    sync.Mutex
	sent  [][]string
	fail  bool
	calls int
}

func (f *fakeNotifier) Send(_ context.Context, to []string, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return fmt.Errorf("%w: mail down", ErrExternalService)
	}
	f.sent = append(f.sent, to)
	return nil
}

func newTestApp(store Store, cal CalendarProvider, notifier Notifier) *App {
	if notifier == nil {
		notifier = &fakeNotifier{}
	}
	return &App{
		Store:    store,
		Calendar: cal,
		Notifier: notifier,
		Logger:   zap.NewNop(),
	}
}
