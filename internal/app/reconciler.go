package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sync runs one reconciliation cycle against the profile's external calendar:
// import first, then export, so freshly imported bookings are never
// re-exported in the same run.
//
// Import mirrors the calendar exactly: every booking carrying an external
// event id is replaced by the current upcoming event set, so local edits to
// imported bookings do not survive a sync. Export is best effort per booking;
// a booking that fails to parse or to create is skipped and the rest of the
// batch continues.
func (a *App) Sync(ctx context.Context, profileID string) (SyncResult, error) {
	var res SyncResult

	profile, err := a.Store.GetProfile(ctx, profileID)
	if err != nil {
		return res, err
	}
	if a.Calendar == nil {
		return res, fmt.Errorf("%w: calendar provider not configured", ErrAuth)
	}
	if !profile.CalendarConnected() {
		return res, fmt.Errorf("%w: profile has no calendar credentials", ErrAuth)
	}

	imported, err := a.importEvents(ctx, profile)
	if err != nil {
		return res, err
	}
	res.Imported = imported

	exported, err := a.exportBookings(ctx, profile)
	if err != nil {
		return res, err
	}
	res.Exported = exported

	return res, nil
}

func (a *App) importEvents(ctx context.Context, profile *Profile) (int, error) {
	events, err := a.Calendar.ListUpcomingEvents(ctx, profile.GoogleToken)
	if err != nil {
		return 0, err
	}

	fresh := make([]Booking, 0, len(events))
	for _, e := range events {
		b, err := a.eventToBooking(profile, e)
		if err != nil {
			a.Logger.Warn("skipping unmappable calendar event",
				zap.String("event_id", e.ID), zap.Error(err))
			continue
		}
		fresh = append(fresh, *b)
	}

	count, err := a.Store.ReplaceImported(ctx, profile.ID, fresh)
	if err != nil {
		return 0, fmt.Errorf("import aborted: %w", err)
	}
	return count, nil
}

// eventToBooking derives a booking candidate from an external event. Client
// identity follows a fixed priority: first attendee who is not the owner,
// then the event creator, then the event summary, and finally the owner's
// own email as a placeholder.
func (a *App) eventToBooking(profile *Profile, e Event) (*Booking, error) {
	start, allDay, err := eventInstant(e.Start, profile.Timezone)
	if err != nil {
		return nil, fmt.Errorf("event start: %w", err)
	}
	end, _, err := eventInstant(e.End, profile.Timezone)
	if err != nil {
		return nil, fmt.Errorf("event end: %w", err)
	}

	name, email := clientIdentity(profile, e)

	b := &Booking{
		ProfileID:       profile.ID,
		ClientName:      name,
		ClientEmail:     email,
		Message:         e.Description,
		Date:            start.Format(dateLayout),
		StartTime:       start.Format("15:04"),
		EndTime:         end.Format("15:04"),
		Status:          BookingStatusUpcoming,
		ExternalEventID: e.ID,
	}
	if allDay {
		// An all-day event becomes one 00:00-23:59 booking on its start
		// date. The feed's end date is exclusive and can be several days
		// out; the later days are not expanded into extra bookings.
		b.StartTime = "00:00"
		b.EndTime = "23:59"
	}
	return b, nil
}

func clientIdentity(profile *Profile, e Event) (name, email string) {
	for _, att := range e.Attendees {
		if att.Email != "" && att.Email != profile.Email {
			name = att.DisplayName
			if name == "" {
				name = att.Email
			}
			return name, att.Email
		}
	}
	if e.Creator.Email != "" && e.Creator.Email != profile.Email {
		name = e.Creator.DisplayName
		if name == "" {
			name = e.Creator.Email
		}
		return name, e.Creator.Email
	}
	if e.Summary != "" {
		return e.Summary, profile.Email
	}
	return profile.Email, profile.Email
}

// eventInstant resolves a calendar event boundary into the profile's
// timezone, handling both timed (RFC3339) and all-day (date only) forms.
func eventInstant(t EventTime, tz string) (time.Time, bool, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	if t.DateTime != "" {
		instant, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: bad event datetime %q", ErrValidation, t.DateTime)
		}
		return instant.In(loc), false, nil
	}
	if t.Date != "" {
		day, err := time.ParseInLocation(dateLayout, t.Date, loc)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: bad event date %q", ErrValidation, t.Date)
		}
		return day, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: event has no start or end", ErrValidation)
}

func (a *App) exportBookings(ctx context.Context, profile *Profile) (int, error) {
	pending, err := a.Store.ListUnexported(ctx, profile.ID)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, b := range pending {
		start, err := localInstant(b.Date, b.StartTime, profile.Timezone)
		if err == nil {
			var end time.Time
			end, err = localInstant(b.Date, b.EndTime, profile.Timezone)
			if err == nil {
				err = a.exportOne(ctx, profile, &b, start, end)
			}
		}
		if err != nil {
			// Per-item soft fail: log and move on to the next booking.
			a.Logger.Warn("booking export skipped",
				zap.String("booking_id", b.ID), zap.Error(err))
			continue
		}
		exported++
	}
	return exported, nil
}

func (a *App) exportOne(ctx context.Context, profile *Profile, b *Booking, start, end time.Time) error {
	summary := b.ClientName
	if summary == "" {
		summary = b.ClientEmail
	}
	eventID, err := a.Calendar.CreateEvent(ctx, profile.GoogleToken, EventRequest{
		Summary:       fmt.Sprintf("Booking with %s", summary),
		Description:   b.Message,
		Start:         start.Format(time.RFC3339),
		End:           end.Format(time.RFC3339),
		AttendeeEmail: b.ClientEmail,
	})
	if err != nil {
		return err
	}
	// The stamp is the idempotency marker: next sync will not re-export.
	if err := a.Store.SetExternalEventID(ctx, b.ID, eventID); err != nil {
		return err
	}
	return nil
}
