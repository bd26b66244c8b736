package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SlotRequest is the window a client asks to book.
type SlotRequest struct {
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

// ClientInfo identifies the person booking the slot.
type ClientInfo struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Message string `json:"message,omitempty"`
}

// CreateBooking validates a slot request against the owner's resolved
// availability and records it as upcoming. The requested window must sit
// inside one resolved window for the date; an identical non-cancelled window
// already on the books surfaces as ErrConflict via the store's uniqueness
// rule.
func (a *App) CreateBooking(ctx context.Context, ownerID string, slot SlotRequest, client ClientInfo) (*Booking, error) {
	profile, err := a.Store.GetProfile(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	start, err := normalizeHHMM(slot.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := normalizeHHMM(slot.EndTime)
	if err != nil {
		return nil, err
	}
	slot.StartTime, slot.EndTime = start, end

	windows, err := ResolveSlots(profile, slot.Date)
	if err != nil {
		return nil, err
	}
	contained := false
	for _, w := range windows {
		if windowContains(w, slot.StartTime, slot.EndTime) {
			contained = true
			break
		}
	}
	if !contained {
		return nil, fmt.Errorf("%w: %s %s-%s is outside the owner's availability",
			ErrValidation, slot.Date, slot.StartTime, slot.EndTime)
	}

	booking := &Booking{
		ProfileID:   profile.ID,
		ClientName:  client.Name,
		ClientEmail: client.Email,
		Message:     client.Message,
		Date:        slot.Date,
		StartTime:   slot.StartTime,
		EndTime:     slot.EndTime,
		Status:      BookingStatusUpcoming,
	}
	if err := a.Store.InsertBooking(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// UpdateStatus moves an upcoming booking to completed or cancelled. The
// transition is one way; terminal bookings reject further changes. Both the
// owner and the client are notified afterwards; a failed notification is
// logged and does not undo the transition.
func (a *App) UpdateStatus(ctx context.Context, bookingID, requesterID string, newStatus BookingStatus) (*Booking, error) {
	if newStatus != BookingStatusCompleted && newStatus != BookingStatusCancelled {
		return nil, fmt.Errorf("%w: status must be completed or cancelled, got %q", ErrValidation, newStatus)
	}

	booking, err := a.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ProfileID != requesterID {
		// Hide other owners' bookings rather than admitting they exist.
		return nil, fmt.Errorf("%w: booking", ErrNotFound)
	}
	if booking.Imported() {
		return nil, fmt.Errorf("%w: calendar-imported bookings are managed by sync", ErrInvalidState)
	}
	if booking.Status != BookingStatusUpcoming {
		return nil, fmt.Errorf("%w: booking is already %s", ErrInvalidState, booking.Status)
	}

	changed, err := a.Store.UpdateBookingStatus(ctx, bookingID, BookingStatusUpcoming, newStatus)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost a race with a concurrent transition.
		return nil, fmt.Errorf("%w: booking is no longer upcoming", ErrInvalidState)
	}
	booking.Status = newStatus

	a.notifyStatusChange(ctx, booking)
	return booking, nil
}

func (a *App) notifyStatusChange(ctx context.Context, b *Booking) {
	profile, err := a.Store.GetProfile(ctx, b.ProfileID)
	if err != nil {
		a.Logger.Warn("status notification skipped, owner lookup failed",
			zap.String("booking_id", b.ID), zap.Error(err))
		return
	}
	subject := fmt.Sprintf("Booking %s: %s %s-%s", b.Status, b.Date, b.StartTime, b.EndTime)
	body := fmt.Sprintf("The booking with %s on %s from %s to %s is now %s.",
		b.ClientName, b.Date, b.StartTime, b.EndTime, b.Status)
	if err := a.Notifier.Send(ctx, []string{profile.Email, b.ClientEmail}, subject, body); err != nil {
		a.Logger.Error("status notification failed",
			zap.String("booking_id", b.ID), zap.Error(err))
	}
}
