package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// reminderLead is how far ahead of a booking's start the reminder fires.
const reminderLead = time.Hour

// Digest runs the periodic mail jobs against the ledger's read paths: a
// daily per-profile digest of that day's upcoming bookings and a minute
// granularity scan for bookings starting in about an hour. Both jobs are
// read-only and every failure is logged, never fatal.
type Digest struct {
	app  *App
	cron *cron.Cron
	now  func() time.Time
}

func NewDigest(a *App) *Digest {
	return &Digest{
		app:  a,
		cron: cron.New(),
		now:  time.Now,
	}
}

func (d *Digest) Start() error {
	if _, err := d.cron.AddFunc("0 7 * * *", func() { d.RunDaily(context.Background()) }); err != nil {
		return fmt.Errorf("schedule daily digest: %w", err)
	}
	if _, err := d.cron.AddFunc("* * * * *", func() { d.RunReminders(context.Background()) }); err != nil {
		return fmt.Errorf("schedule reminder scan: %w", err)
	}
	d.cron.Start()
	d.app.Logger.Info("digest jobs scheduled")
	return nil
}

func (d *Digest) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
}

// RunDaily mails each profile a summary of today's upcoming bookings. Today
// is computed per profile in its own timezone.
func (d *Digest) RunDaily(ctx context.Context) {
	profiles, err := d.app.Store.ListProfiles(ctx)
	if err != nil {
		d.app.Logger.Error("daily digest: list profiles failed", zap.Error(err))
		return
	}

	for _, p := range profiles {
		date := d.localToday(p.Timezone)
		bookings, err := d.app.Store.ListUpcomingByDate(ctx, p.ID, date)
		if err != nil {
			d.app.Logger.Error("daily digest: list bookings failed",
				zap.String("profile_id", p.ID), zap.Error(err))
			continue
		}
		if len(bookings) == 0 {
			continue
		}

		var lines []string
		for _, b := range bookings {
			lines = append(lines, fmt.Sprintf("%s-%s  %s <%s>", b.StartTime, b.EndTime, b.ClientName, b.ClientEmail))
		}
		subject := fmt.Sprintf("Your %d booking(s) for %s", len(bookings), date)
		if err := d.app.Notifier.Send(ctx, []string{p.Email}, subject, strings.Join(lines, "\n")); err != nil {
			d.app.Logger.Error("daily digest: send failed",
				zap.String("profile_id", p.ID), zap.Error(err))
		}
	}
}

// RunReminders notifies owner and client for bookings starting inside the
// one-minute window reminderLead from now. Each booking falls into exactly
// one scan tick, so no reminded flag is persisted.
func (d *Digest) RunReminders(ctx context.Context) {
	profiles, err := d.app.Store.ListProfiles(ctx)
	if err != nil {
		d.app.Logger.Error("reminder scan: list profiles failed", zap.Error(err))
		return
	}

	for _, p := range profiles {
		target := d.now().Add(reminderLead)
		date := d.localDate(target, p.Timezone)
		bookings, err := d.app.Store.ListUpcomingByDate(ctx, p.ID, date)
		if err != nil {
			d.app.Logger.Error("reminder scan: list bookings failed",
				zap.String("profile_id", p.ID), zap.Error(err))
			continue
		}
		for _, b := range bookings {
			start, err := localInstant(b.Date, b.StartTime, p.Timezone)
			if err != nil {
				continue
			}
			diff := start.Sub(d.now().Truncate(time.Minute))
			if diff < reminderLead || diff >= reminderLead+time.Minute {
				continue
			}
			subject := fmt.Sprintf("Reminder: booking at %s", b.StartTime)
			body := fmt.Sprintf("Booking with %s on %s from %s to %s starts in about an hour.",
				b.ClientName, b.Date, b.StartTime, b.EndTime)
			if err := d.app.Notifier.Send(ctx, []string{p.Email, b.ClientEmail}, subject, body); err != nil {
				d.app.Logger.Error("reminder scan: send failed",
					zap.String("booking_id", b.ID), zap.Error(err))
			}
		}
	}
}

func (d *Digest) localToday(tz string) string {
	return d.localDate(d.now(), tz)
}

func (d *Digest) localDate(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}
