package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the pgx-backed Store. The pool is opened and closed by main and
// injected here; nothing in this package caches connections globally.
type DB struct {
	pool *pgxpool.Pool
}

func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (d *DB) CreateProfile(ctx context.Context, p *Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	now := time.Now().UTC()
	q := `INSERT INTO profiles (id, external_subject, email, timezone, hourly_rate, title, about, location, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`
	_, err := d.pool.Exec(ctx, q, p.ID, p.Subject, p.Email, p.Timezone, p.HourlyRate, p.Title, p.About, p.Location, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: profile already exists for %s", ErrConflict, p.Email)
		}
		return fmt.Errorf("create profile: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (d *DB) GetProfile(ctx context.Context, id string) (*Profile, error) {
	return d.getProfile(ctx, `WHERE id=$1`, id)
}

func (d *DB) GetProfileBySubject(ctx context.Context, subject string) (*Profile, error) {
	return d.getProfile(ctx, `WHERE external_subject=$1`, subject)
}

func (d *DB) getProfile(ctx context.Context, where string, arg any) (*Profile, error) {
	q := `SELECT id, external_subject, email, timezone, hourly_rate, title, about, location, google_token, created_at, updated_at
	      FROM profiles ` + where
	var p Profile
	err := d.pool.QueryRow(ctx, q, arg).Scan(
		&p.ID, &p.Subject, &p.Email, &p.Timezone, &p.HourlyRate,
		&p.Title, &p.About, &p.Location, &p.GoogleToken, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if err := d.loadAvailability(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) loadAvailability(ctx context.Context, p *Profile) error {
	rows, err := d.pool.Query(ctx,
		`SELECT id, day, start_time, end_time FROM recurring_availability WHERE profile_id=$1 ORDER BY position, id`, p.ID)
	if err != nil {
		return fmt.Errorf("list recurring availability: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r AvailabilityRule
		if err := rows.Scan(&r.ID, &r.Day, &r.StartTime, &r.EndTime); err != nil {
			return fmt.Errorf("scan recurring availability: %w", err)
		}
		p.Recurring = append(p.Recurring, r)
	}

	orows, err := d.pool.Query(ctx,
		`SELECT id, date, start_time, end_time FROM date_overrides WHERE profile_id=$1 ORDER BY date, id`, p.ID)
	if err != nil {
		return fmt.Errorf("list date overrides: %w", err)
	}
	defer orows.Close()
	for orows.Next() {
		var o DateOverride
		if err := orows.Scan(&o.ID, &o.Date, &o.StartTime, &o.EndTime); err != nil {
			return fmt.Errorf("scan date override: %w", err)
		}
		p.Overrides = append(p.Overrides, o)
	}
	return nil
}

func (d *DB) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, external_subject, email, timezone, google_token FROM profiles ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Subject, &p.Email, &p.Timezone, &p.GoogleToken); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (d *DB) ReplaceAvailability(ctx context.Context, profileID string, rules []AvailabilityRule, overrides []DateOverride) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM recurring_availability WHERE profile_id=$1`, profileID); err != nil {
		return fmt.Errorf("clear recurring availability: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM date_overrides WHERE profile_id=$1`, profileID); err != nil {
		return fmt.Errorf("clear date overrides: %w", err)
	}
	for i, r := range rules {
		if _, err := tx.Exec(ctx,
			`INSERT INTO recurring_availability (profile_id, day, start_time, end_time, position) VALUES ($1,$2,$3,$4,$5)`,
			profileID, r.Day, r.StartTime, r.EndTime, i); err != nil {
			return fmt.Errorf("insert recurring availability: %w", err)
		}
	}
	for _, o := range overrides {
		if _, err := tx.Exec(ctx,
			`INSERT INTO date_overrides (profile_id, date, start_time, end_time) VALUES ($1,$2,$3,$4)`,
			profileID, o.Date, o.StartTime, o.EndTime); err != nil {
			return fmt.Errorf("insert date override: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (d *DB) SaveGoogleToken(ctx context.Context, profileID string, token []byte) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE profiles SET google_token=$1, updated_at=now() WHERE id=$2`, token, profileID)
	if err != nil {
		return fmt.Errorf("save google token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: profile", ErrNotFound)
	}
	return nil
}

const bookingColumns = `id, profile_id, client_name, client_email, message, date, start_time, end_time, status, external_event_id, created_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var extID *string
	err := row.Scan(&b.ID, &b.ProfileID, &b.ClientName, &b.ClientEmail, &b.Message,
		&b.Date, &b.StartTime, &b.EndTime, &b.Status, &extID, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	if extID != nil {
		b.ExternalEventID = *extID
	}
	return &b, nil
}

func (d *DB) InsertBooking(ctx context.Context, b *Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	q := `INSERT INTO bookings (` + bookingColumns + `)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11)`
	_, err := d.pool.Exec(ctx, q, b.ID, b.ProfileID, b.ClientName, b.ClientEmail, b.Message,
		b.Date, b.StartTime, b.EndTime, b.Status, b.ExternalEventID, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slot already booked", ErrConflict)
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	b.CreatedAt = now
	return nil
}

func (d *DB) GetBooking(ctx context.Context, id string) (*Booking, error) {
	b, err := scanBooking(d.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: booking", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (d *DB) listBookings(ctx context.Context, q string, args ...any) ([]Booking, error) {
	rows, err := d.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, nil
}

func (d *DB) ListBookings(ctx context.Context, profileID string) ([]Booking, error) {
	return d.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE profile_id=$1 ORDER BY date, start_time`, profileID)
}

func (d *DB) ListUpcomingByDate(ctx context.Context, profileID, date string) ([]Booking, error) {
	return d.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE profile_id=$1 AND date=$2 AND status='upcoming' ORDER BY start_time`, profileID, date)
}

func (d *DB) ListUnexported(ctx context.Context, profileID string) ([]Booking, error) {
	return d.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE profile_id=$1 AND external_event_id IS NULL AND status='upcoming'
		 ORDER BY date, start_time`, profileID)
}

func (d *DB) UpdateBookingStatus(ctx context.Context, id string, from, to BookingStatus) (bool, error) {
	tag, err := d.pool.Exec(ctx,
		`UPDATE bookings SET status=$1 WHERE id=$2 AND status=$3`, to, id, from)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (d *DB) SetExternalEventID(ctx context.Context, bookingID, eventID string) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE bookings SET external_event_id=$1 WHERE id=$2`, eventID, bookingID)
	if err != nil {
		return fmt.Errorf("set external event id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: booking", ErrNotFound)
	}
	return nil
}

// ReplaceImported runs the reconciler's destructive replace inside one
// transaction so a failed insert never leaves the profile with zero
// calendar-derived bookings.
func (d *DB) ReplaceImported(ctx context.Context, profileID string, fresh []Booking) (int, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM bookings WHERE profile_id=$1 AND external_event_id IS NOT NULL`, profileID); err != nil {
		return 0, fmt.Errorf("delete imported bookings: %w", err)
	}

	now := time.Now().UTC()
	for i := range fresh {
		b := &fresh[i]
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO bookings (`+bookingColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			b.ID, b.ProfileID, b.ClientName, b.ClientEmail, b.Message,
			b.Date, b.StartTime, b.EndTime, b.Status, b.ExternalEventID, now); err != nil {
			return 0, fmt.Errorf("insert imported booking %s: %w", b.ExternalEventID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(fresh), nil
}
