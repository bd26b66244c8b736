package app

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ResolveSlots computes the bookable windows for one calendar date.
//
// Override semantics: if any date override exists for the date it wins
// wholesale and recurring rules are ignored, even when the override leaves
// the day narrower than the weekly schedule. Otherwise recurring rules are
// filtered by the date's weekday, computed in the profile's timezone.
//
// Windows are advisory; overlap between them is not detected here. Conflict
// prevention happens at booking time in the ledger.
func ResolveSlots(profile *Profile, date string) ([]Window, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, want yyyy-mm-dd", ErrValidation, date)
	}

	var windows []Window
	for _, o := range profile.Overrides {
		if o.Date == date {
			windows = append(windows, Window{StartTime: o.StartTime, EndTime: o.EndTime})
		}
	}
	if len(windows) > 0 {
		return windows, nil
	}

	weekday := weekdayIn(day, profile.Timezone)
	for _, r := range profile.Recurring {
		if r.Day == weekday {
			windows = append(windows, Window{StartTime: r.StartTime, EndTime: r.EndTime})
		}
	}
	return windows, nil
}

// weekdayIn names the weekday of a date as seen from the given timezone.
// The date is wall clock midnight in that zone, so the zone only matters for
// invalid names, which fall back to UTC.
func weekdayIn(day time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	local := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return local.Weekday().String()
}

// parseHHMM validates an HH:MM wall clock string and returns its components.
func parseHHMM(s string) (hour, minute int, err error) {
	if len(s) < 5 {
		return 0, 0, fmt.Errorf("%w: invalid time string %q", ErrValidation, s)
	}
	tt, err := time.Parse("15:04", s[:5]) // tolerate "09:00:00" from older rows
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid time string %q", ErrValidation, s)
	}
	return tt.Hour(), tt.Minute(), nil
}

// normalizeHHMM validates a wall clock string and returns its canonical
// HH:MM form, dropping any seconds suffix. Everything written to the store
// goes through this, so comparisons stay plain string comparisons.
func normalizeHHMM(s string) (string, error) {
	if _, _, err := parseHHMM(s); err != nil {
		return "", err
	}
	return s[:5], nil
}

// clock truncates a stored time string to HH:MM. Rows written before
// normalization may still carry seconds.
func clock(s string) string {
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

// windowContains reports whether [start,end) fits inside the window.
// start and end must be canonical HH:MM; window times are truncated to
// HH:MM, and zero-padded HH:MM compares correctly as strings.
func windowContains(w Window, start, end string) bool {
	return clock(w.StartTime) <= start && end <= clock(w.EndTime) && start < end
}

// localInstant combines a date and HH:MM into an absolute instant in the
// profile's timezone.
func localInstant(date, hhmm, tz string) (time.Time, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrValidation, date)
	}
	hour, minute, err := parseHHMM(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	loc, lerr := time.LoadLocation(tz)
	if lerr != nil || tz == "" {
		loc = time.UTC
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}
