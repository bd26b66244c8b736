package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSlotsRecurringByWeekday(t *testing.T) {
	profile := &Profile{
		Timezone: "UTC",
		Recurring: []AvailabilityRule{
			{Day: "Monday", StartTime: "09:00", EndTime: "12:00"},
			{Day: "Monday", StartTime: "14:00", EndTime: "17:00"},
			{Day: "Tuesday", StartTime: "10:00", EndTime: "11:00"},
		},
	}

	// 2025-06-02 is a Monday.
	windows, err := ResolveSlots(profile, "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, []Window{
		{StartTime: "09:00", EndTime: "12:00"},
		{StartTime: "14:00", EndTime: "17:00"},
	}, windows)

	windows, err = ResolveSlots(profile, "2025-06-03")
	require.NoError(t, err)
	assert.Equal(t, []Window{{StartTime: "10:00", EndTime: "11:00"}}, windows)
}

func TestResolveSlotsOverrideWinsWholesale(t *testing.T) {
	profile := &Profile{
		Timezone: "UTC",
		Recurring: []AvailabilityRule{
			{Day: "Monday", StartTime: "09:00", EndTime: "12:00"},
		},
		Overrides: []DateOverride{
			{Date: "2025-06-02", StartTime: "14:00", EndTime: "15:00"},
		},
	}

	windows, err := ResolveSlots(profile, "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, []Window{{StartTime: "14:00", EndTime: "15:00"}}, windows,
		"override must fully replace recurring rules, never merge")

	// Other Mondays keep the recurring window.
	windows, err = ResolveSlots(profile, "2025-06-09")
	require.NoError(t, err)
	assert.Equal(t, []Window{{StartTime: "09:00", EndTime: "12:00"}}, windows)
}

func TestResolveSlotsMultipleOverridesSameDate(t *testing.T) {
	profile := &Profile{
		Timezone: "UTC",
		Overrides: []DateOverride{
			{Date: "2025-06-02", StartTime: "08:00", EndTime: "09:00"},
			{Date: "2025-06-02", StartTime: "16:00", EndTime: "18:00"},
			{Date: "2025-06-03", StartTime: "10:00", EndTime: "11:00"},
		},
	}

	windows, err := ResolveSlots(profile, "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, []Window{
		{StartTime: "08:00", EndTime: "09:00"},
		{StartTime: "16:00", EndTime: "18:00"},
	}, windows)
}

func TestResolveSlotsEmptyWhenNothingDefined(t *testing.T) {
	windows, err := ResolveSlots(&Profile{Timezone: "UTC"}, "2025-06-02")
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestResolveSlotsInvalidDate(t *testing.T) {
	_, err := ResolveSlots(&Profile{}, "06/02/2025")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResolveSlotsWeekdayUsesProfileTimezone(t *testing.T) {
	profile := &Profile{
		Timezone: "Pacific/Auckland",
		Recurring: []AvailabilityRule{
			{Day: "Monday", StartTime: "09:00", EndTime: "12:00"},
		},
	}

	// The date names the same weekday regardless of zone offset; the zone
	// must not shift 2025-06-02 onto Sunday or Tuesday.
	windows, err := ResolveSlots(profile, "2025-06-02")
	require.NoError(t, err)
	assert.Len(t, windows, 1)
}

func TestResolveSlotsUnknownTimezoneFallsBackToUTC(t *testing.T) {
	profile := &Profile{
		Timezone: "Not/AZone",
		Recurring: []AvailabilityRule{
			{Day: "Monday", StartTime: "09:00", EndTime: "12:00"},
		},
	}
	windows, err := ResolveSlots(profile, "2025-06-02")
	require.NoError(t, err)
	assert.Len(t, windows, 1)
}

func TestWindowContains(t *testing.T) {
	w := Window{StartTime: "09:00", EndTime: "12:00"}

	assert.True(t, windowContains(w, "09:00", "12:00"))
	assert.True(t, windowContains(w, "10:00", "11:00"))
	assert.False(t, windowContains(w, "08:00", "10:00"))
	assert.False(t, windowContains(w, "11:00", "12:30"))
	assert.False(t, windowContains(w, "11:00", "10:00"), "inverted interval")
	assert.False(t, windowContains(w, "10:00", "10:00"), "empty interval")

	// Windows read from rows that still carry seconds must compare the
	// same as their HH:MM form.
	withSeconds := Window{StartTime: "09:00:00", EndTime: "12:00:00"}
	assert.True(t, windowContains(withSeconds, "09:00", "10:00"))
	assert.True(t, windowContains(withSeconds, "09:00", "12:00"))
}

func TestNormalizeHHMM(t *testing.T) {
	s, err := normalizeHHMM("09:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00", s)

	s, err = normalizeHHMM("09:00:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00", s, "seconds suffix must be dropped")

	_, err = normalizeHHMM("junk")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseHHMM(t *testing.T) {
	h, m, err := parseHHMM("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 30, m)

	// Longer database time strings are truncated to HH:MM.
	h, _, err = parseHHMM("14:00:00")
	require.NoError(t, err)
	assert.Equal(t, 14, h)

	_, _, err = parseHHMM("9am")
	assert.ErrorIs(t, err, ErrValidation)
	_, _, err = parseHHMM("25:00")
	assert.ErrorIs(t, err, ErrValidation)
}
