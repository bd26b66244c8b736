package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (a *App) errorJSON(c *gin.Context, err error) {
	status := StatusFromError(err)
	if status == http.StatusInternalServerError {
		a.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// resolveRequester maps the authenticated JWT subject to a profile id,
// falling back to the explicit id for trusted static-token callers.
func (a *App) resolveRequester(c *gin.Context, fallbackProfileID string) (string, error) {
	subject := RequesterID(c, "")
	if subject == "" {
		return fallbackProfileID, nil
	}
	profile, err := a.Store.GetProfileBySubject(c.Request.Context(), subject)
	if err != nil {
		return "", fmt.Errorf("%w: no profile for subject", ErrAuth)
	}
	return profile.ID, nil
}

type createProfileReq struct {
	Subject    string  `json:"subject" binding:"required"`
	Email      string  `json:"email" binding:"required,email"`
	Timezone   string  `json:"timezone,omitempty"`
	HourlyRate float64 `json:"hourly_rate,omitempty"`
	Title      string  `json:"title,omitempty"`
	About      string  `json:"about,omitempty"`
	Location   string  `json:"location,omitempty"`
}

// POST /api/profiles
func (a *App) CreateProfileHandler(c *gin.Context) {
	var req createProfileReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timezone"})
			return
		}
	}

	profile := &Profile{
		Subject:    req.Subject,
		Email:      req.Email,
		Timezone:   req.Timezone,
		HourlyRate: req.HourlyRate,
		Title:      req.Title,
		About:      req.About,
		Location:   req.Location,
	}
	if err := a.Store.CreateProfile(c.Request.Context(), profile); err != nil {
		a.errorJSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

// GET /api/profiles/:id
func (a *App) GetProfileHandler(c *gin.Context) {
	profile, err := a.Store.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type setAvailabilityReq struct {
	Recurring []AvailabilityRule `json:"recurring_availability"`
	Overrides []DateOverride     `json:"date_overrides"`
}

// POST /api/profiles/:id/availability
// Replaces the whole availability definition: recurring rules plus overrides.
func (a *App) SetAvailabilityHandler(c *gin.Context) {
	profileID := c.Param("id")
	var req setAvailabilityReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateAvailability(req.Recurring, req.Overrides); err != nil {
		a.errorJSON(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := a.Store.GetProfile(ctx, profileID); err != nil {
		a.errorJSON(c, err)
		return
	}
	if err := a.Store.ReplaceAvailability(ctx, profileID, req.Recurring, req.Overrides); err != nil {
		a.errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

var weekdayNames = map[string]bool{
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
	"Friday": true, "Saturday": true, "Sunday": true,
}

// validateAvailability checks the definition and rewrites every time field
// to canonical HH:MM so the stored strings compare cleanly at booking time.
func validateAvailability(rules []AvailabilityRule, overrides []DateOverride) error {
	for i := range rules {
		r := &rules[i]
		if !weekdayNames[r.Day] {
			return fmt.Errorf("%w: unknown weekday %q", ErrValidation, r.Day)
		}
		var err error
		if r.StartTime, r.EndTime, err = normalizeWindow(r.StartTime, r.EndTime); err != nil {
			return err
		}
	}
	for i := range overrides {
		o := &overrides[i]
		if _, err := time.Parse(dateLayout, o.Date); err != nil {
			return fmt.Errorf("%w: invalid override date %q", ErrValidation, o.Date)
		}
		var err error
		if o.StartTime, o.EndTime, err = normalizeWindow(o.StartTime, o.EndTime); err != nil {
			return err
		}
	}
	return nil
}

func normalizeWindow(start, end string) (string, string, error) {
	s, err := normalizeHHMM(start)
	if err != nil {
		return "", "", err
	}
	e, err := normalizeHHMM(end)
	if err != nil {
		return "", "", err
	}
	if e <= s {
		return "", "", fmt.Errorf("%w: end_time %s must be after start_time %s", ErrValidation, e, s)
	}
	return s, e, nil
}

// GET /api/profiles/:id/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	profile, err := a.Store.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, setAvailabilityReq{Recurring: profile.Recurring, Overrides: profile.Overrides})
}

// GET /api/availability?owner_id=...&date=yyyy-mm-dd
// The public slot lookup behind a booking page.
func (a *App) ResolveAvailabilityHandler(c *gin.Context) {
	ownerID := c.Query("owner_id")
	date := c.Query("date")
	if ownerID == "" || date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id and date required"})
		return
	}
	profile, err := a.Store.GetProfile(c.Request.Context(), ownerID)
	if err != nil {
		a.errorJSON(c, err)
		return
	}
	windows, err := ResolveSlots(profile, date)
	if err != nil {
		a.errorJSON(c, err)
		return
	}
	if windows == nil {
		windows = []Window{}
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "slots": windows})
}

type createBookingReq struct {
	OwnerID string      `json:"owner_id" binding:"required"`
	Slot    SlotRequest `json:"slot" binding:"required"`
	Client  ClientInfo  `json:"client" binding:"required"`
}

// POST /api/bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	var req createBookingReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	booking, err := a.CreateBooking(c.Request.Context(), req.OwnerID, req.Slot, req.Client)
	if err != nil {
		a.errorJSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GET /api/profiles/:id/bookings
func (a *App) ListBookingsHandler(c *gin.Context) {
	bookings, err := a.Store.ListBookings(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.errorJSON(c, err)
		return
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	c.JSON(http.StatusOK, bookings)
}

type updateStatusReq struct {
	Status      BookingStatus `json:"status" binding:"required"`
	RequesterID string        `json:"requester_id,omitempty"`
}

// POST /api/bookings/:id/status
func (a *App) UpdateStatusHandler(c *gin.Context) {
	var req updateStatusReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	requesterID, err := a.resolveRequester(c, req.RequesterID)
	if err != nil {
		a.errorJSON(c, err)
		return
	}
	booking, err := a.UpdateStatus(c.Request.Context(), c.Param("id"), requesterID, req.Status)
	if err != nil {
		a.errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

type syncReq struct {
	ProfileID string `json:"profile_id" binding:"required"`
}

// POST /api/calendar/sync
func (a *App) SyncHandler(c *gin.Context) {
	var req syncReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := a.Sync(c.Request.Context(), req.ProfileID)
	if err != nil {
		a.errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/calendar/connect?profile_id=...
// Starts the OAuth2 consent flow for the profile's Google Calendar.
func (a *App) CalendarConnectHandler(c *gin.Context) {
	google, ok := a.Calendar.(*GoogleCalendar)
	if a.Calendar == nil || !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google Calendar not configured"})
		return
	}
	profileID := c.Query("profile_id")
	if profileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile_id required"})
		return
	}
	if _, err := a.Store.GetProfile(c.Request.Context(), profileID); err != nil {
		a.errorJSON(c, err)
		return
	}

	// The state round-trips the profile id through the consent screen.
	state := fmt.Sprintf("profile_%s_%d", profileID, time.Now().Unix())
	c.JSON(http.StatusOK, gin.H{
		"auth_url": google.AuthCodeURL(state),
		"state":    state,
	})
}

// GET /oauth2callback
// Completes the consent flow and stores the token bundle on the profile.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	google, ok := a.Calendar.(*GoogleCalendar)
	if a.Calendar == nil || !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google Calendar not configured"})
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	profileID := profileIDFromState(state)
	if profileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}

	tokenJSON, err := google.Exchange(c.Request.Context(), code)
	if err != nil {
		a.errorJSON(c, err)
		return
	}
	if err := a.Store.SaveGoogleToken(c.Request.Context(), profileID, tokenJSON); err != nil {
		a.errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "calendar connected", "profile_id": profileID})
}

func profileIDFromState(state string) string {
	// state format: profile_<id>_<unix>
	if !strings.HasPrefix(state, "profile_") {
		return ""
	}
	rest := strings.TrimPrefix(state, "profile_")
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 {
		return ""
	}
	return rest[:i]
}
