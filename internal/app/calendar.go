package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// importPageSize bounds one import run; mirrors the reference's 100-event page.
const importPageSize = 100

// Attendee is a calendar participant.
type Attendee struct {
	Email       string
	DisplayName string
}

// EventTime carries either a timed instant (RFC3339) or an all-day date
// (yyyy-mm-dd), exactly one of the two.
type EventTime struct {
	DateTime string
	Date     string
}

// Event is the provider-neutral view of an external calendar event.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       EventTime
	End         EventTime
	Attendees   []Attendee
	Creator     Attendee
}

// EventRequest describes an event to be created during export.
type EventRequest struct {
	Summary       string
	Description   string
	Start         string // RFC3339
	End           string // RFC3339
	AttendeeEmail string
}

// CalendarProvider is the external calendar boundary. The credentials blob is
// opaque to callers; the Google implementation expects a serialized oauth2
// token.
type CalendarProvider interface {
	ListUpcomingEvents(ctx context.Context, credentials []byte) ([]Event, error)
	CreateEvent(ctx context.Context, credentials []byte, req EventRequest) (string, error)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// GoogleCalendar talks to the Google Calendar API on the profile's primary
// calendar.
type GoogleCalendar struct {
	config *oauth2.Config
}

// NewGoogleCalendar builds the provider from OAuth2 client settings. Returns
// nil when the client is not configured, which disables the connect flow.
func NewGoogleCalendar(clientID, clientSecret, redirectURL string) *GoogleCalendar {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &GoogleCalendar{config: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}}
}

// AuthCodeURL starts the OAuth2 consent flow for a profile.
func (g *GoogleCalendar) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades the callback code for a token bundle ready for storage.
func (g *GoogleCalendar) Exchange(ctx context.Context, code string) ([]byte, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange auth code: %v", ErrAuth, err)
	}
	return json.Marshal(token)
}

func (g *GoogleCalendar) service(ctx context.Context, credentials []byte) (*calendar.Service, error) {
	var token oauth2.Token
	if err := json.Unmarshal(credentials, &token); err != nil {
		return nil, fmt.Errorf("%w: invalid calendar credentials", ErrAuth)
	}
	client := g.config.Client(ctx, &token)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%w: create calendar service: %v", ErrExternalService, err)
	}
	return srv, nil
}

func (g *GoogleCalendar) ListUpcomingEvents(ctx context.Context, credentials []byte) ([]Event, error) {
	srv, err := g.service(ctx, credentials)
	if err != nil {
		return nil, err
	}

	events, err := srv.Events.List("primary").
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(nowRFC3339()).
		OrderBy("startTime").
		MaxResults(importPageSize).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %v", ErrExternalService, err)
	}

	out := make([]Event, 0, len(events.Items))
	for _, item := range events.Items {
		e := Event{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
		}
		if item.Start != nil {
			e.Start = EventTime{DateTime: item.Start.DateTime, Date: item.Start.Date}
		}
		if item.End != nil {
			e.End = EventTime{DateTime: item.End.DateTime, Date: item.End.Date}
		}
		for _, a := range item.Attendees {
			e.Attendees = append(e.Attendees, Attendee{Email: a.Email, DisplayName: a.DisplayName})
		}
		if item.Creator != nil {
			e.Creator = Attendee{Email: item.Creator.Email, DisplayName: item.Creator.DisplayName}
		}
		out = append(out, e)
	}
	return out, nil
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, credentials []byte, req EventRequest) (string, error) {
	srv, err := g.service(ctx, credentials)
	if err != nil {
		return "", err
	}

	event := &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       &calendar.EventDateTime{DateTime: req.Start},
		End:         &calendar.EventDateTime{DateTime: req.End},
	}
	if req.AttendeeEmail != "" {
		event.Attendees = []*calendar.EventAttendee{{Email: req.AttendeeEmail}}
	}

	created, err := srv.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: insert event: %v", ErrExternalService, err)
	}
	return created.Id, nil
}
