package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const calendarAPIURL = "https://www.googleapis.com/calendar/v3"

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// Calendar writes events to a Google calendar with an offline refresh token.
type Calendar struct {
	CalendarID func() string
	Location   *time.Location
	BaseURL    string
	client     *http.Client
}

func NewCalendar(clientID, clientSecret, refreshToken string, calendarID func() string, loc *time.Location) *Calendar {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     googleEndpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.events"},
	}
	client := cfg.Client(context.Background(), &oauth2.Token{RefreshToken: refreshToken})
	client.Timeout = 15 * time.Second
	return &Calendar{CalendarID: calendarID, Location: loc, BaseURL: calendarAPIURL, client: client}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type calendarEvent struct {
	Summary        string          `json:"summary"`
	Description    string          `json:"description,omitempty"`
	Start          eventTime       `json:"start"`
	End            eventTime       `json:"end"`
	ConferenceData *conferenceData `json:"conferenceData,omitempty"`
}

type conferenceData struct {
	CreateRequest *createRequest `json:"createRequest,omitempty"`
	EntryPoints   []entryPoint   `json:"entryPoints,omitempty"`
}

type createRequest struct {
	RequestID             string            `json:"requestId"`
	ConferenceSolutionKey map[string]string `json:"conferenceSolutionKey"`
}

type entryPoint struct {
	EntryPointType string `json:"entryPointType"`
	URI            string `json:"uri"`
}

type eventResponse struct {
	ID             string          `json:"id"`
	HangoutLink    string          `json:"hangoutLink"`
	ConferenceData *conferenceData `json:"conferenceData"`
}

// CreateMeet inserts an event with a Google Meet conference attached.
func (c *Calendar) CreateMeet(ctx context.Context, req Request) (Meeting, error) {
	ev := c.event(req)
	ev.ConferenceData = &conferenceData{CreateRequest: &createRequest{
		RequestID:             uuid.NewString(),
		ConferenceSolutionKey: map[string]string{"type": "hangoutsMeet"},
	}}
	resp, err := c.insert(ctx, ev, true)
	if err != nil {
		return Meeting{}, err
	}
	link := resp.HangoutLink
	if resp.ConferenceData != nil {
		for _, ep := range resp.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.URI != "" {
				link = ep.URI
				break
			}
		}
	}
	if link == "" {
		return Meeting{}, fmt.Errorf("calendar event %s has no meet link", resp.ID)
	}
	return Meeting{URL: link, EventID: resp.ID}, nil
}

// CreateEvent inserts a plain event and returns its id.
func (c *Calendar) CreateEvent(ctx context.Context, req Request) (string, error) {
	resp, err := c.insert(ctx, c.event(req), false)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Calendar) event(req Request) calendarEvent {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return calendarEvent{
		Summary:     req.Title,
		Description: req.Description,
		Start:       eventTime{DateTime: req.Start.In(loc).Format(time.RFC3339), TimeZone: loc.String()},
		End:         eventTime{DateTime: req.end().In(loc).Format(time.RFC3339), TimeZone: loc.String()},
	}
}

func (c *Calendar) calendarID() string {
	if c.CalendarID != nil {
		if id := c.CalendarID(); id != "" {
			return id
		}
	}
	return "primary"
}

func (c *Calendar) insert(ctx context.Context, ev calendarEvent, conference bool) (eventResponse, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return eventResponse{}, err
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.BaseURL, url.PathEscape(c.calendarID()))
	if conference {
		endpoint += "?conferenceDataVersion=1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return eventResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return eventResponse{}, fmt.Errorf("calendar insert: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return eventResponse{}, fmt.Errorf("calendar insert: status %d: %s", resp.StatusCode, raw)
	}
	var out eventResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return eventResponse{}, fmt.Errorf("decode calendar response: %w", err)
	}
	return out, nil
}
