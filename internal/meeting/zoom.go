package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	zoomTokenURL = "https://zoom.us/oauth/token"
	zoomAPIURL   = "https://api.zoom.us/v2"
)

type ZoomCredentials struct {
	AccountID    string
	ClientID     string
	ClientSecret string
}

func (c ZoomCredentials) complete() bool {
	return c.AccountID != "" && c.ClientID != "" && c.ClientSecret != ""
}

// Zoom uses server-to-server OAuth. Credentials are read on every call so
// settings edits take effect without a restart.
type Zoom struct {
	Credentials func() ZoomCredentials
	Location    *time.Location
	TokenURL    string
	BaseURL     string

	mu     sync.Mutex
	key    ZoomCredentials
	source oauth2.TokenSource
}

func NewZoom(creds func() ZoomCredentials, loc *time.Location) *Zoom {
	return &Zoom{Credentials: creds, Location: loc, TokenURL: zoomTokenURL, BaseURL: zoomAPIURL}
}

// Enabled reports whether an account is configured.
func (z *Zoom) Enabled() bool {
	return z != nil && z.Credentials != nil && z.Credentials().AccountID != ""
}

type zoomMeetingRequest struct {
	Topic     string       `json:"topic"`
	Type      int          `json:"type"`
	StartTime string       `json:"start_time"`
	Duration  int          `json:"duration"`
	Timezone  string       `json:"timezone"`
	Settings  zoomSettings `json:"settings"`
}

type zoomSettings struct {
	JoinBeforeHost bool   `json:"join_before_host"`
	WaitingRoom    bool   `json:"waiting_room"`
	AutoRecording  string `json:"auto_recording"`
}

type zoomMeetingResponse struct {
	ID      int64  `json:"id"`
	JoinURL string `json:"join_url"`
	Message string `json:"message"`
}

func (z *Zoom) CreateMeeting(ctx context.Context, req Request) (Meeting, error) {
	ts, err := z.tokenSource()
	if err != nil {
		return Meeting{}, err
	}
	loc := z.Location
	if loc == nil {
		loc = time.UTC
	}
	body, err := json.Marshal(zoomMeetingRequest{
		Topic:     req.Title,
		Type:      2,
		StartTime: req.Start.In(loc).Format("2006-01-02T15:04:05"),
		Duration:  int(req.end().Sub(req.Start).Minutes()),
		Timezone:  loc.String(),
		Settings:  zoomSettings{JoinBeforeHost: true, AutoRecording: "none"},
	})
	if err != nil {
		return Meeting{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, z.BaseURL+"/users/me/meetings", bytes.NewReader(body))
	if err != nil {
		return Meeting{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := oauth2.NewClient(ctx, ts)
	client.Timeout = 15 * time.Second
	resp, err := client.Do(httpReq)
	if err != nil {
		return Meeting{}, fmt.Errorf("zoom create meeting: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var out zoomMeetingResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode >= 300 || out.JoinURL == "" {
		msg := out.Message
		if msg == "" {
			msg = string(raw)
		}
		return Meeting{}, fmt.Errorf("zoom create meeting: status %d: %s", resp.StatusCode, msg)
	}
	return Meeting{URL: out.JoinURL, EventID: strconv.FormatInt(out.ID, 10)}, nil
}

func (z *Zoom) tokenSource() (oauth2.TokenSource, error) {
	creds := ZoomCredentials{}
	if z.Credentials != nil {
		creds = z.Credentials()
	}
	if !creds.complete() {
		return nil, errors.New("zoom credentials are incomplete: set ZOOM_ACCOUNT_ID, ZOOM_CLIENT_ID and ZOOM_CLIENT_SECRET")
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.source != nil && z.key == creds {
		return z.source, nil
	}
	cfg := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     z.TokenURL,
		EndpointParams: url.Values{
			"grant_type": {"account_credentials"},
			"account_id": {creds.AccountID},
		},
		AuthStyle: oauth2.AuthStyleInHeader,
	}
	z.key = creds
	z.source = cfg.TokenSource(context.Background())
	return z.source, nil
}
