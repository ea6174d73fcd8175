package townboxsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Townbox HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Meeting represents the API meeting model (partial).
type Meeting struct {
	ID             string     `json:"id"`
	BodyID         string     `json:"body_id"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	ScheduledStart time.Time  `json:"scheduled_start"`
	IsEmergency    bool       `json:"is_emergency"`
	NoticePostedAt *time.Time `json:"notice_posted_at,omitempty"`
}

// Quorum is the result of a quorum evaluation.
type Quorum struct {
	TotalSeats        int  `json:"total_seats"`
	PresentMembers    int  `json:"present_members"`
	RecusedMembers    int  `json:"recused_members"`
	RequiredForQuorum int  `json:"required_for_quorum"`
	EligibleVoters    int  `json:"eligible_voters"`
	IsQuorumMet       bool `json:"is_quorum_met"`
}

// Publication is one required newspaper publication.
type Publication struct {
	Number                int       `json:"number"`
	LatestPublicationDate time.Time `json:"latest_publication_date"`
	SubmissionDeadline    time.Time `json:"submission_deadline"`
}

// Deadlines is a deadline calculation for a hearing.
type Deadlines struct {
	HearingDate                time.Time     `json:"hearing_date"`
	NoticeReason               string        `json:"notice_reason"`
	RequiredPublications       []Publication `json:"required_publications"`
	EarliestSubmissionDeadline time.Time     `json:"earliest_submission_deadline"`
	HasDeadline                bool          `json:"has_deadline"`
	RiskLevel                  string        `json:"risk_level"`
	RiskMessage                string        `json:"risk_message,omitempty"`
}

// Hearing represents a scheduled public hearing.
type Hearing struct {
	ID           string    `json:"id"`
	MeetingID    string    `json:"meeting_id,omitempty"`
	Title        string    `json:"title"`
	NoticeReason string    `json:"notice_reason"`
	HearingDate  time.Time `json:"hearing_date"`
	Deadlines    Deadlines `json:"deadlines"`
	RiskLevel    string    `json:"risk_level"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code and StatutoryCite are filled from
// the error envelope when the body carries one.
type APIError struct {
	StatusCode    int
	Code          string
	Message       string
	StatutoryCite string
	Body          string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateMeeting creates a meeting in DRAFT.
func (c *Client) CreateMeeting(ctx context.Context, bodyID, title string, start time.Time, emergency bool) (Meeting, error) {
	body := map[string]any{
		"body_id":         bodyID,
		"title":           title,
		"scheduled_start": start.Format(time.RFC3339),
		"is_emergency":    emergency,
	}
	var resp Meeting
	err := c.do(ctx, http.MethodPost, "meetings", body, &resp)
	return resp, err
}

// TransitionMeeting moves a meeting to status to.
func (c *Client) TransitionMeeting(ctx context.Context, id, to string) (Meeting, error) {
	var resp Meeting
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("meetings/%s/transition", url.PathEscape(id)), map[string]any{"to": to}, &resp)
	return resp, err
}

// Quorum evaluates quorum for a meeting, optionally for one agenda item.
func (c *Client) Quorum(ctx context.Context, meetingID, agendaItemID string) (Quorum, error) {
	endpoint := fmt.Sprintf("meetings/%s/quorum", url.PathEscape(meetingID))
	if agendaItemID != "" {
		endpoint += "?agenda_item_id=" + url.QueryEscape(agendaItemID)
	}
	var resp Quorum
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CalculateDeadlines computes publication deadlines for a hearing date
// formatted YYYY-MM-DD.
func (c *Client) CalculateDeadlines(ctx context.Context, hearingDate, reason string) (Deadlines, error) {
	var resp Deadlines
	err := c.do(ctx, http.MethodPost, "deadlines/calculate", map[string]any{
		"hearing_date":  hearingDate,
		"notice_reason": reason,
	}, &resp)
	return resp, err
}

// ScheduleHearing schedules a hearing and records its deadlines.
func (c *Client) ScheduleHearing(ctx context.Context, title, hearingDate, reason string) (Hearing, error) {
	var resp Hearing
	err := c.do(ctx, http.MethodPost, "hearings", map[string]any{
		"title":         title,
		"hearing_date":  hearingDate,
		"notice_reason": reason,
	}, &resp)
	return resp, err
}

// Hearings lists hearings, filtered by risk level when risk is set.
func (c *Client) Hearings(ctx context.Context, risk string) ([]Hearing, error) {
	endpoint := "hearings"
	if risk != "" {
		endpoint += "?risk=" + url.QueryEscape(risk)
	}
	var resp []Hearing
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RefreshRisk re-assesses every open hearing and returns the ones that changed.
func (c *Client) RefreshRisk(ctx context.Context) ([]Hearing, error) {
	var resp []Hearing
	err := c.do(ctx, http.MethodPost, "hearings/refresh-risk", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code          string `json:"code"`
				Message       string `json:"message"`
				StatutoryCite string `json:"statutoryCite"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
			apiErr.StatutoryCite = envelope.Error.StatutoryCite
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) url(endpoint string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}
