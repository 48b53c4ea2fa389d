package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/revloop/orchestrator/pkg/eventlog"
	"github.com/revloop/orchestrator/pkg/signing"
)

// MeetingEvent is the canonicalized shape of a calendar/meeting-platform
// lifecycle webhook (meeting scheduled, started, ended).
type MeetingEvent struct {
	ExternalMeetingID string
	CalendarEventID   string
	Title             string
	MeetingURL        string
	Platform          string
	EventType         string
	AttendeeEmails    []string
}

// MeetingHandler reacts to a canonicalized meeting event, implemented by
// pkg/recording's rule-evaluation entry point.
type MeetingHandler interface {
	HandleMeetingEvent(ctx context.Context, ev MeetingEvent) error
}

// Meetings adapts the calendar/meeting-platform webhook to the pipeline.
type Meetings struct {
	secret  string
	handler MeetingHandler
}

// NewMeetings builds the meetings source.
func NewMeetings(secret string, handler MeetingHandler) *Meetings {
	return &Meetings{secret: secret, handler: handler}
}

func (m *Meetings) Name() string { return "meetings" }

func (m *Meetings) Verify(r *http.Request, body []byte) error {
	result := signing.VerifyWebhook(m.secret, string(body), r.Header.Get("X-Signature"), r.Header.Get("X-Timestamp"))
	if !result.OK {
		return fmt.Errorf("meetings webhook: %s", result.Reason)
	}
	return nil
}

type meetingsPayload struct {
	EventType string `json:"event_type"`
	Event     string `json:"event"`
	Meeting   struct {
		ID                string   `json:"id"`
		ExternalID        string   `json:"external_id"`
		CalendarEventID   string   `json:"calendar_event_id"`
		Title             string   `json:"title"`
		Name              string   `json:"name"`
		URL               string   `json:"url"`
		JoinURL           string   `json:"join_url"`
		Platform          string   `json:"platform"`
		AttendeeEmails    []string `json:"attendee_emails"`
		Attendees         []string `json:"attendees"`
	} `json:"meeting"`
	ID string `json:"id"`
}

func (m *Meetings) ParseIdentity(body []byte) (string, string, error) {
	var p meetingsPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", "", fmt.Errorf("decoding meetings payload: %w", err)
	}
	eventType := firstNonEmpty(p.EventType, p.Event, "unknown")
	externalID := firstNonEmpty(p.ID, p.Meeting.ID, p.Meeting.ExternalID)
	return eventType, externalID, nil
}

func (m *Meetings) ResolveOrg(ctx context.Context, body []byte) (string, error) {
	return "", nil // resolved from the owning calendar-connection/org mapping during Process
}

func (m *Meetings) Process(ctx context.Context, event *eventlog.Event) error {
	var p meetingsPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return fmt.Errorf("decoding meetings payload: %w", err)
	}
	attendees := p.Meeting.AttendeeEmails
	if len(attendees) == 0 {
		attendees = p.Meeting.Attendees
	}
	return m.handler.HandleMeetingEvent(ctx, MeetingEvent{
		ExternalMeetingID: firstNonEmpty(p.Meeting.ID, p.Meeting.ExternalID),
		CalendarEventID:   p.Meeting.CalendarEventID,
		Title:             firstNonEmpty(p.Meeting.Title, p.Meeting.Name),
		MeetingURL:        firstNonEmpty(p.Meeting.URL, p.Meeting.JoinURL),
		Platform:          p.Meeting.Platform,
		EventType:         firstNonEmpty(p.EventType, p.Event),
		AttendeeEmails:    attendees,
	})
}
