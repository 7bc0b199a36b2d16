package events

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies what happened to a session. It only exists on the producer
// side; Event.Type always carries the normalized string.
type Type string

const (
	SessionCreated   Type = "session_created"
	SessionUpdated   Type = "session_updated"
	SessionDeleted   Type = "session_deleted"
	SessionActivated Type = "session_activated"
	SessionCompleted Type = "session_completed"
	BulkOperation    Type = "bulk_operation"
	CleanupPerformed Type = "cleanup_performed"
	ErrorOccurred    Type = "error_occurred"
)

// Event is the payload handed to every Sink.
type Event struct {
	ID            string         `json:"event_id"`
	Type          string         `json:"event_type"`
	SessionID     string         `json:"session_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Details       map[string]any `json:"details"`
	CorrelationID string         `json:"correlation_id"`
}

// New builds an event. kind may be a Type, a plain string or anything with a
// String method; it is normalized exactly once here.
func New(kind any, sessionID string, details map[string]any, correlationID string) Event {
	if details == nil {
		details = map[string]any{}
	}
	return Event{
		ID:            uuid.NewString(),
		Type:          Normalize(kind),
		SessionID:     sessionID,
		Details:       details,
		CorrelationID: correlationID,
	}
}

// MarshalJSON renders empty session and correlation ids as null.
func (e Event) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID            string         `json:"event_id"`
		Type          string         `json:"event_type"`
		SessionID     *string        `json:"session_id"`
		Timestamp     time.Time      `json:"timestamp"`
		Details       map[string]any `json:"details"`
		CorrelationID *string        `json:"correlation_id"`
	}
	w := wire{
		ID:        e.ID,
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Details:   e.Details,
	}
	if e.SessionID != "" {
		w.SessionID = &e.SessionID
	}
	if e.CorrelationID != "" {
		w.CorrelationID = &e.CorrelationID
	}
	return json.Marshal(w)
}

// Normalize coerces an enum-like value into its lowercase string form. It is
// the single conversion point for event types, statuses and operation names
// crossing a package boundary.
func Normalize(v any) string {
	if v == nil {
		return ""
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.String {
			s = rv.String()
		} else {
			s = fmt.Sprint(v)
		}
	}

	return strings.ToLower(strings.TrimSpace(s))
}
