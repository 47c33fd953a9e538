// Package audit provides audit logging for gateway session lifecycle events.
package audit

import (
	"fmt"
	"time"
)

// Event represents an auditable gateway event: a session lifecycle
// transition, a plan application, or a roster membership change.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Device    string        `json:"device"`
	User      string        `json:"user,omitempty"`
	Type      EventType     `json:"type"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
}

// EventType categorizes audit events
type EventType string

const (
	EventTypeConnect      EventType = "connect"
	EventTypeDisconnect   EventType = "disconnect"
	EventTypeFaulted      EventType = "faulted"
	EventTypeReconnected  EventType = "reconnected"
	EventTypePlanApplied  EventType = "plan_applied"
	EventTypePlanRejected EventType = "plan_rejected"
	EventTypeUserJoined   EventType = "user_joined"
	EventTypeUserLeft     EventType = "user_left"
	EventTypeLeaseExpired EventType = "lease_expired"
)

// Severity indicates the importance of an audit event
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Type        EventType
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event for device.
func NewEvent(device string, eventType EventType) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		Device:    device,
		Type:      eventType,
	}
}

// WithUser attributes the event to a plan's user ID.
func (e *Event) WithUser(user string) *Event {
	e.User = user
	return e
}

// WithSessionID tags the event with the session instance it occurred in.
func (e *Event) WithSessionID(id string) *Event {
	e.SessionID = id
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the time elapsed since the preceding state, e.g.
// how long a session was connected before faulting.
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
