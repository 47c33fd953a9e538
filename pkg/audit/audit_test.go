package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEvent_New(t *testing.T) {
	event := NewEvent("acme/gw-01/robot/R1", EventTypePlanApplied)

	if event.Device != "acme/gw-01/robot/R1" {
		t.Errorf("Device = %q, want %q", event.Device, "acme/gw-01/robot/R1")
	}
	if event.Type != EventTypePlanApplied {
		t.Errorf("Type = %q, want %q", event.Type, EventTypePlanApplied)
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestEvent_Chaining(t *testing.T) {
	event := NewEvent("acme/gw-01/robot/R1", EventTypePlanApplied).
		WithUser("u1").
		WithSessionID("sess-42").
		WithSuccess().
		WithDuration(time.Second)

	if event.User != "u1" {
		t.Errorf("User = %q", event.User)
	}
	if event.SessionID != "sess-42" {
		t.Errorf("SessionID = %q", event.SessionID)
	}
	if !event.Success {
		t.Error("Success should be true")
	}
	if event.Duration != time.Second {
		t.Errorf("Duration = %v", event.Duration)
	}
}

func TestEvent_WithError(t *testing.T) {
	event := NewEvent("acme/gw-01/plc/P1", EventTypePlanRejected).
		WithError(errors.New("field cap exceeded"))

	if event.Success {
		t.Error("Success should be false after WithError")
	}
	if event.Error != "field cap exceeded" {
		t.Errorf("Error = %q", event.Error)
	}
}

func newTestLogger(t *testing.T) (*FileLogger, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	l, err := NewFileLogger(path, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	return l, path
}

func TestFileLogger_LogAndQuery(t *testing.T) {
	l, _ := newTestLogger(t)
	defer l.Close()

	if err := l.Log(NewEvent("acme/gw-01/robot/R1", EventTypeConnect).WithSuccess()); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := l.Log(NewEvent("acme/gw-01/robot/R1", EventTypeFaulted).WithError(errors.New("read timeout"))); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := l.Log(NewEvent("acme/gw-01/plc/P1", EventTypePlanApplied).WithUser("u1").WithSuccess()); err != nil {
		t.Fatalf("Log: %v", err)
	}

	events, err := l.Query(Filter{Device: "acme/gw-01/robot/R1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for device, got %d", len(events))
	}

	events, err = l.Query(Filter{FailureOnly: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventTypeFaulted {
		t.Fatalf("expected 1 faulted event, got %+v", events)
	}

	events, err = l.Query(Filter{User: "u1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 || events[0].Device != "acme/gw-01/plc/P1" {
		t.Fatalf("expected plc plan event for u1, got %+v", events)
	}
}

func TestFileLogger_QueryMissingFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(filepath.Join(dir, "audit.jsonl"), RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer l.Close()

	if err := os.Remove(l.path); err != nil {
		t.Fatalf("removing log file: %v", err)
	}

	events, err := l.Query(Filter{})
	if err != nil {
		t.Fatalf("Query on missing file should not error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestFileLogger_LimitAndOffset(t *testing.T) {
	l, _ := newTestLogger(t)
	defer l.Close()

	for i := 0; i < 5; i++ {
		if err := l.Log(NewEvent("acme/gw-01/robot/R1", EventTypeConnect)); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	events, err := l.Query(Filter{Offset: 2, Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}

func TestDefaultLogger(t *testing.T) {
	l, _ := newTestLogger(t)
	defer l.Close()

	SetDefaultLogger(l)
	defer SetDefaultLogger(nil)

	if err := Log(NewEvent("acme/gw-01/robot/R1", EventTypeUserJoined).WithUser("u1")); err != nil {
		t.Fatalf("Log: %v", err)
	}

	events, err := Query(Filter{Type: EventTypeUserJoined})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}

func TestDefaultLogger_NoneConfigured(t *testing.T) {
	SetDefaultLogger(nil)

	if err := Log(NewEvent("acme/gw-01/robot/R1", EventTypeConnect)); err != nil {
		t.Errorf("Log with no default logger should be a no-op, got %v", err)
	}

	events, err := Query(Filter{})
	if err != nil {
		t.Errorf("Query with no default logger should not error, got %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}
