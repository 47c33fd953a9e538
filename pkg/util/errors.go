package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for session and ingress failure classification.
var (
	ErrNotConnected     = errors.New("session not connected")
	ErrAlreadyConnected = errors.New("session already connected")
	ErrFaulted          = errors.New("session faulted")
	ErrUnknownDevice    = errors.New("unknown device")
	ErrPlanRejected     = errors.New("plan rejected by device")
	ErrBadEnvelope      = errors.New("malformed ingress envelope")
	ErrBadTopic         = errors.New("malformed topic")
)

// TransportError represents a transient transport/protocol fault. Per the
// error taxonomy, these never surface past the first successful connect —
// they are only observable through a status-changed(Faulted) event.
type TransportError struct {
	Device string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport fault on %s during %s: %v", e.Device, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a fault attributed to device/op.
func NewTransportError(device, op string, err error) *TransportError {
	return &TransportError{Device: device, Op: op, Err: err}
}

// EnvelopeError represents a malformed ingress JSON payload or topic. These
// are logged and dropped, never propagated as a fault.
type EnvelopeError struct {
	Topic   string
	Reason  string
	Details string
}

func (e *EnvelopeError) Error() string {
	msg := fmt.Sprintf("bad envelope on %s: %s", e.Topic, e.Reason)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *EnvelopeError) Unwrap() error {
	return ErrBadEnvelope
}

// NewEnvelopeError creates an ingress envelope error.
func NewEnvelopeError(topic, reason, details string) *EnvelopeError {
	return &EnvelopeError{Topic: topic, Reason: reason, Details: details}
}

// ValidationError represents one or more validation failures, e.g. from
// loading a gateway config file.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// NewValidationError creates a validation error from messages.
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder accumulates validation errors.
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false.
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message unconditionally.
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors.
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors.
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
