package locator

// This file adapts the host project's failover trigger system to decide
// whether the Remote Repository or Long-Poll Notifier should move on to
// the next endpoint in SelectOrder's list rather than surface the error.

import (
	"context"
	"errors"
	"net"
)

// Trigger name constants for logging.
const (
	TriggerStatusCode = "status_code"
	TriggerTimeout    = "timeout"
	TriggerConnection = "connection"
)

// FailoverTrigger checks one failure condition that warrants trying the
// next Config Service endpoint instead of surfacing the error.
type FailoverTrigger interface {
	ShouldFailover(err error, statusCode int) bool
	Name() string
}

// StatusCodeTrigger fires on a configured set of HTTP status codes.
type StatusCodeTrigger struct {
	codes []int
}

// NewStatusCodeTrigger creates a trigger for the given status codes.
func NewStatusCodeTrigger(codes ...int) *StatusCodeTrigger {
	return &StatusCodeTrigger{codes: codes}
}

func (t *StatusCodeTrigger) ShouldFailover(_ error, statusCode int) bool {
	for _, code := range t.codes {
		if statusCode == code {
			return true
		}
	}
	return false
}

func (t *StatusCodeTrigger) Name() string { return TriggerStatusCode }

// TimeoutTrigger fires on context deadline exceeded.
type TimeoutTrigger struct{}

// NewTimeoutTrigger creates a trigger for context.DeadlineExceeded.
func NewTimeoutTrigger() *TimeoutTrigger { return &TimeoutTrigger{} }

func (t *TimeoutTrigger) ShouldFailover(err error, _ int) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func (t *TimeoutTrigger) Name() string { return TriggerTimeout }

// ConnectionTrigger fires on net.Error (connection refused, DNS failure,
// network unreachable).
type ConnectionTrigger struct{}

// NewConnectionTrigger creates a trigger for net.Error.
func NewConnectionTrigger() *ConnectionTrigger { return &ConnectionTrigger{} }

func (t *ConnectionTrigger) ShouldFailover(err error, _ int) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (t *ConnectionTrigger) Name() string { return TriggerConnection }

// DefaultTriggers returns the standard failover trigger set: 429/5xx
// status codes, timeouts, and network connection errors.
func DefaultTriggers() []FailoverTrigger {
	return []FailoverTrigger{
		NewStatusCodeTrigger(429, 500, 502, 503, 504),
		NewTimeoutTrigger(),
		NewConnectionTrigger(),
	}
}

// ShouldFailover returns true if any trigger fires for err/statusCode.
func ShouldFailover(triggers []FailoverTrigger, err error, statusCode int) bool {
	for _, trigger := range triggers {
		if trigger.ShouldFailover(err, statusCode) {
			return true
		}
	}
	return false
}
