package service

import (
	"time"

	"botgateway/helpers"
	"botgateway/interfaces"
)

// timeProvider implements interfaces.TimeProvider by delegating to an injected now func. Built in
// cmd/gateway/main.go with time.Now().UTC; tests use a fixed func for deterministic heartbeat and
// expiry behavior.
type timeProvider struct {
	now func() time.Time
}

// NewTimeProvider creates a TimeProvider around now. Panics on nil now.
func NewTimeProvider(now func() time.Time) interfaces.TimeProvider {
	return &timeProvider{now: helpers.NilPanic(now, "service.time_provider.go: now is required")}
}

// Now returns the current time from the injected function.
func (t *timeProvider) Now() time.Time {
	return t.now()
}
