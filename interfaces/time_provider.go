package interfaces

import "time"

// TimeProvider supplies the current time. Injected so Registry/Pool expiry and janitor sweeps can
// be tested with a fixed clock instead of time.Now(). Constructed in cmd/gateway/main.go as
// service.NewTimeProvider(func() time.Time { return time.Now().UTC() }).
type TimeProvider interface {
	// Now returns the current time: UTC in production, a fixed instant in tests.
	Now() time.Time
}
