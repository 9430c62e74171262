package port

import (
	"context"
	"time"
)

// RateLimitStore tracks request timestamps per identifier for the HTTP
// sliding-window limiter.
type RateLimitStore interface {
	// RecordAttempt stores an attempt at the supplied time.
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error

	// CountAttempts returns how many attempts fall inside the window ending
	// at the reference time.
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)

	// TrimWindow drops attempts older than the window relative to reference.
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error

	// OldestAttempt returns the earliest attempt still inside the window;
	// the boolean reports whether one exists.
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
