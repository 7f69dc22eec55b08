// Package clock abstracts time observation and blocking waits so that the
// fetcher's politeness/backoff delays and the dispatcher's rate-limit waits
// are testable without real sleeping.
package clock

import (
	"context"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for a duration. Implementations must return early when the
// context finishes; a wait that has begun is otherwise uninterruptible.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// System implements Clock and Sleeper against the real clock.
type System struct{}

// New creates a System clock.
func New() *System {
	return &System{}
}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func (System) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
