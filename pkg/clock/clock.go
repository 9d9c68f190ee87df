// Package clock provides the time source used by portal's polling loops and
// latency measurements so that they can be driven deterministically in tests.
package clock

import (
	"context"
	"time"
)

// Clock reads the current time and sleeps between poll attempts.
type Clock interface {
	// Now returns the current time. Implementations backed by the runtime
	// carry a monotonic reading, so durations between two Now calls are
	// unaffected by wall clock changes.
	Now() time.Time

	// Sleep blocks for d or until ctx is done, whichever comes first.
	// It returns ctx.Err() when the context ends the wait early.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the runtime-backed Clock.
type Real struct{}

// New returns the runtime-backed Clock.
func New() Clock {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
