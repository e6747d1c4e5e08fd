package runtime

import (
	"context"
	"time"
)

// Clock provides the current time. Implementations can return fixed
// times for deterministic testing.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type clockKey struct{}

// WithClock returns a child context carrying the given Clock. Audit
// timestamps written by the repository use it instead of time.Now().
func WithClock(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, c)
}

// Now returns the current time from the Clock in ctx, or time.Now() if no
// Clock is present. The result is UTC at microsecond precision, the finest
// resolution all supported stores keep.
func Now(ctx context.Context) time.Time {
	t := time.Now()
	if c, ok := ctx.Value(clockKey{}).(Clock); ok {
		t = c.Now()
	}
	return t.UTC().Truncate(time.Microsecond)
}
