package resolver

import (
	"context"
	"sync"
)

// Lazy holds a value that is loaded on first use. The first load that
// completes is memoized, error included. A load cut short by its caller's
// context is not, and the next Get tries again. Lazy is safe for
// concurrent use.
type Lazy[T any] struct {
	mu    sync.Mutex
	done  bool
	value T
	err   error
	load  func(ctx context.Context) (T, error)
}

// Deferred returns a Lazy that calls load on first Get.
func Deferred[T any](load func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{load: load}
}

// Ready returns an already loaded Lazy.
func Ready[T any](v T) *Lazy[T] {
	return &Lazy[T]{done: true, value: v}
}

// Get loads the value if needed and returns it.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return l.value, l.err
	}
	if l.load == nil {
		l.done = true
		return l.value, l.err
	}
	v, err := l.load(ctx)
	if err != nil && ctx.Err() != nil {
		return v, err
	}
	l.value, l.err, l.done = v, err, true
	return l.value, l.err
}

// Loaded reports whether Get has already run.
func (l *Lazy[T]) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}
