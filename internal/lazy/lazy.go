// Package lazy memoizes values that must be fetched before use.
package lazy

import (
	"context"
	"sync"
)

type State int

const (
	Unfetched State = iota
	Fetching
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unfetched:
		return "unfetched"
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Fetcher populates one entity. Implementations are the entity variants
// (change, comments, drafts, current user, ...).
type Fetcher[T any] interface {
	Fetch(ctx context.Context) (T, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc[T any] func(ctx context.Context) (T, error)

func (f FetchFunc[T]) Fetch(ctx context.Context) (T, error) {
	return f(ctx)
}

// call is one in-flight fetch. Every caller that arrives while it runs waits
// on done and receives the same outcome.
type call[T any] struct {
	done  chan struct{}
	state State
	value T
	err   error
}

// Entity fetches its value at most once at a time. A successful fetch is kept
// until Reset; a failed fetch returns the entity to Unfetched so the next Get
// tries again.
type Entity[T any] struct {
	fetcher Fetcher[T]

	mu      sync.Mutex
	state   State
	value   T
	flight  *call[T]
	lastErr error
	fetches int
}

func New[T any](f Fetcher[T]) *Entity[T] {
	return &Entity[T]{fetcher: f}
}

// Get returns the cached value, joins the fetch in flight, or starts one.
// The fetch itself is not bound to ctx's cancellation: once started it runs to
// completion and late callers receive its outcome. A caller whose ctx ends
// while waiting stops waiting and gets ctx.Err().
func (e *Entity[T]) Get(ctx context.Context) (T, error) {
	e.mu.Lock()
	switch e.state {
	case Ready:
		v := e.value
		e.mu.Unlock()
		return v, nil
	case Fetching:
		c := e.flight
		e.mu.Unlock()
		return wait(ctx, c)
	}

	c := &call[T]{done: make(chan struct{}), state: Fetching}
	e.state = Fetching
	e.flight = c
	e.fetches++
	e.mu.Unlock()

	go e.run(context.WithoutCancel(ctx), c)
	return wait(ctx, c)
}

func (e *Entity[T]) run(ctx context.Context, c *call[T]) {
	value, err := e.fetcher.Fetch(ctx)

	e.mu.Lock()
	if err != nil {
		c.state = Failed
		c.err = err
	} else {
		c.state = Ready
		c.value = value
	}
	// A call detached by Reset still answers its waiters but is not kept.
	if e.flight == c {
		if err != nil {
			e.lastErr = err
			e.state = Unfetched
		} else {
			e.value = value
			e.lastErr = nil
			e.state = Ready
		}
		e.flight = nil
	}
	e.mu.Unlock()

	close(c.done)
}

func wait[T any](ctx context.Context, c *call[T]) (T, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (e *Entity[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the error of the most recent failed fetch, or nil once a fetch
// has succeeded.
func (e *Entity[T]) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Fetches returns the number of fetches started so far.
func (e *Entity[T]) Fetches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetches
}

// Peek returns the value if it is Ready, without fetching.
func (e *Entity[T]) Peek() (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Ready {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Reset drops the value so the next Get fetches again. A fetch in flight is
// detached: its current waiters still receive its outcome, but it is not
// cached and later callers start a new fetch.
func (e *Entity[T]) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flight = nil
	var zero T
	e.value = zero
	e.state = Unfetched
}
