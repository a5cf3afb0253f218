package mgs

import (
	"context"
	"sync"
)

// Cloner is implemented by snapshot types that hold reference types (slices,
// maps). Channel uses it to hand readers a copy they cannot use to mutate the
// shared cell.
type Cloner[T any] interface {
	Clone() T
}

// Channel is a single-slot, latest-value broadcast cell. One producer
// publishes into it; any number of readers may read the current value or
// wait for the next change.
//
// A slow reader never blocks the producer. It skips intermediate values and
// always observes the latest one.
type Channel[T any] struct {
	mu      sync.Mutex
	current T
	version uint64
	changed chan struct{}
	closed  bool
	done    chan struct{}
}

// NewChannel creates a Channel holding initial as its current value.
func NewChannel[T any](initial T) *Channel[T] {
	return &Channel[T]{
		current: initial,
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Publish replaces the current value and wakes every waiting subscriber.
// It never blocks and never fails. Publishing to a closed channel is a no-op.
func (c *Channel[T]) Publish(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.current = v
	c.version++
	close(c.changed)
	c.changed = make(chan struct{})
}

// Current returns the latest published value.
func (c *Channel[T]) Current() T {
	c.mu.Lock()
	v := c.current
	c.mu.Unlock()
	return clone(v)
}

// Version returns the number of values published so far.
func (c *Channel[T]) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Close marks the source as lost. Subscribers drain to the latest value and
// then end. Close is idempotent.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.changed)
	close(c.done)
}

// Done returns a channel that is closed once the producer has gone away.
func (c *Channel[T]) Done() <-chan struct{} {
	return c.done
}

// Alive reports whether the channel can still receive new values.
func (c *Channel[T]) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Subscribe starts observing the channel from its current value. The first
// value returned by Next is the first one published after this call.
func (c *Channel[T]) Subscribe() *Subscription[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Subscription[T]{ch: c, seen: c.version}
}

// wait returns the latest value if it is newer than seen. Otherwise it
// returns the channel to block on, or closed=true when nothing newer will
// ever arrive.
func (c *Channel[T]) wait(seen uint64) (v T, version uint64, wake <-chan struct{}, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.version > seen {
		return c.current, c.version, nil, false
	}
	if c.closed {
		return v, seen, nil, true
	}
	return v, seen, c.changed, false
}

// Subscription is one reader's position in a Channel. It is not safe for
// concurrent use; give each reader its own.
type Subscription[T any] struct {
	ch   *Channel[T]
	seen uint64
}

// Next blocks until a value newer than the last one returned is published
// and returns it. It returns false when ctx ends or the channel is closed
// with nothing newer to deliver.
func (s *Subscription[T]) Next(ctx context.Context) (T, bool) {
	for {
		v, version, wake, closed := s.ch.wait(s.seen)
		if closed {
			var zero T
			return zero, false
		}
		if wake == nil {
			s.seen = version
			return clone(v), true
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-wake:
		}
	}
}

// Stream pumps Next into a Go channel. The returned channel is closed when
// ctx ends or the source is lost. Values the reader is too slow to take are
// replaced by newer ones.
func (s *Subscription[T]) Stream(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			v, ok := s.Next(ctx)
			if !ok {
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func clone[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}
