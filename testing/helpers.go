// Package testing provides test utilities for producers and channels.
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/wuliuqii/mgs"
)

// Sample is a small snapshot type for exercising producers in tests.
type Sample struct {
	Value int
	Label string
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return condition()
}

// WaitForState waits until the producer reaches the expected state or timeout occurs.
func WaitForState[T any](t *testing.T, p *mgs.Producer[T], expected mgs.State, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return p.State() == expected
	})
}

// RequireState fails the test immediately if the producer is not in the expected state.
func RequireState[T any](t *testing.T, p *mgs.Producer[T], expected mgs.State) {
	t.Helper()
	if got := p.State(); got != expected {
		t.Fatalf("expected state %s, got %s", expected, got)
	}
}

// RequireCurrent fails the test if the channel's current value does not pass check.
func RequireCurrent[T any](t *testing.T, ch *mgs.Channel[T], check func(T) bool) {
	t.Helper()
	if v := ch.Current(); !check(v) {
		t.Fatalf("current value check failed: %+v", v)
	}
}

// NextWithin returns the next value published on sub, failing the test if
// none arrives within timeout.
func NextWithin[T any](t *testing.T, sub *mgs.Subscription[T], timeout time.Duration) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	v, ok := sub.Next(ctx)
	if !ok {
		t.Fatalf("no value within %v", timeout)
	}
	return v
}

// NewTestProducer creates a sync-mode producer fed by a buffered channel.
// Send the initial snapshot before Start; call Process to publish each one
// after that. The producer is stopped when the test ends.
func NewTestProducer[T any](t *testing.T, name string) (*mgs.Producer[T], chan<- T) {
	t.Helper()
	ch := make(chan T, 16)
	p := mgs.NewProducer[T](name, mgs.NewSyncChannelWatcher[T](ch)).SyncMode()
	t.Cleanup(p.Stop)
	return p, ch
}
