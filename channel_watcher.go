package mgs

import "context"

// ChannelWatcher wraps an existing Go channel as a Watcher.
// Useful for testing and for sources that already produce snapshots.
type ChannelWatcher[T any] struct {
	ch   <-chan T
	sync bool
}

// NewChannelWatcher creates a ChannelWatcher that forwards values from the
// given channel through an internal goroutine.
func NewChannelWatcher[T any](ch <-chan T) *ChannelWatcher[T] {
	return &ChannelWatcher[T]{ch: ch}
}

// NewSyncChannelWatcher creates a ChannelWatcher that returns the source
// channel directly without an intermediate goroutine.
func NewSyncChannelWatcher[T any](ch <-chan T) *ChannelWatcher[T] {
	return &ChannelWatcher[T]{ch: ch, sync: true}
}

// Watch returns a channel that emits values from the wrapped channel.
func (w *ChannelWatcher[T]) Watch(ctx context.Context) (<-chan T, error) {
	if w.sync {
		return w.ch, nil
	}

	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-w.ch:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
