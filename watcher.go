package mgs

import "context"

// Watcher bridges one external source into typed snapshots.
//
// Implementations fetch the full initial snapshot and emit it first, then
// emit one full snapshot for every processed event. The channel is closed
// when ctx is canceled or the connection to the source is lost.
type Watcher[T any] interface {
	Watch(ctx context.Context) (<-chan T, error)
}

// Errer is optionally implemented by watchers that can explain why their
// channel closed.
type Errer interface {
	Err() error
}
