package mgs

import "time"

// MetricsProvider receives callbacks on key producer events. Implement it to
// feed an external metrics system.
type MetricsProvider interface {
	// OnStateChange is called when the producer transitions between states.
	OnStateChange(from, to State)

	// OnPublish is called after a snapshot reaches the channel. Latency is
	// the time from receiving the snapshot to publishing it, debounce included.
	OnPublish(latency time.Duration)

	// OnFallback is called when a field fell back to its default.
	OnFallback(field string)

	// OnSnapshotReceived is called when the watcher delivers a snapshot.
	OnSnapshotReceived()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Embed it to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)  {}
func (NoOpMetricsProvider) OnPublish(_ time.Duration) {}
func (NoOpMetricsProvider) OnFallback(_ string)       {}
func (NoOpMetricsProvider) OnSnapshotReceived()       {}
