package mgs

import "github.com/zoobzio/capitan"

// Producer lifecycle signals.
var (
	// ProducerStarted is emitted when a producer begins watching its source.
	ProducerStarted = capitan.NewSignal(
		"mgs.producer.started",
		"Producer watching started",
	)

	// ProducerStopped is emitted when a producer's watch ends.
	ProducerStopped = capitan.NewSignal(
		"mgs.producer.stopped",
		"Producer watching stopped",
	)

	// ProducerStateChanged is emitted when a producer transitions between states.
	ProducerStateChanged = capitan.NewSignal(
		"mgs.producer.state.changed",
		"Producer state transition",
	)
)

// Snapshot signals.
var (
	// SnapshotPublished is emitted after a snapshot reaches the channel.
	SnapshotPublished = capitan.NewSignal(
		"mgs.snapshot.published",
		"Snapshot published to channel",
	)

	// FieldFallback is emitted when a source read or decode failed and the
	// field was replaced by its default.
	FieldFallback = capitan.NewSignal(
		"mgs.field.fallback",
		"Field fell back to default",
	)
)

// Registry and write-back signals.
var (
	// DomainAcquired is emitted when a lease on a domain is taken.
	DomainAcquired = capitan.NewSignal(
		"mgs.registry.acquired",
		"Domain lease acquired",
	)

	// DomainReleased is emitted when a lease on a domain is returned.
	DomainReleased = capitan.NewSignal(
		"mgs.registry.released",
		"Domain lease released",
	)

	// CommandFailed is emitted when a user-initiated command against a
	// source fails. The widget stays at its last known state.
	CommandFailed = capitan.NewSignal(
		"mgs.command.failed",
		"Write-back command failed",
	)
)
