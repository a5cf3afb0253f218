package mgs

import "github.com/zoobzio/capitan"

// Field keys for producer, registry and command events.
var (
	// KeyProducer is the name of the producer, usually its domain.
	KeyProducer = capitan.NewStringKey("producer")

	// KeyState is the current state of the producer.
	KeyState = capitan.NewStringKey("state")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyField is the snapshot field that fell back to its default.
	KeyField = capitan.NewStringKey("field")

	// KeyCommand is the write-back command that failed.
	KeyCommand = capitan.NewStringKey("command")

	// KeyDebounce is the configured debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")

	// KeyRefs is the number of live leases on a domain.
	KeyRefs = capitan.NewIntKey("refs")

	// KeyVersion is the channel version after a publish.
	KeyVersion = capitan.NewIntKey("version")
)
