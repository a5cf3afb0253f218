package mgs

// State is the lifecycle state of a Producer.
type State int32

const (
	// StateStarting indicates the producer is waiting for the source's
	// initial snapshot.
	StateStarting State = iota

	// StateRunning indicates the last snapshot was built from clean reads.
	StateRunning

	// StateDegraded indicates at least one field of the last snapshot fell
	// back to its default because the source call or decode failed. The
	// producer keeps running.
	StateDegraded

	// StateStopped indicates the watch ended, either by cancellation or
	// because the connection to the source was lost. The channel is closed
	// and holds the last published value.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDegraded:
		return "degraded"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
