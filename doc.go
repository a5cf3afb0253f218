// Package mgs keeps status-bar widgets in sync with the system services they
// display.
//
// Every domain (battery, network, audio, workspaces, clock, system load)
// follows the same shape:
//
//	Source → Watcher → Producer → Channel → widget state → redraw
//
// # Channel
//
// Channel is a single-slot, latest-value broadcast cell. The producer
// publishes full snapshots; readers call Current for the latest one or
// Subscribe to wait for the next. Slow readers skip intermediate values.
// Publishing never blocks and is a no-op once the channel is closed, so a
// widget torn down mid-flight never breaks its producer.
//
// # Producer
//
// Producer runs a Watcher, which emits the source's initial snapshot and
// then one snapshot per processed event. Start blocks until the initial
// snapshot is published. When the source is lost the producer stops and
// closes the channel; Done and Channel.Alive expose that to readers.
//
// Sources degrade a single field instead of failing a snapshot:
//
//	data.State = mgs.Fallback(ctx, "state", state, err, upower.StateUnknown)
//
// A producer whose last snapshot contained a fallback reports StateDegraded.
//
// # Registry
//
// Registry shares one producer per domain between all observers. The first
// Acquire starts it, the last Release stops it:
//
//	lease, err := mgs.Acquire(ctx, registry, "upower", upower.Factory(conn), nil)
//	if err != nil {
//	    return err
//	}
//	defer lease.Release()
//
// # Signals
//
// Lifecycle events are emitted through capitan (ProducerStarted,
// FieldFallback, CommandFailed, ...). The logging package turns them into
// log lines.
package mgs
