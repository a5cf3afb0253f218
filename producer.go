package mgs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// ErrAlreadyStarted is returned by Start when called more than once.
var ErrAlreadyStarted = errors.New("producer already started")

// ErrStopped is returned by Start when the producer was stopped before it
// could start.
var ErrStopped = errors.New("producer stopped")

// ErrClosedBeforeInitial is returned by Start when the watcher closes its
// channel without emitting the initial snapshot.
var ErrClosedBeforeInitial = errors.New("watcher closed before emitting initial snapshot")

// Producer runs one Watcher and publishes every snapshot it emits into a
// Channel. It is the only writer of that channel.
type Producer[T any] struct {
	name           string
	watcher        Watcher[T]
	channel        *Channel[T]
	debounce       time.Duration
	startupTimeout time.Duration
	syncMode       bool
	clock          clockz.Clock
	metrics        MetricsProvider
	onStop         func(State)

	state        atomic.Int32
	lastError    atomic.Pointer[error]
	errorHistory *errorRing

	// fallbacks counts reportFallback calls. seenFallbacks is the count at
	// the last receive and is only touched by the publishing goroutine.
	fallbacks     atomic.Uint64
	seenFallbacks uint64

	mu       sync.Mutex
	started  bool
	finished bool
	cancel   context.CancelFunc
	done     chan struct{}

	// sync mode only
	changes <-chan T
}

// NewProducer creates a Producer named after its domain. The channel starts
// at the zero value of T until the initial snapshot arrives.
//
// Example:
//
//	p := mgs.NewProducer[upower.Data]("upower", upower.New(conn))
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	sub := p.Channel().Subscribe()
func NewProducer[T any](name string, watcher Watcher[T]) *Producer[T] {
	var zero T
	p := &Producer[T]{
		name:    name,
		watcher: watcher,
		channel: NewChannel(zero),
		clock:   clockz.RealClock,
		done:    make(chan struct{}),
	}
	p.state.Store(int32(StateStarting))
	return p
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Debounce coalesces snapshots arriving within d into the last one.
// Default: 0, every snapshot is published. Must be called before Start().
func (p *Producer[T]) Debounce(d time.Duration) *Producer[T] {
	p.debounce = d
	return p
}

// SyncMode disables the background forwarding goroutine. Start publishes
// only the initial snapshot; Process publishes the next one. Used for
// deterministic tests. Must be called before Start().
func (p *Producer[T]) SyncMode() *Producer[T] {
	p.syncMode = true
	return p
}

// Clock sets the clock used for debounce, startup timeout and latency.
// Must be called before Start().
func (p *Producer[T]) Clock(clock clockz.Clock) *Producer[T] {
	p.clock = clock
	return p
}

// StartupTimeout bounds how long Start waits for the initial snapshot.
// Default: no timeout. Must be called before Start().
func (p *Producer[T]) StartupTimeout(d time.Duration) *Producer[T] {
	p.startupTimeout = d
	return p
}

// Metrics sets a metrics provider. Must be called before Start().
func (p *Producer[T]) Metrics(provider MetricsProvider) *Producer[T] {
	p.metrics = provider
	return p
}

// OnStop sets a callback invoked once when the producer stops. It receives
// the state the producer was in before stopping. Must be called before Start().
func (p *Producer[T]) OnStop(fn func(State)) *Producer[T] {
	p.onStop = fn
	return p
}

// ErrorHistorySize sets how many recent errors ErrorHistory retains.
// Default: 0, only LastError is kept. Must be called before Start().
func (p *Producer[T]) ErrorHistorySize(n int) *Producer[T] {
	p.errorHistory = newErrorRing(n)
	return p
}

// Name returns the producer's name.
func (p *Producer[T]) Name() string {
	return p.name
}

// Channel returns the channel this producer publishes into.
func (p *Producer[T]) Channel() *Channel[T] {
	return p.channel
}

// State returns the current state of the producer.
func (p *Producer[T]) State() State {
	return State(p.state.Load())
}

// LastError returns the most recent fallback or watch error, or nil.
func (p *Producer[T]) LastError() error {
	ptr := p.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns recent errors, oldest first. Returns nil unless
// ErrorHistorySize was set.
func (p *Producer[T]) ErrorHistory() []error {
	return p.errorHistory.all()
}

// Done returns a channel closed once the producer has stopped.
func (p *Producer[T]) Done() <-chan struct{} {
	return p.done
}

// Start begins watching. It blocks until the initial snapshot is published,
// then forwards subsequent snapshots asynchronously until ctx is canceled,
// Stop is called or the source is lost.
//
// If the watcher cannot start or closes before its initial snapshot, the
// producer stops and Start returns the error.
func (p *Producer[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	if p.finished {
		p.mu.Unlock()
		return ErrStopped
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	ctx = context.WithValue(ctx, reporterKey{}, reporter(p))

	emit(ctx, ProducerStarted,
		KeyProducer.Field(p.name),
		KeyDebounce.Field(p.debounce),
	)

	changes, err := p.watcher.Watch(ctx)
	if err != nil {
		err = fmt.Errorf("start %s watcher: %w", p.name, err)
		p.finish(ctx, err)
		return err
	}

	startupCtx := ctx
	if p.startupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = p.clock.WithTimeout(ctx, p.startupTimeout)
		defer cancel()
	}

	select {
	case <-startupCtx.Done():
		err := startupCtx.Err()
		if p.startupTimeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("startup timeout: %s did not emit initial snapshot within %v", p.name, p.startupTimeout)
		}
		p.finish(ctx, err)
		return err
	case v, ok := <-changes:
		if !ok {
			err := p.watchErr(ErrClosedBeforeInitial)
			p.finish(ctx, err)
			return err
		}
		p.publish(ctx, v, p.received(), p.clock.Now())
	}

	if p.syncMode {
		p.changes = changes
		return nil
	}

	go p.watch(ctx, changes)
	return nil
}

// Process publishes the next snapshot if one is ready. Only available in
// sync mode. Returns false when nothing is ready; a closed watcher stops
// the producer.
func (p *Producer[T]) Process(ctx context.Context) bool {
	if !p.syncMode || p.changes == nil {
		return false
	}

	select {
	case v, ok := <-p.changes:
		if !ok {
			p.finish(ctx, p.watchErr(nil))
			return false
		}
		p.publish(ctx, v, p.received(), p.clock.Now())
		return true
	default:
		return false
	}
}

// Stop cancels the watch and waits for the producer to finish. The channel
// keeps its last value and is closed.
func (p *Producer[T]) Stop() {
	p.mu.Lock()
	started, cancel := p.started, p.cancel
	p.mu.Unlock()

	if !started || p.syncMode {
		if cancel != nil {
			cancel()
		}
		p.finish(context.Background(), nil)
		return
	}
	cancel()
	<-p.done
}

// received reports whether any field fell back since the previous snapshot
// was taken off the watcher channel. Watchers report fallbacks before they
// send, so the count belongs to the snapshot being received.
func (p *Producer[T]) received() (degraded bool) {
	if p.metrics != nil {
		p.metrics.OnSnapshotReceived()
	}
	n := p.fallbacks.Load()
	degraded = n != p.seenFallbacks
	p.seenFallbacks = n
	return degraded
}

// publish stores v in the channel and moves between running and degraded
// depending on whether any field fell back while v was built.
func (p *Producer[T]) publish(ctx context.Context, v T, degraded bool, receivedAt time.Time) {
	next := StateRunning
	if degraded {
		next = StateDegraded
	}
	p.transitionState(ctx, p.State(), next)
	p.channel.Publish(v)

	emit(ctx, SnapshotPublished,
		KeyProducer.Field(p.name),
		KeyVersion.Field(int(p.channel.Version())),
	)
	if p.metrics != nil {
		p.metrics.OnPublish(p.clock.Since(receivedAt))
	}
}

// reportFallback implements reporter.
func (p *Producer[T]) reportFallback(ctx context.Context, field string, err error) {
	p.fallbacks.Add(1)
	p.setError(fmt.Errorf("%s: %w", field, err))
	emit(ctx, FieldFallback,
		KeyProducer.Field(p.name),
		KeyField.Field(field),
		KeyError.Field(err.Error()),
	)
	if p.metrics != nil {
		p.metrics.OnFallback(field)
	}
}

// transitionState updates the state and emits a state change event if changed.
func (p *Producer[T]) transitionState(ctx context.Context, oldState, newState State) {
	if oldState == newState {
		return
	}
	p.state.Store(int32(newState))
	emit(ctx, ProducerStateChanged,
		KeyProducer.Field(p.name),
		KeyOldState.Field(oldState.String()),
		KeyNewState.Field(newState.String()),
	)
	if p.metrics != nil {
		p.metrics.OnStateChange(oldState, newState)
	}
}

// setError stores an error atomically and adds it to the error history.
func (p *Producer[T]) setError(err error) {
	e := err
	p.lastError.Store(&e)
	p.errorHistory.push(err)
}

// watchErr asks the watcher why it closed, falling back to def.
func (p *Producer[T]) watchErr(def error) error {
	if e, ok := p.watcher.(Errer); ok {
		if err := e.Err(); err != nil {
			return err
		}
	}
	return def
}

// finish stops the producer exactly once. The channel keeps its last value
// so widgets freeze at it.
func (p *Producer[T]) finish(ctx context.Context, err error) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err != nil {
		p.setError(err)
	}

	final := p.State()
	p.transitionState(ctx, final, StateStopped)
	p.channel.Close()

	if err != nil {
		emit(ctx, ProducerStopped,
			KeyProducer.Field(p.name),
			KeyState.Field(final.String()),
			KeyError.Field(err.Error()),
		)
	} else {
		emit(ctx, ProducerStopped,
			KeyProducer.Field(p.name),
			KeyState.Field(final.String()),
		)
	}

	if p.onStop != nil {
		p.onStop(final)
	}
	close(p.done)
}

// watch forwards snapshots from the watcher channel, debounced if configured.
// Each debounce window gets its own timer; a fired timer is never reused.
func (p *Producer[T]) watch(ctx context.Context, changes <-chan T) {
	var (
		timer           clockz.Timer
		pending         T
		pendingAt       time.Time
		pendingDegraded bool
		hasPending      bool
	)

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			stopTimer()
			p.finish(ctx, nil)
			return

		case v, ok := <-changes:
			if !ok {
				stopTimer()
				if hasPending {
					p.publish(ctx, pending, pendingDegraded, pendingAt)
				}
				p.finish(ctx, p.watchErr(nil))
				return
			}

			degraded := p.received()
			if p.debounce <= 0 {
				p.publish(ctx, v, degraded, p.clock.Now())
				continue
			}

			if !hasPending {
				pendingAt = p.clock.Now()
			}
			pending = v
			pendingDegraded = degraded
			hasPending = true

			stopTimer()
			timer = p.clock.NewTimer(p.debounce)

		case <-timerC:
			timer = nil
			if hasPending {
				p.publish(ctx, pending, pendingDegraded, pendingAt)
				hasPending = false
			}
		}
	}
}

// emit sends a lifecycle event that outlives the producer's context.
// capitan drops events whose context is already canceled, and Stop cancels
// the producer context before queued events are delivered.
func emit(ctx context.Context, signal capitan.Signal, fields ...capitan.Field) {
	capitan.Emit(context.WithoutCancel(ctx), signal, fields...)
}
