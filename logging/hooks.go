package logging

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/config"
)

// Observe hooks the logger to the engine's lifecycle signals. The returned
// function detaches every hook; it is safe to call more than once.
func (l *Logger) Observe() (detach func()) {
	var closers []func()
	hook := func(sig capitan.Signal, fn func(context.Context, *capitan.Event)) {
		ln := capitan.Hook(sig, fn)
		closers = append(closers, func() { ln.Close() })
	}

	hook(mgs.ProducerStarted, func(_ context.Context, e *capitan.Event) {
		name, _ := mgs.KeyProducer.From(e)
		debounce, _ := mgs.KeyDebounce.From(e)
		l.Debugf("%s: starting (debounce %v)", name, debounce)
	})

	hook(mgs.ProducerStateChanged, func(_ context.Context, e *capitan.Event) {
		name, _ := mgs.KeyProducer.From(e)
		oldState, _ := mgs.KeyOldState.From(e)
		newState, _ := mgs.KeyNewState.From(e)
		switch {
		case newState == mgs.StateDegraded.String():
			l.Warnf("%s: degraded", name)
		case oldState == mgs.StateDegraded.String() && newState == mgs.StateRunning.String():
			l.Successf("%s: recovered", name)
		default:
			l.Verbosef("%s: %s -> %s", name, oldState, newState)
		}
	})

	hook(mgs.SnapshotPublished, func(_ context.Context, e *capitan.Event) {
		name, _ := mgs.KeyProducer.From(e)
		version, _ := mgs.KeyVersion.From(e)
		l.Debugf("%s: published snapshot %d", name, version)
	})

	hook(mgs.FieldFallback, func(_ context.Context, e *capitan.Event) {
		name, _ := mgs.KeyProducer.From(e)
		field, _ := mgs.KeyField.From(e)
		msg, _ := mgs.KeyError.From(e)
		l.Warnf("%s: %s unavailable, using default: %s", name, field, msg)
	})

	hook(mgs.ProducerStopped, func(_ context.Context, e *capitan.Event) {
		name, _ := mgs.KeyProducer.From(e)
		if msg, ok := mgs.KeyError.From(e); ok && msg != "" {
			l.Errorf("%s: source lost: %s", name, msg)
			return
		}
		l.Infof("%s: stopped", name)
	})

	hook(mgs.DomainAcquired, func(_ context.Context, e *capitan.Event) {
		name, _ := mgs.KeyProducer.From(e)
		refs, _ := mgs.KeyRefs.From(e)
		l.Verbosef("%s: acquired (%d refs)", name, refs)
	})

	hook(mgs.DomainReleased, func(_ context.Context, e *capitan.Event) {
		name, _ := mgs.KeyProducer.From(e)
		refs, _ := mgs.KeyRefs.From(e)
		l.Verbosef("%s: released (%d refs)", name, refs)
	})

	hook(mgs.CommandFailed, func(_ context.Context, e *capitan.Event) {
		cmd, _ := mgs.KeyCommand.From(e)
		msg, _ := mgs.KeyError.From(e)
		l.Errorf("command %s failed: %s", cmd, msg)
	})

	hook(config.Reloaded, func(_ context.Context, e *capitan.Event) {
		path, _ := config.KeyPath.From(e)
		l.Successf("config reloaded from %s", path)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, c := range closers {
				c()
			}
		})
	}
}
