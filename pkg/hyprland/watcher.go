package hyprland

import (
	"context"
	"fmt"
	"sync"

	"github.com/wuliuqii/mgs"
)

// Source is what the watcher needs from a Hyprland instance.
type Source interface {
	Workspaces(ctx context.Context) ([]Workspace, error)
	ActiveWorkspace(ctx context.Context) (Workspace, error)
	Events(ctx context.Context) (<-chan Event, <-chan error, error)
}

// Dispatcher runs Hyprland dispatchers. *Client implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, args string) error
}

// Watcher emits the workspace list and a new snapshot after every event
// that changes it.
type Watcher struct {
	src Source

	mu  sync.Mutex
	err error
}

// New creates a Watcher over src.
func New(src Source) *Watcher {
	return &Watcher{src: src}
}

// Factory returns a watcher constructor for mgs.Acquire.
func Factory(src Source) func() mgs.Watcher[Data] {
	return func() mgs.Watcher[Data] { return New(src) }
}

// Watch implements mgs.Watcher. The event socket is opened before the
// initial load so no event between the two is missed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Data, error) {
	events, errc, err := w.src.Events(ctx)
	if err != nil {
		return nil, err
	}

	st, err := w.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Data)
	go func() {
		defer close(out)

		if !send(ctx, out, st.snapshot()) {
			return
		}
		// Events are applied by this goroutine alone, in delivery order.
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					if err := <-errc; err != nil {
						w.mu.Lock()
						w.err = err
						w.mu.Unlock()
					}
					return
				}
				c, ok := decode(ev)
				if !ok {
					continue
				}
				if !st.resolve(&c) {
					// A workspace known only by name, such as a new named
					// or special workspace: reread the list for its ID.
					fresh, err := w.load(ctx)
					if err != nil {
						mgs.Fallback(ctx, "workspaces", 0, err, 0)
						continue
					}
					fresh.special = st.special
					st = fresh
				} else if !st.apply(c) {
					continue
				}
				if !send(ctx, out, st.snapshot()) {
					return
				}
			}
		}
	}()
	return out, nil
}

// load reads the workspace list and the focused workspace.
func (w *Watcher) load(ctx context.Context) (*state, error) {
	list, err := w.src.Workspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workspaces: %w", err)
	}
	active, err := w.src.ActiveWorkspace(ctx)
	active = mgs.Fallback(ctx, "active_workspace", active, err, Workspace{ID: 1, Name: "1"})
	return newState(list, active), nil
}

// Err implements mgs.Errer.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func send(ctx context.Context, out chan<- Data, d Data) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// Switch focuses the workspace shown in slot. Negative slots are clamped to
// slot 0, the special workspace.
func Switch(ctx context.Context, d Dispatcher, slot int) error {
	if slot < 0 {
		slot = 0
	}
	return d.Dispatch(ctx, SlotCommand(slot))
}

var (
	_ Source     = (*Client)(nil)
	_ Dispatcher = (*Client)(nil)
)
