// Package widget turns domain snapshots into presentation state.
//
// Each widget owns its state exclusively. Apply takes a snapshot, derives
// icon and label through pure classification functions and asks the host
// for a redraw. View returns a copy of what to draw. After Close, Apply is a
// silent no-op, so a producer that outlives its widget never breaks.
package widget

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/wuliuqii/mgs"
)

// Icon names an icon in the host's theme.
type Icon string

// Color is a "#rrggbb" color, or empty for the host default.
type Color string

// RGBA returns c as an opaque 0xRRGGBBAA value. It reports false for the
// host default and for anything that is not "#rrggbb".
func (c Color) RGBA() (uint32, bool) {
	hex, ok := strings.CutPrefix(string(c), "#")
	if !ok || len(hex) != 6 {
		return 0, false
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(rgb)<<8 | 0xff, true
}

// Block is one drawable unit of a widget.
type Block struct {
	Name     string   `json:"name"`
	Instance string   `json:"instance,omitempty"`
	Icon     Icon     `json:"icon,omitempty"`
	Text     string   `json:"full_text"`
	Color    Color    `json:"color,omitempty"`
	Value    *float64 `json:"value,omitempty"`
}

// Invalidator asks the host to recompute presentation.
type Invalidator interface {
	Invalidate()
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func()

// Invalidate implements Invalidator.
func (f InvalidatorFunc) Invalidate() { f() }

// Widget is what the host draws.
type Widget interface {
	Name() string
	View() []Block
	Close()
}

// Clicker is implemented by widgets that react to pointer input. instance
// is the Block.Instance that was clicked; button follows X11 numbering
// (1 left, 3 right, 4/5 wheel).
type Clicker interface {
	Click(instance string, button int)
}

// Seeker is implemented by widgets with a draggable control. fraction is
// where the pointer landed along the block, from 0 at the left edge to 1
// at the right. Seek reports whether instance is such a control; when it
// is not, the event is delivered to Click instead.
type Seeker interface {
	Seek(instance string, fraction float64) bool
}

// Mouse buttons.
const (
	ButtonLeft      = 1
	ButtonMiddle    = 2
	ButtonRight     = 3
	ButtonWheelUp   = 4
	ButtonWheelDown = 5
)

// base carries the lifecycle shared by all widgets.
type base struct {
	mu     sync.Mutex
	inv    Invalidator
	closed bool
	detach func()
}

func newBase(inv Invalidator) base {
	if inv == nil {
		inv = InvalidatorFunc(func() {})
	}
	return base{inv: inv}
}

// update runs fn under the widget lock and requests one redraw. It reports
// false, without running fn, once the widget is closed.
func (b *base) update(fn func()) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	fn()
	b.mu.Unlock()
	b.inv.Invalidate()
	return true
}

func (b *base) attach(detach func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		detach()
		return
	}
	b.detach = detach
}

// Close detaches the widget from its channel. Later snapshots are dropped.
func (b *base) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	detach := b.detach
	b.mu.Unlock()

	if detach != nil {
		detach()
	}
}

// Bind applies the channel's current value, then every newer one, until
// ctx ends, the channel closes or the returned stop function is called.
// Values are applied on a single goroutine in publish order.
func Bind[T any](ctx context.Context, ch *mgs.Channel[T], apply func(T)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	sub := ch.Subscribe()
	apply(ch.Current())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			v, ok := sub.Next(ctx)
			if !ok {
				return
			}
			apply(v)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// attacher is implemented by every widget in this package.
type attacher interface {
	attach(detach func())
}

// Attach binds w to ch so it follows the channel until w is closed.
func Attach[T any](ctx context.Context, w interface {
	attacher
	Apply(T)
}, ch *mgs.Channel[T]) {
	w.attach(Bind(ctx, ch, w.Apply))
}
