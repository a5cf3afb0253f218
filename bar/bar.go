// Package bar is the host boundary: it writes widget blocks to a
// line-oriented JSON stream in the i3bar protocol and routes click events
// read from the host back to the widgets.
//
// The stream starts with a header line followed by one JSON array per
// redraw. The header carries a panel object describing the layer surface,
// and blocks may carry an icon name and a slider value:
//
//	{"version":1,"click_events":true,"panel":{"height":35,...}}
//	[{"name":"workspaces","instance":"1","full_text":"1","align":"left"},...]
//
// Click events are read one JSON object per line; a leading "[" or "," is
// ignored.
package bar

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pgaskin/barlib/barproto"
	"github.com/zoobzio/clockz"

	"github.com/wuliuqii/mgs/widget"
)

// ProtocolVersion is written in the header line.
const ProtocolVersion = 1

// Align places a widget in the bar.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Panel describes the surface the host should create.
type Panel struct {
	Height        int      `json:"height"`
	Anchors       []string `json:"anchors"`
	ExclusiveZone int      `json:"exclusive_zone"`
	Namespace     string   `json:"namespace"`
}

// Header is the first line of the output stream: the i3bar header plus the
// panel the host should open.
type Header struct {
	barproto.Header
	Panel Panel `json:"panel"`
}

// MarshalJSON writes the i3bar header with the panel object appended.
func (h Header) MarshalJSON() ([]byte, error) {
	return extend(h.Header, struct {
		Panel Panel `json:"panel"`
	}{h.Panel})
}

// Click is a pointer event sent by the host.
type Click = barproto.Click

// Block is a widget block placed in the bar. Icon and Value travel next to
// the i3bar fields for hosts that draw icons and sliders.
type Block struct {
	barproto.Block
	Icon  widget.Icon `json:"icon,omitempty"`
	Value *float64    `json:"value,omitempty"`
}

// MarshalJSON writes the i3bar block with the icon and value appended.
func (b Block) MarshalJSON() ([]byte, error) {
	return extend(b.Block, struct {
		Icon  widget.Icon `json:"icon,omitempty"`
		Value *float64    `json:"value,omitempty"`
	}{b.Icon, b.Value})
}

// extend marshals base and ext, both JSON objects, into one object.
func extend(base, ext any) ([]byte, error) {
	a, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(ext)
	if err != nil {
		return nil, err
	}
	a = bytes.TrimSpace(a)
	if len(b) <= 2 {
		return a, nil
	}
	if len(a) <= 2 {
		return b, nil
	}
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a[:len(a)-1]...)
	out = append(out, ',')
	return append(out, b[1:]...), nil
}

// toBlock converts a widget block to its protocol form.
func toBlock(blk widget.Block, align Align) Block {
	out := Block{
		Block: barproto.Block{
			Name:      blk.Name,
			Instance:  blk.Instance,
			FullText:  blk.Text,
			Separator: true,
		},
		Icon:  blk.Icon,
		Value: blk.Value,
	}
	if rgba, ok := blk.Color.RGBA(); ok {
		out.Color = barproto.Color(rgba)
	}
	switch align {
	case AlignLeft:
		out.Align = "left"
	case AlignCenter:
		out.Align = "center"
	case AlignRight:
		out.Align = "right"
	}
	return out
}

type slot struct {
	align  Align
	widget widget.Widget
}

// Bar owns the output stream. It implements widget.Invalidator: any number
// of Invalidate calls between two redraws produce a single frame.
type Bar struct {
	out   io.Writer
	panel Panel
	clock clockz.Clock
	frame time.Duration

	mu      sync.Mutex
	widgets []slot

	dirty chan struct{}
}

// New creates a Bar writing to out.
func New(out io.Writer, panel Panel) *Bar {
	return &Bar{
		out:   out,
		panel: panel,
		clock: clockz.RealClock,
		dirty: make(chan struct{}, 1),
	}
}

// FrameInterval sets the minimum time between two redraws. Invalidations
// arriving sooner are folded into the next frame. Default: 0, redraw as
// soon as invalidated. Must be called before Run().
func (b *Bar) FrameInterval(d time.Duration) *Bar {
	b.frame = d
	return b
}

// Clock sets the clock used for frame throttling. Must be called before Run().
func (b *Bar) Clock(clock clockz.Clock) *Bar {
	b.clock = clock
	return b
}

// Add places w in the bar. Widgets are drawn in the order they were added
// within each alignment.
func (b *Bar) Add(align Align, w widget.Widget) {
	b.mu.Lock()
	b.widgets = append(b.widgets, slot{align: align, widget: w})
	b.mu.Unlock()
	b.Invalidate()
}

// Invalidate implements widget.Invalidator. It never blocks.
func (b *Bar) Invalidate() {
	select {
	case b.dirty <- struct{}{}:
	default:
	}
}

// Frame returns the blocks of every widget: left, then center, then right.
func (b *Bar) Frame() []Block {
	b.mu.Lock()
	widgets := append([]slot(nil), b.widgets...)
	b.mu.Unlock()

	blocks := []Block{}
	for _, align := range []Align{AlignLeft, AlignCenter, AlignRight} {
		for _, s := range widgets {
			if s.align != align {
				continue
			}
			for _, blk := range s.widget.View() {
				blocks = append(blocks, toBlock(blk, align))
			}
		}
	}
	return blocks
}

// Click routes a click to the widget with the clicked name. A left click
// on a widget with a draggable control is delivered as a seek to the
// pointer's position within the block. Clicks for unknown widgets or
// widgets that do not handle input are dropped.
func (b *Bar) Click(c Click) {
	b.mu.Lock()
	var target widget.Widget
	for _, s := range b.widgets {
		if s.widget.Name() == c.Name {
			target = s.widget
			break
		}
	}
	b.mu.Unlock()

	if target == nil {
		return
	}
	if seeker, ok := target.(widget.Seeker); ok && c.Button == widget.ButtonLeft && c.Width > 0 {
		fraction := float64(c.RelativeX) / float64(c.Width)
		if seeker.Seek(c.Instance, max(0, min(1, fraction))) {
			return
		}
	}
	if clicker, ok := target.(widget.Clicker); ok {
		clicker.Click(c.Instance, c.Button)
	}
}

// Close closes every widget.
func (b *Bar) Close() {
	b.mu.Lock()
	widgets := b.widgets
	b.widgets = nil
	b.mu.Unlock()

	for _, s := range widgets {
		s.widget.Close()
	}
}

// Run writes the header and redraws on every invalidation until ctx is
// canceled or writing fails. When in is not nil, click events are read
// from it; the end of in does not stop the bar.
func (b *Bar) Run(ctx context.Context, in io.Reader) error {
	enc := json.NewEncoder(b.out)
	enc.SetEscapeHTML(false)

	header := Header{
		Header: barproto.Header{Version: ProtocolVersion, ClickEvents: in != nil},
		Panel:  b.panel,
	}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var clicks <-chan Click
	if in != nil {
		clicks = readClicks(ctx, in)
	}

	var (
		throttle  clockz.Timer
		throttleC <-chan time.Time
		pending   bool
	)
	defer func() {
		if throttle != nil {
			throttle.Stop()
		}
	}()

	draw := func() error {
		if b.frame > 0 {
			throttle = b.clock.NewTimer(b.frame)
			throttleC = throttle.C()
		}
		if err := enc.Encode(b.Frame()); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-b.dirty:
			if throttleC != nil {
				pending = true
				continue
			}
			if err := draw(); err != nil {
				return err
			}

		case <-throttleC:
			throttleC = nil
			if pending {
				pending = false
				if err := draw(); err != nil {
					return err
				}
			}

		case c, ok := <-clicks:
			if !ok {
				clicks = nil
				continue
			}
			b.Click(c)
		}
	}
}

// readClicks decodes click events from in until it ends or ctx is done.
// Malformed lines are skipped.
func readClicks(ctx context.Context, in io.Reader) <-chan Click {
	out := make(chan Click)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			c, ok := ParseClick(scanner.Bytes())
			if !ok {
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// ParseClick decodes one click line.
func ParseClick(line []byte) (Click, bool) {
	line = bytes.TrimSpace(line)
	line = bytes.TrimLeft(line, "[,")
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Click{}, false
	}
	var c Click
	if err := json.Unmarshal(line, &c); err != nil {
		return Click{}, false
	}
	if c.Name == "" {
		return Click{}, false
	}
	return c, true
}
