package widget

import "github.com/wuliuqii/mgs/pkg/clock"

// DefaultClockLayout shows hours and minutes.
const DefaultClockLayout = "15:04"

// ClockLabel formats d with layout, or DefaultClockLayout when empty.
func ClockLabel(d clock.Data, layout string) string {
	if layout == "" {
		layout = DefaultClockLayout
	}
	return d.Format(layout)
}

// Clock shows the time.
type Clock struct {
	base
	layout string
	label  string
}

// NewClock creates a Clock widget.
func NewClock(inv Invalidator, layout string) *Clock {
	return &Clock{base: newBase(inv), layout: layout}
}

// Name implements Widget.
func (c *Clock) Name() string { return "clock" }

// Apply implements the snapshot update.
func (c *Clock) Apply(d clock.Data) {
	c.update(func() {
		c.label = ClockLabel(d, c.layout)
	})
}

// View implements Widget.
func (c *Clock) View() []Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return []Block{{Name: c.Name(), Text: c.label}}
}
