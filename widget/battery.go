package widget

import (
	"strconv"

	"github.com/wuliuqii/mgs/pkg/upower"
)

// Battery icons.
const (
	IconBattery         Icon = "battery"
	IconBatteryCharging Icon = "battery-charging"
	IconBatteryWarning  Icon = "battery-warning"
	IconBatteryLow      Icon = "battery-low"
	IconBatteryMedium   Icon = "battery-medium"
	IconBatteryFull     Icon = "battery-full"
)

// Alert colors.
const (
	ColorOrange Color = "#ff8000"
	ColorRed    Color = "#ff0000"
)

// BatteryIcon picks the icon for a reading. Charging states win over the
// percentage; discharging bands are closed on their upper bound.
func BatteryIcon(percentage float64, state upower.BatteryState) (Icon, Color) {
	switch {
	case state.Charging():
		return IconBatteryCharging, ""
	case state.Discharging():
		switch {
		case percentage <= 10:
			return IconBatteryWarning, ColorOrange
		case percentage <= 30:
			return IconBatteryLow, ColorRed
		case percentage <= 80:
			return IconBatteryMedium, ""
		default:
			return IconBatteryFull, ""
		}
	}
	return IconBattery, ""
}

// BatteryLabel is the percentage in its shortest decimal form.
func BatteryLabel(percentage float64) string {
	return strconv.FormatFloat(percentage, 'f', -1, 64)
}

// Battery shows the display device's charge.
type Battery struct {
	base
	icon  Icon
	color Color
	label string
	data  upower.Data
}

// NewBattery creates a Battery widget.
func NewBattery(inv Invalidator) *Battery {
	return &Battery{base: newBase(inv), icon: IconBattery}
}

// Name implements Widget.
func (b *Battery) Name() string { return "battery" }

// Apply implements the snapshot update.
func (b *Battery) Apply(d upower.Data) {
	b.update(func() {
		b.data = d
		b.icon, b.color = BatteryIcon(d.Percentage, d.State)
		b.label = BatteryLabel(d.Percentage)
	})
}

// View implements Widget.
func (b *Battery) View() []Block {
	b.mu.Lock()
	defer b.mu.Unlock()
	return []Block{{Name: b.Name(), Icon: b.icon, Text: b.label, Color: b.color}}
}
