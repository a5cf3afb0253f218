package widget

import (
	"context"
	"fmt"
	"math"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/pkg/audio"
)

// Volume icons.
const (
	IconVolumeMute   Icon = "volume-mute"
	IconVolumeLow    Icon = "volume-low"
	IconVolumeMedium Icon = "volume-medium"
	IconVolumeHigh   Icon = "volume-high"
)

// VolumeStep is how far one wheel notch moves the slider.
const VolumeStep = 5

// VolumeIcon maps a sink reading to an icon. Mute wins over the level.
func VolumeIcon(volume float64, muted bool) Icon {
	switch {
	case muted:
		return IconVolumeMute
	case volume < 30:
		return IconVolumeLow
	case volume < 70:
		return IconVolumeMedium
	default:
		return IconVolumeHigh
	}
}

// VolumeLabel is the volume rounded to a whole percent.
func VolumeLabel(volume float64) string {
	return fmt.Sprintf("%.0f", volume)
}

// Volume shows the default sink with a 0..100 slider the user can drag.
type Volume struct {
	base
	ctx    context.Context
	cmd    audio.Commander
	sink   string
	volume float64
	muted  bool
}

// NewVolume creates a Volume widget. Write-back commands run under ctx.
func NewVolume(ctx context.Context, inv Invalidator, cmd audio.Commander) *Volume {
	return &Volume{base: newBase(inv), ctx: ctx, cmd: cmd}
}

// Name implements Widget.
func (v *Volume) Name() string { return "volume" }

// Apply implements the snapshot update. The authoritative reading replaces
// any optimistic slider position.
func (v *Volume) Apply(d audio.Data) {
	v.update(func() {
		v.sink = d.SinkName
		v.volume = d.Volume
		v.muted = d.Muted
	})
}

// SetVolume moves the slider to value, clamped to 0..100, and asks the
// sound server to follow. NaN is ignored. It never blocks; failures are
// reported through the CommandFailed signal and the slider stays put until
// the next snapshot.
func (v *Volume) SetVolume(value float64) {
	if math.IsNaN(value) {
		return
	}
	value = max(0, min(100, value))
	var sink string
	if !v.update(func() {
		v.volume = value
		sink = v.sink
	}) {
		return
	}
	go func() {
		mgs.CommandError(v.ctx, "set-sink-volume", v.cmd.SetVolume(v.ctx, sink, value))
	}()
}

// ToggleMute flips the mute state optimistically and asks the sound
// server to follow.
func (v *Volume) ToggleMute() {
	var (
		sink  string
		muted bool
	)
	if !v.update(func() {
		v.muted = !v.muted
		sink, muted = v.sink, v.muted
	}) {
		return
	}
	go func() {
		mgs.CommandError(v.ctx, "set-sink-mute", v.cmd.SetMute(v.ctx, sink, muted))
	}()
}

// Click implements Clicker: the icon toggles mute, the wheel steps volume.
func (v *Volume) Click(instance string, button int) {
	v.mu.Lock()
	current := v.volume
	v.mu.Unlock()

	switch {
	case instance == "icon" && button == ButtonLeft:
		v.ToggleMute()
	case button == ButtonWheelUp:
		v.SetVolume(current + VolumeStep)
	case button == ButtonWheelDown:
		v.SetVolume(current - VolumeStep)
	}
}

// Seek implements Seeker: a press on the slider jumps to that position.
func (v *Volume) Seek(instance string, fraction float64) bool {
	if instance != "slider" {
		return false
	}
	v.SetVolume(100 * fraction)
	return true
}

// View implements Widget.
func (v *Volume) View() []Block {
	v.mu.Lock()
	defer v.mu.Unlock()
	value := v.volume
	return []Block{
		{Name: v.Name(), Instance: "icon", Icon: VolumeIcon(v.volume, v.muted)},
		{Name: v.Name(), Instance: "slider", Text: VolumeLabel(v.volume), Value: &value},
	}
}
