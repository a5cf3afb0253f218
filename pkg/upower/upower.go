// Package upower watches the UPower display device on the system bus.
package upower

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/pkg/bus"
)

// UPower bus names.
const (
	Service         = "org.freedesktop.UPower"
	Path            = dbus.ObjectPath("/org/freedesktop/UPower")
	DeviceInterface = "org.freedesktop.UPower.Device"
)

// BatteryState is the UPower device state.
type BatteryState uint32

// Values as defined by org.freedesktop.UPower.Device.State.
const (
	StateUnknown BatteryState = iota
	StateCharging
	StateDischarging
	StateEmpty
	StateFullyCharged
	StatePendingCharge
	StatePendingDischarge
)

func (s BatteryState) String() string {
	switch s {
	case StateCharging:
		return "Charging"
	case StateDischarging:
		return "Discharging"
	case StateEmpty:
		return "Empty"
	case StateFullyCharged:
		return "FullyCharged"
	case StatePendingCharge:
		return "PendingCharge"
	case StatePendingDischarge:
		return "PendingDischarge"
	default:
		return "Unknown"
	}
}

// Charging reports whether the device is on external power.
func (s BatteryState) Charging() bool {
	return s == StateCharging || s == StateFullyCharged || s == StatePendingCharge
}

// Discharging reports whether the device is running on battery.
func (s BatteryState) Discharging() bool {
	return s == StateDischarging || s == StatePendingDischarge
}

// Data is a battery snapshot.
type Data struct {
	Percentage  float64
	State       BatteryState
	TimeToFull  time.Duration
	TimeToEmpty time.Duration
	IsPresent   bool
}

// properties lists the device properties the snapshot is built from.
var properties = []string{"Percentage", "State", "TimeToFull", "TimeToEmpty", "IsPresent"}

// Watcher emits a Data snapshot for the display device and a new one for
// every changed property.
type Watcher struct {
	conn bus.Conn

	mu  sync.Mutex
	err error
}

// New creates a Watcher over conn.
func New(conn bus.Conn) *Watcher {
	return &Watcher{conn: conn}
}

// Factory returns a watcher constructor for mgs.Acquire.
func Factory(conn bus.Conn) func() mgs.Watcher[Data] {
	return func() mgs.Watcher[Data] { return New(conn) }
}

// Watch implements mgs.Watcher.
func (w *Watcher) Watch(ctx context.Context) (<-chan Data, error) {
	path, err := bus.Call[dbus.ObjectPath](ctx, w.conn.Object(Service, Path), Service+".GetDisplayDevice")
	if err != nil {
		return nil, fmt.Errorf("display device: %w", err)
	}

	signals, err := w.conn.Subscribe(ctx, bus.PropertiesMatch(path, DeviceInterface))
	if err != nil {
		return nil, err
	}

	dev := w.conn.Object(Service, path)
	var data Data
	for _, name := range properties {
		v, err := dev.GetProperty(DeviceInterface + "." + name)
		apply(ctx, &data, name, v, err)
	}

	out := make(chan Data)
	go func() {
		defer close(out)

		if !send(ctx, out, data) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					w.setErr(bus.ErrDisconnected)
					return
				}
				pc, ok := bus.ParsePropertiesChanged(sig)
				if !ok || pc.Path != path || pc.Interface != DeviceInterface {
					continue
				}
				for _, name := range pc.Names() {
					v, changed := pc.Changed[name]
					var err error
					if !changed {
						v, err = dev.GetProperty(DeviceInterface + "." + name)
					}
					if !apply(ctx, &data, name, v, err) {
						continue
					}
					if !send(ctx, out, data) {
						return
					}
				}
			}
		}
	}()

	return out, nil
}

// Err implements mgs.Errer.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Watcher) setErr(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

// apply decodes one property into data. It returns false for properties the
// snapshot does not track.
func apply(ctx context.Context, data *Data, name string, v dbus.Variant, err error) bool {
	switch name {
	case "Percentage":
		p, err := bus.Value[float64](name, v, err)
		data.Percentage = mgs.Fallback(ctx, "percentage", p, err, 0)
	case "State":
		s, err := bus.Value[uint32](name, v, err)
		data.State = mgs.Fallback(ctx, "state", BatteryState(s), err, StateUnknown)
	case "TimeToFull":
		secs, err := bus.Value[int64](name, v, err)
		data.TimeToFull = mgs.Fallback(ctx, "time_to_full", time.Duration(secs)*time.Second, err, 0)
	case "TimeToEmpty":
		secs, err := bus.Value[int64](name, v, err)
		data.TimeToEmpty = mgs.Fallback(ctx, "time_to_empty", time.Duration(secs)*time.Second, err, 0)
	case "IsPresent":
		present, err := bus.Value[bool](name, v, err)
		data.IsPresent = mgs.Fallback(ctx, "is_present", present, err, false)
	default:
		return false
	}
	return true
}

func send(ctx context.Context, out chan<- Data, data Data) bool {
	select {
	case out <- data:
		return true
	case <-ctx.Done():
		return false
	}
}
