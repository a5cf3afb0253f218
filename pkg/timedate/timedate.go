// Package timedate watches systemd-timedated for the system timezone.
package timedate

import (
	"context"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/pkg/bus"
)

// timedate1 bus names.
const (
	Service   = "org.freedesktop.timedate1"
	Path      = dbus.ObjectPath("/org/freedesktop/timedate1")
	Interface = "org.freedesktop.timedate1"
)

// Data is a timezone snapshot.
type Data struct {
	Timezone        string
	LocalRTC        bool
	NTP             bool
	NTPSynchronized bool
}

// Location resolves Timezone, falling back to time.Local when it is empty
// or unknown to the tz database.
func (d Data) Location() *time.Location {
	if d.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

var properties = []string{"Timezone", "LocalRTC", "NTP", "NTPSynchronized"}

// Watcher emits the timedate1 properties and a new snapshot per change.
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
	signals, err := w.conn.Subscribe(ctx, bus.PropertiesMatch(Path, Interface))
	if err != nil {
		return nil, err
	}

	obj := w.conn.Object(Service, Path)
	var data Data
	for _, name := range properties {
		v, err := obj.GetProperty(Interface + "." + name)
		apply(ctx, &data, name, v, err)
	}

	out := make(chan Data)
	go func() {
		defer close(out)

		select {
		case out <- data:
		case <-ctx.Done():
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					w.mu.Lock()
					w.err = bus.ErrDisconnected
					w.mu.Unlock()
					return
				}
				pc, ok := bus.ParsePropertiesChanged(sig)
				if !ok || pc.Path != Path || pc.Interface != Interface {
					continue
				}
				updated := false
				for _, name := range pc.Names() {
					v, changed := pc.Changed[name]
					var err error
					if !changed {
						v, err = obj.GetProperty(Interface + "." + name)
					}
					updated = apply(ctx, &data, name, v, err) || updated
				}
				if !updated {
					continue
				}
				select {
				case out <- data:
				case <-ctx.Done():
					return
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

func apply(ctx context.Context, data *Data, name string, v dbus.Variant, err error) bool {
	switch name {
	case "Timezone":
		tz, err := bus.Value[string](name, v, err)
		data.Timezone = mgs.Fallback(ctx, "timezone", tz, err, "")
	case "LocalRTC":
		rtc, err := bus.Value[bool](name, v, err)
		data.LocalRTC = mgs.Fallback(ctx, "local_rtc", rtc, err, false)
	case "NTP":
		ntp, err := bus.Value[bool](name, v, err)
		data.NTP = mgs.Fallback(ctx, "ntp", ntp, err, false)
	case "NTPSynchronized":
		synced, err := bus.Value[bool](name, v, err)
		data.NTPSynchronized = mgs.Fallback(ctx, "ntp_synchronized", synced, err, false)
	default:
		return false
	}
	return true
}
