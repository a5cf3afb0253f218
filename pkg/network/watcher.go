// Package network watches NetworkManager on the system bus: WiFi state,
// active connections, visible access points and per-device throughput.
package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/zoobzio/clockz"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/pkg/bus"
)

// DefaultRefreshRate is how often NetworkManager is asked to refresh
// device byte counters.
const DefaultRefreshRate = time.Second

// Watcher emits a network snapshot and a new one for every processed
// property change.
type Watcher struct {
	conn        bus.Conn
	clock       clockz.Clock
	refreshRate time.Duration

	mu  sync.Mutex
	err error
}

// New creates a Watcher over conn.
func New(conn bus.Conn) *Watcher {
	return &Watcher{
		conn:        conn,
		clock:       clockz.RealClock,
		refreshRate: DefaultRefreshRate,
	}
}

// Factory returns a watcher constructor for mgs.Acquire.
func Factory(conn bus.Conn, refreshRate time.Duration) func() mgs.Watcher[Data] {
	return func() mgs.Watcher[Data] { return New(conn).RefreshRate(refreshRate) }
}

// RefreshRate sets the statistics refresh rate. Non-positive values keep
// the default.
func (w *Watcher) RefreshRate(d time.Duration) *Watcher {
	if d > 0 {
		w.refreshRate = d
	}
	return w
}

// Clock sets the clock used to timestamp counter readings.
func (w *Watcher) Clock(clock clockz.Clock) *Watcher {
	w.clock = clock
	return w
}

// Watch implements mgs.Watcher.
//
// Access point and statistics signals are matched by interface rather than
// by object path, so a connection that roams to another access point or
// moves to another device keeps delivering updates.
func (w *Watcher) Watch(ctx context.Context) (<-chan Data, error) {
	c := client{conn: w.conn}

	// GetDevices is the one call the watcher cannot do without.
	if _, err := c.devices(ctx); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	refreshed := make(map[dbus.ObjectPath]bool)
	data := w.snapshot(ctx, c)
	w.configure(ctx, c, data.Statistics, refreshed)

	signals, err := w.conn.Subscribe(ctx,
		bus.PropertiesMatch(Path, Interface),
		bus.PropertiesMatch("", AccessPointInterface),
		bus.PropertiesMatch("", StatisticsInterface),
	)
	if err != nil {
		return nil, err
	}

	out := make(chan Data)
	go func() {
		defer close(out)

		if !w.send(ctx, out, data) {
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
				if !ok {
					continue
				}
				for _, name := range pc.Names() {
					if !w.apply(ctx, c, &data, pc, name) {
						continue
					}
					if pc.Path == Path && name == "ActiveConnections" {
						w.configure(ctx, c, data.Statistics, refreshed)
					}
					if !w.send(ctx, out, data) {
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

func (w *Watcher) snapshot(ctx context.Context, c client) Data {
	var data Data

	enabled, err := c.wirelessEnabled()
	data.WifiEnabled = mgs.Fallback(ctx, "wifi_enabled", enabled, err, false)

	connectivity, err := c.connectivity()
	data.Connectivity = mgs.Fallback(ctx, "connectivity", connectivity, err, ConnectivityUnknown)

	active, err := c.activeConnections(ctx)
	data.ActiveConnections = mgs.Fallback(ctx, "active_connections", active, err, nil)

	aps, err := c.accessPoints(ctx)
	data.AccessPoints = mgs.Fallback(ctx, "access_points", aps, err, nil)

	stats, err := c.statistics(connectionDevices(data.ActiveConnections), w.clock.Now().Unix())
	data.Statistics = mgs.Fallback(ctx, "statistics", stats, err, nil)

	return data
}

// configure sets the counter refresh rate on every device in stats that has
// not been configured yet.
func (w *Watcher) configure(ctx context.Context, c client, stats []Statistics, done map[dbus.ObjectPath]bool) {
	ms := uint32(w.refreshRate / time.Millisecond)
	for _, s := range stats {
		if done[s.Device] {
			continue
		}
		done[s.Device] = true
		mgs.CommandError(ctx, "statistics-refresh-rate", c.setRefreshRate(s.Device, ms))
	}
}

// restat follows the active connections to their devices. Counters of
// devices still in use are kept so their rates stay continuous.
func (w *Watcher) restat(ctx context.Context, c client, data *Data) {
	var fresh []dbus.ObjectPath
	var stats []Statistics
	for _, device := range connectionDevices(data.ActiveConnections) {
		if s, ok := data.StatisticsFor(device); ok {
			stats = append(stats, s)
			continue
		}
		fresh = append(fresh, device)
	}
	if len(fresh) > 0 {
		read, err := c.statistics(fresh, w.clock.Now().Unix())
		stats = append(stats, mgs.Fallback(ctx, "statistics", read, err, nil)...)
	}
	data.Statistics = stats
}

// apply handles one changed property. It returns false when the property
// does not affect the snapshot.
func (w *Watcher) apply(ctx context.Context, c client, data *Data, pc bus.PropertiesChanged, name string) bool {
	v, changed := pc.Changed[name]
	var err error
	if !changed {
		v, err = c.obj(pc.Path).GetProperty(pc.Interface + "." + name)
	}

	switch {
	case pc.Path == Path && pc.Interface == Interface:
		switch name {
		case "WirelessEnabled":
			enabled, err := bus.Value[bool](name, v, err)
			data.WifiEnabled = mgs.Fallback(ctx, "wifi_enabled", enabled, err, false)
		case "Connectivity":
			raw, err := bus.Value[uint32](name, v, err)
			data.Connectivity = mgs.Fallback(ctx, "connectivity", ConnectivityFrom(raw), err, ConnectivityUnknown)
		case "ActiveConnections":
			active, err := c.activeConnections(ctx)
			data.ActiveConnections = mgs.Fallback(ctx, "active_connections", active, err, nil)
			w.restat(ctx, c, data)
		default:
			return false
		}
		return true

	case pc.Interface == AccessPointInterface && name == "Strength":
		strength, err := bus.Value[uint8](name, v, err)
		strength = mgs.Fallback(ctx, "access_point.strength", strength, err, 0)
		return setStrength(data, pc.Path, strength)

	case pc.Interface == StatisticsInterface && (name == "RxBytes" || name == "TxBytes"):
		bytes, err := bus.Value[uint64](name, v, err)
		if err != nil {
			mgs.Fallback(ctx, "statistics", 0, err, 0)
			return false
		}
		return observe(data, pc.Path, name, bytes, w.clock.Now().Unix())
	}
	return false
}

// setStrength updates the access point at path and any active WiFi
// connection associated with it.
func setStrength(data *Data, path dbus.ObjectPath, strength uint8) bool {
	found := false
	var ssid string
	for i := range data.AccessPoints {
		if data.AccessPoints[i].Path == path {
			data.AccessPoints[i].Strength = strength
			ssid = data.AccessPoints[i].SSID
			found = true
		}
	}
	for i := range data.ActiveConnections {
		ac := &data.ActiveConnections[i]
		if ac.Kind != KindWifi {
			continue
		}
		if ac.AccessPoint == path || (ssid != "" && ac.Name == ssid) {
			ac.Strength = strength
			found = true
		}
	}
	return found
}

func observe(data *Data, device dbus.ObjectPath, name string, bytes uint64, now int64) bool {
	for i := range data.Statistics {
		s := &data.Statistics[i]
		if s.Device != device {
			continue
		}
		if name == "RxBytes" {
			s.ObserveRx(bytes, now)
		} else {
			s.ObserveTx(bytes, now)
		}
		return true
	}
	return false
}

func (w *Watcher) send(ctx context.Context, out chan<- Data, data Data) bool {
	select {
	case out <- data.Clone():
		return true
	case <-ctx.Done():
		return false
	}
}
