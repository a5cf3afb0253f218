package network

import (
	"context"
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/pkg/bus"
)

// NetworkManager bus names.
const (
	Service                   = "org.freedesktop.NetworkManager"
	Path                      = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	Interface                 = Service
	DeviceInterface           = Service + ".Device"
	WiredInterface            = Service + ".Device.Wired"
	WirelessInterface         = Service + ".Device.Wireless"
	StatisticsInterface       = Service + ".Device.Statistics"
	AccessPointInterface      = Service + ".AccessPoint"
	ActiveConnectionInterface = Service + ".Connection.Active"
)

// client reads NetworkManager objects. Every method is a plain bus read;
// the watcher decides how failures degrade.
type client struct {
	conn bus.Conn
}

func (c client) obj(path dbus.ObjectPath) bus.Object {
	return c.conn.Object(Service, path)
}

func (c client) wirelessEnabled() (bool, error) {
	return bus.Get[bool](c.obj(Path), Interface, "WirelessEnabled")
}

func (c client) connectivity() (ConnectivityState, error) {
	v, err := bus.Get[uint32](c.obj(Path), Interface, "Connectivity")
	return ConnectivityFrom(v), err
}

func (c client) devices(ctx context.Context) ([]dbus.ObjectPath, error) {
	return bus.Call[[]dbus.ObjectPath](ctx, c.obj(Path), Interface+".GetDevices")
}

func (c client) deviceType(device dbus.ObjectPath) (DeviceType, error) {
	v, err := bus.Get[uint32](c.obj(device), DeviceInterface, "DeviceType")
	if err != nil {
		return DeviceUnknown, err
	}
	return DeviceTypeFrom(v), nil
}

func (c client) wirelessDevices(ctx context.Context) ([]dbus.ObjectPath, error) {
	devices, err := c.devices(ctx)
	if err != nil {
		return nil, err
	}
	var out []dbus.ObjectPath
	for _, device := range devices {
		if t, err := c.deviceType(device); err == nil && t == DeviceWifi {
			out = append(out, device)
		}
	}
	return out, nil
}

// activeConnections resolves every active connection to its kind, sorted
// VPN first, then wired, then WiFi.
func (c client) activeConnections(ctx context.Context) ([]ActiveConnection, error) {
	paths, err := bus.Get[[]dbus.ObjectPath](c.obj(Path), Interface, "ActiveConnections")
	if err != nil {
		return nil, err
	}

	var out []ActiveConnection
	for _, path := range paths {
		ac := c.obj(path)
		id, err := bus.Get[string](ac, ActiveConnectionInterface, "Id")
		id = mgs.Fallback(ctx, "active_connection.id", id, err, "")
		vpn, err := bus.Get[bool](ac, ActiveConnectionInterface, "Vpn")
		vpn = mgs.Fallback(ctx, "active_connection.vpn", vpn, err, false)
		devices, err := bus.Get[[]dbus.ObjectPath](ac, ActiveConnectionInterface, "Devices")
		devices = mgs.Fallback(ctx, "active_connection.devices", devices, err, nil)

		for _, device := range devices {
			if vpn {
				out = append(out, ActiveConnection{Kind: KindVpn, ID: id, Name: id, Path: path})
				continue
			}

			kind, err := c.deviceType(device)
			if err != nil {
				continue
			}
			switch kind {
			case DeviceEthernet:
				speed, err := bus.Get[uint32](c.obj(device), WiredInterface, "Speed")
				out = append(out, ActiveConnection{
					Kind:   KindWired,
					ID:     id,
					Name:   id,
					Speed:  mgs.Fallback(ctx, "wired.speed", speed, err, 0),
					Device: device,
					Path:   path,
				})
			case DeviceWifi:
				apPath, err := bus.Get[dbus.ObjectPath](c.obj(device), WirelessInterface, "ActiveAccessPoint")
				if err != nil || apPath == "/" {
					continue
				}
				ap := c.obj(apPath)
				ssid, err := bus.Get[[]byte](ap, AccessPointInterface, "Ssid")
				if err != nil {
					continue
				}
				strength, err := bus.Get[uint8](ap, AccessPointInterface, "Strength")
				out = append(out, ActiveConnection{
					Kind:        KindWifi,
					ID:          id,
					Name:        string(ssid),
					Strength:    mgs.Fallback(ctx, "access_point.strength", strength, err, 0),
					Device:      device,
					AccessPoint: apPath,
					Path:        path,
				})
			case DeviceWireGuard:
				out = append(out, ActiveConnection{Kind: KindVpn, ID: id, Name: id, Device: device, Path: path})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].sortKey() < out[j].sortKey()
	})
	return out, nil
}

// accessPoints lists visible networks on every wireless device, one entry
// per SSID (the strongest), strongest first.
func (c client) accessPoints(ctx context.Context) ([]AccessPoint, error) {
	devices, err := c.wirelessDevices(ctx)
	if err != nil {
		return nil, err
	}

	var out []AccessPoint
	for _, device := range devices {
		wireless := c.obj(device)
		if call := wireless.CallWithContext(ctx, WirelessInterface+".RequestScan", 0, map[string]dbus.Variant{}); call.Err != nil {
			mgs.CommandError(ctx, "request-scan", call.Err)
		}

		paths, err := bus.Call[[]dbus.ObjectPath](ctx, wireless, WirelessInterface+".GetAccessPoints")
		if err != nil {
			continue
		}
		rawState, err := bus.Get[uint32](wireless, DeviceInterface, "State")
		state := DeviceStateUnknown
		if err == nil {
			state = DeviceStateFrom(rawState)
		}

		strongest := make(map[string]AccessPoint)
		for _, path := range paths {
			ap := c.obj(path)
			ssid, err := bus.Get[[]byte](ap, AccessPointInterface, "Ssid")
			if err != nil {
				continue
			}
			strength, err := bus.Get[uint8](ap, AccessPointInterface, "Strength")
			if err != nil {
				continue
			}
			flags, _ := bus.Get[uint32](ap, AccessPointInterface, "Flags")

			name := string(ssid)
			if prev, ok := strongest[name]; ok && prev.Strength > strength {
				continue
			}
			strongest[name] = AccessPoint{
				SSID:     name,
				Strength: strength,
				State:    state,
				Public:   flags == 0,
				Path:     path,
				Device:   device,
			}
		}
		for _, ap := range strongest {
			out = append(out, ap)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].SSID < out[j].SSID
	})
	return out, nil
}

// connectionDevices lists the devices carrying active connections, in
// connection order, without duplicates.
func connectionDevices(active []ActiveConnection) []dbus.ObjectPath {
	var out []dbus.ObjectPath
	seen := make(map[dbus.ObjectPath]bool)
	for _, ac := range active {
		if ac.Device == "" || seen[ac.Device] {
			continue
		}
		seen[ac.Device] = true
		out = append(out, ac.Device)
	}
	return out
}

// statistics reads the byte counters of devices. A device whose counters
// cannot be read is left out, never substituted.
func (c client) statistics(devices []dbus.ObjectPath, now int64) ([]Statistics, error) {
	var (
		out   []Statistics
		first error
	)
	for _, device := range devices {
		obj := c.obj(device)
		rx, err := bus.Get[uint64](obj, StatisticsInterface, "RxBytes")
		if err == nil {
			var tx uint64
			tx, err = bus.Get[uint64](obj, StatisticsInterface, "TxBytes")
			if err == nil {
				out = append(out, NewStatistics(device, rx, tx, now))
				continue
			}
		}
		if first == nil {
			first = fmt.Errorf("statistics of %s: %w", device, err)
		}
	}
	if len(out) == 0 && first != nil {
		return nil, first
	}
	return out, nil
}

// setRefreshRate asks NetworkManager to update the counters of device
// every ms milliseconds. Counters do not change while the rate is 0.
func (c client) setRefreshRate(device dbus.ObjectPath, ms uint32) error {
	if err := c.obj(device).SetProperty(StatisticsInterface+".RefreshRateMs", dbus.MakeVariant(ms)); err != nil {
		return fmt.Errorf("set refresh rate on %s: %w", device, err)
	}
	return nil
}
