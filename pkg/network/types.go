package network

import "github.com/godbus/dbus/v5"

// ConnectivityState is NetworkManager's view of internet reachability.
type ConnectivityState uint32

const (
	ConnectivityUnknown ConnectivityState = iota
	ConnectivityNone
	ConnectivityPortal
	ConnectivityLoss
	ConnectivityFull
)

// ConnectivityFrom maps the NM_CONNECTIVITY value. Anything unrecognized
// is ConnectivityUnknown.
func ConnectivityFrom(v uint32) ConnectivityState {
	if v >= uint32(ConnectivityNone) && v <= uint32(ConnectivityFull) {
		return ConnectivityState(v)
	}
	return ConnectivityUnknown
}

func (c ConnectivityState) String() string {
	switch c {
	case ConnectivityNone:
		return "none"
	case ConnectivityPortal:
		return "portal"
	case ConnectivityLoss:
		return "limited"
	case ConnectivityFull:
		return "full"
	default:
		return "unknown"
	}
}

// DeviceType is the kind of a network device.
type DeviceType int

const (
	DeviceUnknown DeviceType = iota
	DeviceEthernet
	DeviceWifi
	DeviceBluetooth
	DeviceGeneric
	DeviceTunTap
	DeviceWireGuard
	DeviceOther
)

// DeviceTypeFrom maps the NM_DEVICE_TYPE value.
func DeviceTypeFrom(v uint32) DeviceType {
	switch v {
	case 1:
		return DeviceEthernet
	case 2:
		return DeviceWifi
	case 5:
		return DeviceBluetooth
	case 14:
		return DeviceGeneric
	case 16:
		return DeviceTunTap
	case 29:
		return DeviceWireGuard
	}
	if v >= 3 && v <= 32 {
		return DeviceOther
	}
	return DeviceUnknown
}

// DeviceState is the activation state of a network device.
type DeviceState int

const (
	DeviceStateUnknown DeviceState = iota
	DeviceStateUnmanaged
	DeviceStateUnavailable
	DeviceStateDisconnected
	DeviceStatePrepare
	DeviceStateConfig
	DeviceStateNeedAuth
	DeviceStateIPConfig
	DeviceStateIPCheck
	DeviceStateSecondaries
	DeviceStateActivated
	DeviceStateDeactivating
	DeviceStateFailed
)

// DeviceStateFrom maps the NM_DEVICE_STATE value, which steps by 10 from
// 10 (unmanaged) to 120 (failed).
func DeviceStateFrom(v uint32) DeviceState {
	if v == 0 || v%10 != 0 || v > 120 {
		return DeviceStateUnknown
	}
	return DeviceState(v / 10)
}

// ConnectionKind is the family of an active connection.
type ConnectionKind int

const (
	KindVpn ConnectionKind = iota
	KindWired
	KindWifi
)

func (k ConnectionKind) String() string {
	switch k {
	case KindVpn:
		return "vpn"
	case KindWired:
		return "wired"
	case KindWifi:
		return "wifi"
	default:
		return "unknown"
	}
}

// ActiveConnection is one active NetworkManager connection.
type ActiveConnection struct {
	Kind ConnectionKind
	// ID is the connection profile name.
	ID string
	// Name is the SSID for WiFi and the profile name otherwise.
	Name string
	// Speed is the wired link speed in Mb/s.
	Speed uint32
	// Strength is the WiFi signal strength in percent.
	Strength    uint8
	Device      dbus.ObjectPath
	AccessPoint dbus.ObjectPath
	Path        dbus.ObjectPath
}

// sortKey orders VPNs first, then wired, then WiFi, each by name.
func (c ActiveConnection) sortKey() string {
	switch c.Kind {
	case KindVpn:
		return "0" + c.Name
	case KindWired:
		return "1" + c.Name
	default:
		return "2" + c.Name
	}
}

// AccessPoint is a visible wireless network.
type AccessPoint struct {
	SSID     string
	Strength uint8
	State    DeviceState
	Public   bool
	Path     dbus.ObjectPath
	Device   dbus.ObjectPath
}

// Data is a network snapshot.
type Data struct {
	WifiEnabled       bool
	ActiveConnections []ActiveConnection
	AccessPoints      []AccessPoint
	Connectivity      ConnectivityState
	Statistics        []Statistics
}

// Clone implements mgs.Cloner.
func (d Data) Clone() Data {
	d.ActiveConnections = append([]ActiveConnection(nil), d.ActiveConnections...)
	d.AccessPoints = append([]AccessPoint(nil), d.AccessPoints...)
	d.Statistics = append([]Statistics(nil), d.Statistics...)
	return d
}

// StatisticsFor returns the counters of device, if it has any.
func (d Data) StatisticsFor(device dbus.ObjectPath) (Statistics, bool) {
	for _, s := range d.Statistics {
		if s.Device == device {
			return s, true
		}
	}
	return Statistics{}, false
}
