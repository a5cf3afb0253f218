package network

import "testing"

func TestConnectivityFrom(t *testing.T) {
	tests := map[uint32]ConnectivityState{
		0: ConnectivityUnknown,
		1: ConnectivityNone,
		2: ConnectivityPortal,
		3: ConnectivityLoss,
		4: ConnectivityFull,
		9: ConnectivityUnknown,
	}
	for raw, want := range tests {
		if got := ConnectivityFrom(raw); got != want {
			t.Errorf("ConnectivityFrom(%d) = %s, want %s", raw, got, want)
		}
	}
}

func TestDeviceTypeFrom(t *testing.T) {
	tests := map[uint32]DeviceType{
		0:   DeviceUnknown,
		1:   DeviceEthernet,
		2:   DeviceWifi,
		5:   DeviceBluetooth,
		14:  DeviceGeneric,
		16:  DeviceTunTap,
		29:  DeviceWireGuard,
		3:   DeviceOther,
		32:  DeviceOther,
		100: DeviceUnknown,
	}
	for raw, want := range tests {
		if got := DeviceTypeFrom(raw); got != want {
			t.Errorf("DeviceTypeFrom(%d) = %d, want %d", raw, got, want)
		}
	}
}

func TestDeviceStateFrom(t *testing.T) {
	tests := map[uint32]DeviceState{
		0:   DeviceStateUnknown,
		10:  DeviceStateUnmanaged,
		30:  DeviceStateDisconnected,
		100: DeviceStateActivated,
		120: DeviceStateFailed,
		15:  DeviceStateUnknown,
		130: DeviceStateUnknown,
	}
	for raw, want := range tests {
		if got := DeviceStateFrom(raw); got != want {
			t.Errorf("DeviceStateFrom(%d) = %d, want %d", raw, got, want)
		}
	}
}

func TestData_CloneIsIndependent(t *testing.T) {
	d := Data{
		ActiveConnections: []ActiveConnection{{Kind: KindWifi, Name: "home"}},
		AccessPoints:      []AccessPoint{{SSID: "home"}},
		Statistics:        []Statistics{{Device: "/dev/0"}},
	}
	c := d.Clone()
	c.ActiveConnections[0].Name = "other"
	c.AccessPoints[0].SSID = "other"
	c.Statistics[0].Rx = 42

	if d.ActiveConnections[0].Name != "home" || d.AccessPoints[0].SSID != "home" || d.Statistics[0].Rx != 0 {
		t.Error("clone shares memory with original")
	}
}

func TestData_StatisticsFor(t *testing.T) {
	d := Data{Statistics: []Statistics{{Device: "/dev/0", Rx: 1}, {Device: "/dev/1", Rx: 2}}}
	s, ok := d.StatisticsFor("/dev/1")
	if !ok || s.Rx != 2 {
		t.Errorf("expected /dev/1 statistics, got %+v, %v", s, ok)
	}
	if _, ok := d.StatisticsFor("/dev/9"); ok {
		t.Error("expected no statistics for unknown device")
	}
}
