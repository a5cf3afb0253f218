package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/zoobzio/clockz"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/pkg/bus/bustest"
)

const (
	wifiDevice  = dbus.ObjectPath("/org/freedesktop/NetworkManager/Devices/2")
	homeAP      = dbus.ObjectPath("/org/freedesktop/NetworkManager/AccessPoint/1")
	cafeAP      = dbus.ObjectPath("/org/freedesktop/NetworkManager/AccessPoint/2")
	activeWifi  = dbus.ObjectPath("/org/freedesktop/NetworkManager/ActiveConnection/1")
	wiredDevice = dbus.ObjectPath("/org/freedesktop/NetworkManager/Devices/1")
	activeWired = dbus.ObjectPath("/org/freedesktop/NetworkManager/ActiveConnection/2")
)

func newConn() *bustest.Conn {
	conn := bustest.NewConn()
	conn.Obj(Service, Path).
		SetProp(Interface+".WirelessEnabled", true).
		SetProp(Interface+".Connectivity", uint32(4)).
		SetProp(Interface+".ActiveConnections", []dbus.ObjectPath{activeWifi}).
		Returns(Interface+".GetDevices", []dbus.ObjectPath{wifiDevice})

	conn.Obj(Service, wifiDevice).
		SetProp(DeviceInterface+".DeviceType", uint32(2)).
		SetProp(DeviceInterface+".State", uint32(100)).
		SetProp(WirelessInterface+".ActiveAccessPoint", homeAP).
		SetProp(StatisticsInterface+".RxBytes", uint64(1000)).
		SetProp(StatisticsInterface+".TxBytes", uint64(500)).
		Returns(WirelessInterface+".RequestScan").
		Returns(WirelessInterface+".GetAccessPoints", []dbus.ObjectPath{homeAP, cafeAP})

	conn.Obj(Service, homeAP).
		SetProp(AccessPointInterface+".Ssid", []byte("home")).
		SetProp(AccessPointInterface+".Strength", uint8(70)).
		SetProp(AccessPointInterface+".Flags", uint32(1))
	conn.Obj(Service, cafeAP).
		SetProp(AccessPointInterface+".Ssid", []byte("cafe")).
		SetProp(AccessPointInterface+".Strength", uint8(40)).
		SetProp(AccessPointInterface+".Flags", uint32(0))

	conn.Obj(Service, activeWifi).
		SetProp(ActiveConnectionInterface+".Id", "home").
		SetProp(ActiveConnectionInterface+".Vpn", false).
		SetProp(ActiveConnectionInterface+".Devices", []dbus.ObjectPath{wifiDevice})
	return conn
}

func next(t *testing.T, ch <-chan Data) Data {
	t.Helper()
	select {
	case d, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return d
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
	return Data{}
}

func TestWatcher_InitialSnapshot(t *testing.T) {
	conn := newConn()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := New(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	d := next(t, out)

	if !d.WifiEnabled {
		t.Error("expected wifi enabled")
	}
	if d.Connectivity != ConnectivityFull {
		t.Errorf("expected full connectivity, got %s", d.Connectivity)
	}
	if len(d.ActiveConnections) != 1 {
		t.Fatalf("expected 1 active connection, got %d", len(d.ActiveConnections))
	}
	ac := d.ActiveConnections[0]
	if ac.Kind != KindWifi || ac.Name != "home" || ac.Strength != 70 || ac.AccessPoint != homeAP {
		t.Errorf("unexpected active connection %+v", ac)
	}

	if len(d.AccessPoints) != 2 || d.AccessPoints[0].SSID != "home" || d.AccessPoints[1].SSID != "cafe" {
		t.Fatalf("expected access points sorted by strength, got %+v", d.AccessPoints)
	}
	if d.AccessPoints[0].Public || !d.AccessPoints[1].Public {
		t.Error("public flag not derived from Flags")
	}
	if d.AccessPoints[0].State != DeviceStateActivated {
		t.Errorf("expected activated device state, got %d", d.AccessPoints[0].State)
	}

	if len(d.Statistics) != 1 || d.Statistics[0].Rx != 1000 || d.Statistics[0].Tx != 500 {
		t.Errorf("unexpected statistics %+v", d.Statistics)
	}

	if got := conn.Obj(Service, wifiDevice).Set[StatisticsInterface+".RefreshRateMs"]; got != uint32(1000) {
		t.Errorf("expected refresh rate 1000ms, got %v", got)
	}
}

func TestWatcher_WiredAndVpnSortFirst(t *testing.T) {
	conn := newConn()
	vpn := dbus.ObjectPath("/org/freedesktop/NetworkManager/ActiveConnection/3")
	conn.Obj(Service, Path).SetProp(Interface+".ActiveConnections", []dbus.ObjectPath{activeWifi, activeWired, vpn})
	conn.Obj(Service, wiredDevice).
		SetProp(DeviceInterface+".DeviceType", uint32(1)).
		SetProp(WiredInterface+".Speed", uint32(1000))
	conn.Obj(Service, activeWired).
		SetProp(ActiveConnectionInterface+".Id", "lan").
		SetProp(ActiveConnectionInterface+".Vpn", false).
		SetProp(ActiveConnectionInterface+".Devices", []dbus.ObjectPath{wiredDevice})
	conn.Obj(Service, vpn).
		SetProp(ActiveConnectionInterface+".Id", "work").
		SetProp(ActiveConnectionInterface+".Vpn", true).
		SetProp(ActiveConnectionInterface+".Devices", []dbus.ObjectPath{wiredDevice})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := New(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	d := next(t, out)

	if len(d.ActiveConnections) != 3 {
		t.Fatalf("expected 3 active connections, got %+v", d.ActiveConnections)
	}
	kinds := []ConnectionKind{d.ActiveConnections[0].Kind, d.ActiveConnections[1].Kind, d.ActiveConnections[2].Kind}
	if kinds[0] != KindVpn || kinds[1] != KindWired || kinds[2] != KindWifi {
		t.Errorf("expected vpn, wired, wifi order, got %v", kinds)
	}
	if d.ActiveConnections[1].Speed != 1000 {
		t.Errorf("expected wired speed 1000, got %d", d.ActiveConnections[1].Speed)
	}
}

func TestWatcher_WirelessToggle(t *testing.T) {
	conn := newConn()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := New(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	next(t, out)

	conn.EmitPropertiesChanged(Path, Interface, map[string]interface{}{"WirelessEnabled": false})
	if d := next(t, out); d.WifiEnabled {
		t.Error("expected wifi disabled")
	}
}

func TestWatcher_StrengthUpdatesActiveConnection(t *testing.T) {
	conn := newConn()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := New(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	next(t, out)

	conn.EmitPropertiesChanged(homeAP, AccessPointInterface, map[string]interface{}{"Strength": uint8(20)})
	d := next(t, out)
	if d.ActiveConnections[0].Strength != 20 {
		t.Errorf("expected active strength 20, got %d", d.ActiveConnections[0].Strength)
	}
	for _, ap := range d.AccessPoints {
		if ap.Path == homeAP && ap.Strength != 20 {
			t.Errorf("expected access point strength 20, got %d", ap.Strength)
		}
	}
}

func TestWatcher_StatisticsSpeed(t *testing.T) {
	conn := newConn()
	clock := clockz.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := New(conn).Clock(clock).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	next(t, out)

	clock.Advance(2 * time.Second)
	conn.EmitPropertiesChanged(wifiDevice, StatisticsInterface, map[string]interface{}{"RxBytes": uint64(3000)})

	d := next(t, out)
	s, ok := d.StatisticsFor(wifiDevice)
	if !ok {
		t.Fatal("missing statistics")
	}
	if got := s.RxSpeed(); got != 1000 {
		t.Errorf("expected 1000 B/s, got %v", got)
	}
}

func TestWatcher_IgnoresUnrelatedProperties(t *testing.T) {
	conn := newConn()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := New(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	next(t, out)

	conn.EmitPropertiesChanged(Path, Interface, map[string]interface{}{"Version": "1.46"})
	conn.EmitPropertiesChanged(Path, Interface, map[string]interface{}{"Connectivity": uint32(1)})

	if d := next(t, out); d.Connectivity != ConnectivityNone {
		t.Errorf("expected next snapshot to carry connectivity change, got %s", d.Connectivity)
	}
}

func TestWatcher_Disconnect(t *testing.T) {
	conn := newConn()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(conn)
	out, err := w.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	next(t, out)

	conn.Disconnect()
	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected channel to close")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close")
	}
	if w.Err() == nil {
		t.Error("expected disconnect error")
	}
}

func TestWatcher_NoDevices(t *testing.T) {
	conn := bustest.NewConn()
	if _, err := New(conn).Watch(context.Background()); err == nil {
		t.Fatal("expected error when GetDevices is unavailable")
	}
}

func TestWatcher_RoamKeepsStrengthUpdates(t *testing.T) {
	conn := newConn()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := New(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	next(t, out)

	roamed := dbus.ObjectPath("/org/freedesktop/NetworkManager/AccessPoint/9")
	conn.Obj(Service, roamed).
		SetProp(AccessPointInterface+".Ssid", []byte("home")).
		SetProp(AccessPointInterface+".Strength", uint8(90))
	conn.Obj(Service, wifiDevice).SetProp(WirelessInterface+".ActiveAccessPoint", roamed)
	conn.EmitPropertiesChanged(Path, Interface, map[string]interface{}{"ActiveConnections": []dbus.ObjectPath{activeWifi}})

	d := next(t, out)
	if d.ActiveConnections[0].AccessPoint != roamed || d.ActiveConnections[0].Strength != 90 {
		t.Fatalf("expected roamed access point, got %+v", d.ActiveConnections[0])
	}

	covered := false
	for _, m := range conn.Matches() {
		if m.Arg0 == AccessPointInterface && (m.Path == "" || m.Path == roamed) {
			covered = true
		}
	}
	if !covered {
		t.Fatalf("no match delivers %s signals: %+v", roamed, conn.Matches())
	}

	conn.EmitPropertiesChanged(roamed, AccessPointInterface, map[string]interface{}{"Strength": uint8(35)})
	if d := next(t, out); d.ActiveConnections[0].Strength != 35 {
		t.Errorf("expected roamed strength 35, got %d", d.ActiveConnections[0].Strength)
	}
}

func wiredConn() *bustest.Conn {
	conn := newConn()
	conn.Obj(Service, wiredDevice).
		SetProp(DeviceInterface+".DeviceType", uint32(1)).
		SetProp(WiredInterface+".Speed", uint32(1000)).
		SetProp(StatisticsInterface+".RxBytes", uint64(7000)).
		SetProp(StatisticsInterface+".TxBytes", uint64(3000))
	conn.Obj(Service, activeWired).
		SetProp(ActiveConnectionInterface+".Id", "lan").
		SetProp(ActiveConnectionInterface+".Vpn", false).
		SetProp(ActiveConnectionInterface+".Devices", []dbus.ObjectPath{wiredDevice})
	return conn
}

func TestWatcher_WiredStatistics(t *testing.T) {
	conn := wiredConn()
	conn.Obj(Service, Path).SetProp(Interface+".ActiveConnections", []dbus.ObjectPath{activeWired})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := New(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	d := next(t, out)

	if len(d.Statistics) != 1 || d.Statistics[0].Device != wiredDevice || d.Statistics[0].Rx != 7000 {
		t.Fatalf("expected wired counters only, got %+v", d.Statistics)
	}
	if got := conn.Obj(Service, wiredDevice).Set[StatisticsInterface+".RefreshRateMs"]; got != uint32(1000) {
		t.Errorf("expected refresh rate on the wired device, got %v", got)
	}
	if got, ok := conn.Obj(Service, wifiDevice).Set[StatisticsInterface+".RefreshRateMs"]; ok {
		t.Errorf("idle wifi device configured: %v", got)
	}
}

func TestWatcher_StatisticsFollowConnection(t *testing.T) {
	conn := wiredConn()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := New(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if d := next(t, out); len(d.Statistics) != 1 || d.Statistics[0].Device != wifiDevice {
		t.Fatalf("expected wifi counters, got %+v", d.Statistics)
	}

	conn.Obj(Service, Path).SetProp(Interface+".ActiveConnections", []dbus.ObjectPath{activeWired})
	conn.EmitPropertiesChanged(Path, Interface, map[string]interface{}{"ActiveConnections": []dbus.ObjectPath{activeWired}})

	d := next(t, out)
	if len(d.Statistics) != 1 || d.Statistics[0].Device != wiredDevice {
		t.Fatalf("expected counters to follow the wired connection, got %+v", d.Statistics)
	}
	if got := conn.Obj(Service, wiredDevice).Set[StatisticsInterface+".RefreshRateMs"]; got != uint32(1000) {
		t.Errorf("expected refresh rate on the new device, got %v", got)
	}
}

func TestWatcher_UnreadableVpnFlagFallsBack(t *testing.T) {
	conn := newConn()
	conn.Obj(Service, activeWifi).FailProp(ActiveConnectionInterface+".Vpn", errors.New("no such property"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := mgs.NewProducer[Data]("network", New(conn))
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if p.State() != mgs.StateDegraded {
		t.Errorf("expected degraded, got %s", p.State())
	}
	if d := p.Channel().Current(); len(d.ActiveConnections) != 1 || d.ActiveConnections[0].Kind != KindWifi {
		t.Errorf("expected the connection read as non-VPN, got %+v", d.ActiveConnections)
	}
}
