package upower

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/pkg/bus"
	"github.com/wuliuqii/mgs/pkg/bus/bustest"
)

const devicePath = dbus.ObjectPath("/org/freedesktop/UPower/devices/DisplayDevice")

func newConn() (*bustest.Conn, *bustest.Object) {
	conn := bustest.NewConn()
	conn.Obj(Service, Path).Returns(Service+".GetDisplayDevice", devicePath)
	dev := conn.Obj(Service, devicePath).
		SetProp(DeviceInterface+".Percentage", 5.0).
		SetProp(DeviceInterface+".State", uint32(StateDischarging)).
		SetProp(DeviceInterface+".TimeToFull", int64(0)).
		SetProp(DeviceInterface+".TimeToEmpty", int64(1800)).
		SetProp(DeviceInterface+".IsPresent", true)
	return conn, dev
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
	conn, _ := newConn()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := New(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	d := next(t, out)
	if d.Percentage != 5 {
		t.Errorf("expected 5%%, got %v", d.Percentage)
	}
	if d.State != StateDischarging {
		t.Errorf("expected Discharging, got %s", d.State)
	}
	if d.TimeToEmpty != 30*time.Minute {
		t.Errorf("expected 30m to empty, got %v", d.TimeToEmpty)
	}
	if !d.IsPresent {
		t.Error("expected device present")
	}

	matches := conn.Matches()
	if len(matches) != 1 || matches[0].Path != devicePath || matches[0].Arg0 != DeviceInterface {
		t.Errorf("unexpected matches %+v", matches)
	}
}

func TestWatcher_PublishesEachChangedProperty(t *testing.T) {
	conn, dev := newConn()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := New(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	next(t, out)

	dev.SetProp(DeviceInterface+".TimeToFull", int64(600))
	conn.EmitPropertiesChanged(devicePath, DeviceInterface, map[string]interface{}{
		"Percentage": 50.0,
		"State":      uint32(StateCharging),
	}, "TimeToFull")

	first := next(t, out)
	if first.Percentage != 50 || first.State != StateDischarging {
		t.Errorf("expected percentage applied alone first, got %+v", first)
	}
	second := next(t, out)
	if second.State != StateCharging {
		t.Errorf("expected Charging, got %s", second.State)
	}
	third := next(t, out)
	if third.TimeToFull != 10*time.Minute {
		t.Errorf("expected invalidated TimeToFull refetched, got %v", third.TimeToFull)
	}
}

func TestWatcher_IgnoresOtherObjects(t *testing.T) {
	conn, _ := newConn()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, _ := New(conn).Watch(ctx)
	next(t, out)

	conn.EmitPropertiesChanged("/org/freedesktop/UPower/devices/battery_BAT1", DeviceInterface, map[string]interface{}{
		"Percentage": 99.0,
	})
	conn.EmitPropertiesChanged(devicePath, DeviceInterface, map[string]interface{}{
		"Percentage": 6.0,
	})

	if d := next(t, out); d.Percentage != 6 {
		t.Errorf("expected 6 from the display device, got %v", d.Percentage)
	}
}

func TestWatcher_DisconnectEndsWatch(t *testing.T) {
	conn, _ := newConn()
	w := New(conn)

	out, _ := w.Watch(context.Background())
	next(t, out)
	conn.Disconnect()

	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected channel closed")
		}
	case <-time.After(time.Second):
		t.Fatal("watch did not end on disconnect")
	}
	if !errors.Is(w.Err(), bus.ErrDisconnected) {
		t.Errorf("expected ErrDisconnected, got %v", w.Err())
	}
}

func TestWatcher_NoDisplayDevice(t *testing.T) {
	conn := bustest.NewConn()
	if _, err := New(conn).Watch(context.Background()); err == nil {
		t.Fatal("expected error without a display device")
	}
}

func TestProducer_FailedPropertyDegrades(t *testing.T) {
	conn, dev := newConn()
	dev.FailProp(DeviceInterface+".State", errors.New("access denied"))

	p := mgs.NewProducer[Data]("upower", New(conn))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if p.State() != mgs.StateDegraded {
		t.Errorf("expected degraded, got %s", p.State())
	}
	if got := p.Channel().Current(); got.State != StateUnknown || got.Percentage != 5 {
		t.Errorf("expected state Unknown with other fields intact, got %+v", got)
	}
}

func TestApply_WrongTypeFallsBack(t *testing.T) {
	d := Data{Percentage: 40}
	if !apply(context.Background(), &d, "Percentage", dbus.MakeVariant("forty"), nil) {
		t.Fatal("expected Percentage to be tracked")
	}
	if d.Percentage != 0 {
		t.Errorf("expected default 0, got %v", d.Percentage)
	}
	if apply(context.Background(), &d, "Vendor", dbus.MakeVariant("ACME"), nil) {
		t.Error("expected untracked property to be ignored")
	}
}

func TestBatteryState_Families(t *testing.T) {
	charging := []BatteryState{StateCharging, StateFullyCharged, StatePendingCharge}
	for _, s := range charging {
		if !s.Charging() || s.Discharging() {
			t.Errorf("%s should be in the charging family", s)
		}
	}
	for _, s := range []BatteryState{StateDischarging, StatePendingDischarge} {
		if s.Charging() || !s.Discharging() {
			t.Errorf("%s should be in the discharging family", s)
		}
	}
	for _, s := range []BatteryState{StateUnknown, StateEmpty, BatteryState(42)} {
		if s.Charging() || s.Discharging() {
			t.Errorf("%s should be in neither family", s)
		}
	}
	if BatteryState(42).String() != "Unknown" {
		t.Errorf("expected Unknown, got %s", BatteryState(42))
	}
}
