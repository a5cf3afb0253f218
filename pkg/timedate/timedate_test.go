package timedate

import (
	"context"
	"testing"
	"time"

	"github.com/wuliuqii/mgs/pkg/bus/bustest"
)

func TestWatcher_SnapshotAndTimezoneChange(t *testing.T) {
	conn := bustest.NewConn()
	conn.Obj(Service, Path).
		SetProp(Interface+".Timezone", "Europe/Berlin").
		SetProp(Interface+".LocalRTC", false).
		SetProp(Interface+".NTP", true).
		SetProp(Interface+".NTPSynchronized", true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := New(conn).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	d := <-out
	if d.Timezone != "Europe/Berlin" || !d.NTP || !d.NTPSynchronized {
		t.Errorf("unexpected snapshot %+v", d)
	}

	conn.EmitPropertiesChanged(Path, Interface, map[string]interface{}{
		"Timezone": "Asia/Shanghai",
		"NTP":      false,
	})

	select {
	case d = <-out:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for change")
	}
	if d.Timezone != "Asia/Shanghai" || d.NTP {
		t.Errorf("expected both fields in one snapshot, got %+v", d)
	}
}

func TestWatcher_MissingPropertyDefaults(t *testing.T) {
	conn := bustest.NewConn()
	conn.Obj(Service, Path).SetProp(Interface+".Timezone", "UTC")

	out, err := New(conn).Watch(context.Background())
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	d := <-out
	if d.Timezone != "UTC" || d.NTP {
		t.Errorf("unexpected snapshot %+v", d)
	}
}

func TestData_Location(t *testing.T) {
	if loc := (Data{}).Location(); loc != time.Local {
		t.Errorf("expected time.Local for empty zone, got %v", loc)
	}
	if loc := (Data{Timezone: "Not/AZone"}).Location(); loc != time.Local {
		t.Errorf("expected time.Local for unknown zone, got %v", loc)
	}
	if loc := (Data{Timezone: "UTC"}).Location(); loc.String() != "UTC" {
		t.Errorf("expected UTC, got %v", loc)
	}
}
