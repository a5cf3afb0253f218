package bus

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestDecode_MatchingType(t *testing.T) {
	got, err := Decode[float64]("Percentage", dbus.MakeVariant(42.5))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != 42.5 {
		t.Errorf("expected 42.5, got %v", got)
	}
}

func TestDecode_MismatchIsError(t *testing.T) {
	_, err := Decode[uint32]("State", dbus.MakeVariant("charging"))

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if decodeErr.Property != "State" {
		t.Errorf("expected property State, got %q", decodeErr.Property)
	}
	if decodeErr.Want != "uint32" {
		t.Errorf("expected want uint32, got %q", decodeErr.Want)
	}
}

func TestParsePropertiesChanged(t *testing.T) {
	sig := &dbus.Signal{
		Path: "/org/freedesktop/UPower/devices/DisplayDevice",
		Name: PropertiesChangedSignal,
		Body: []interface{}{
			"org.freedesktop.UPower.Device",
			map[string]dbus.Variant{
				"State":      dbus.MakeVariant(uint32(1)),
				"Percentage": dbus.MakeVariant(50.0),
			},
			[]string{"TimeToFull"},
		},
	}

	pc, ok := ParsePropertiesChanged(sig)
	if !ok {
		t.Fatal("expected signal to parse")
	}
	if pc.Interface != "org.freedesktop.UPower.Device" {
		t.Errorf("unexpected interface %q", pc.Interface)
	}

	names := pc.Names()
	want := []string{"Percentage", "State", "TimeToFull"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestParsePropertiesChanged_RejectsOtherSignals(t *testing.T) {
	cases := []*dbus.Signal{
		nil,
		{Name: "org.freedesktop.NetworkManager.StateChanged", Body: []interface{}{uint32(70)}},
		{Name: PropertiesChangedSignal, Body: []interface{}{"iface"}},
		{Name: PropertiesChangedSignal, Body: []interface{}{1, map[string]dbus.Variant{}}},
	}
	for i, sig := range cases {
		if _, ok := ParsePropertiesChanged(sig); ok {
			t.Errorf("case %d: expected rejection", i)
		}
	}
}

func TestPropertiesMatch(t *testing.T) {
	m := PropertiesMatch("/org/freedesktop/NetworkManager", "org.freedesktop.NetworkManager")
	if m.Member != "PropertiesChanged" || m.Interface != PropertiesInterface {
		t.Errorf("unexpected match %+v", m)
	}
	if len(m.options()) != 4 {
		t.Errorf("expected 4 match options, got %d", len(m.options()))
	}
}
