package bus

import (
	"context"
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"
)

// DecodeError reports a property whose value did not have the expected type.
type DecodeError struct {
	Property string
	Want     string
	Got      interface{}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: want %s, got %T", e.Property, e.Want, e.Got)
}

// Decode extracts a V from a property variant. A mismatched type yields a
// *DecodeError, never a panic.
func Decode[V any](property string, v dbus.Variant) (V, error) {
	out, ok := v.Value().(V)
	if !ok {
		var zero V
		return zero, &DecodeError{
			Property: property,
			Want:     fmt.Sprintf("%T", zero),
			Got:      v.Value(),
		}
	}
	return out, nil
}

// Value is Decode for a property read that may itself have failed: a read
// error is passed through, otherwise v is decoded.
func Value[V any](property string, v dbus.Variant, err error) (V, error) {
	if err != nil {
		var zero V
		return zero, err
	}
	return Decode[V](property, v)
}

// Get reads iface.property from obj and decodes it.
func Get[V any](obj Object, iface, property string) (V, error) {
	v, err := obj.GetProperty(iface + "." + property)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("get %s: %w", property, err)
	}
	return Decode[V](property, v)
}

// Call invokes method on obj and stores its single return value.
func Call[V any](ctx context.Context, obj Object, method string, args ...interface{}) (V, error) {
	var out V
	call := obj.CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return out, fmt.Errorf("call %s: %w", method, call.Err)
	}
	if err := call.Store(&out); err != nil {
		return out, fmt.Errorf("store %s reply: %w", method, err)
	}
	return out, nil
}

// PropertiesChanged is a decoded org.freedesktop.DBus.Properties.PropertiesChanged signal.
type PropertiesChanged struct {
	Path        dbus.ObjectPath
	Interface   string
	Changed     map[string]dbus.Variant
	Invalidated []string
}

// ParsePropertiesChanged decodes sig. It returns false for any other signal
// or a malformed body.
func ParsePropertiesChanged(sig *dbus.Signal) (PropertiesChanged, bool) {
	if sig == nil || sig.Name != PropertiesChangedSignal || len(sig.Body) < 2 {
		return PropertiesChanged{}, false
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return PropertiesChanged{}, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return PropertiesChanged{}, false
	}
	pc := PropertiesChanged{Path: sig.Path, Interface: iface, Changed: changed}
	if len(sig.Body) > 2 {
		pc.Invalidated, _ = sig.Body[2].([]string)
	}
	return pc, true
}

// Names returns the changed property names sorted, followed by the
// invalidated ones in signal order.
func (pc PropertiesChanged) Names() []string {
	names := make([]string, 0, len(pc.Changed)+len(pc.Invalidated))
	for name := range pc.Changed {
		names = append(names, name)
	}
	sort.Strings(names)
	return append(names, pc.Invalidated...)
}
