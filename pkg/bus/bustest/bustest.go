// Package bustest provides an in-memory bus.Conn for source tests.
package bustest

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/wuliuqii/mgs/pkg/bus"
)

// Conn is an in-memory bus.Conn. Objects are created on first use.
type Conn struct {
	mu      sync.Mutex
	objects map[string]*Object
	signals chan *dbus.Signal
	matches []bus.Match
}

// NewConn creates an empty Conn.
func NewConn() *Conn {
	return &Conn{
		objects: make(map[string]*Object),
		signals: make(chan *dbus.Signal, 64),
	}
}

// Object implements bus.Conn.
func (c *Conn) Object(dest string, path dbus.ObjectPath) bus.Object {
	return c.Obj(dest, path)
}

// Obj returns the fake object at path, creating it if needed.
func (c *Conn) Obj(dest string, path dbus.ObjectPath) *Object {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := dest + string(path)
	obj, ok := c.objects[key]
	if !ok {
		obj = &Object{
			path:    path,
			props:   make(map[string]dbus.Variant),
			methods: make(map[string]func(args ...interface{}) ([]interface{}, error)),
			Set:     make(map[string]interface{}),
		}
		c.objects[key] = obj
	}
	return obj
}

// Subscribe implements bus.Conn.
func (c *Conn) Subscribe(_ context.Context, matches ...bus.Match) (<-chan *dbus.Signal, error) {
	c.mu.Lock()
	c.matches = append(c.matches, matches...)
	c.mu.Unlock()
	return c.signals, nil
}

// Matches returns every match registered so far.
func (c *Conn) Matches() []bus.Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bus.Match(nil), c.matches...)
}

// EmitPropertiesChanged delivers a PropertiesChanged signal for iface on path.
func (c *Conn) EmitPropertiesChanged(path dbus.ObjectPath, iface string, changed map[string]interface{}, invalidated ...string) {
	body := make(map[string]dbus.Variant, len(changed))
	for k, v := range changed {
		body[k] = dbus.MakeVariant(v)
	}
	c.signals <- &dbus.Signal{
		Path: path,
		Name: bus.PropertiesChangedSignal,
		Body: []interface{}{iface, body, invalidated},
	}
}

// Disconnect closes the signal channel as a lost connection would.
func (c *Conn) Disconnect() {
	close(c.signals)
}

// Object is an in-memory bus.Object.
type Object struct {
	path    dbus.ObjectPath
	mu      sync.Mutex
	props   map[string]dbus.Variant
	errs    map[string]error
	methods map[string]func(args ...interface{}) ([]interface{}, error)

	// Set records every SetProperty call by property name.
	Set map[string]interface{}
}

// SetProp sets a fully qualified property ("iface.Name").
func (o *Object) SetProp(name string, v interface{}) *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.props[name] = dbus.MakeVariant(v)
	return o
}

// FailProp makes GetProperty for name fail with err.
func (o *Object) FailProp(name string, err error) *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.errs == nil {
		o.errs = make(map[string]error)
	}
	o.errs[name] = err
	return o
}

// Handle installs a method implementation.
func (o *Object) Handle(method string, fn func(args ...interface{}) ([]interface{}, error)) *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.methods[method] = fn
	return o
}

// Returns installs a method that always replies with body.
func (o *Object) Returns(method string, body ...interface{}) *Object {
	return o.Handle(method, func(...interface{}) ([]interface{}, error) {
		return body, nil
	})
}

// CallWithContext implements bus.Object.
func (o *Object) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	o.mu.Lock()
	fn, ok := o.methods[method]
	o.mu.Unlock()

	call := &dbus.Call{Path: o.path, Method: method, Args: args}
	if !ok {
		call.Err = fmt.Errorf("no such method %s", method)
		return call
	}
	call.Body, call.Err = fn(args...)
	return call
}

// GetProperty implements bus.Object.
func (o *Object) GetProperty(p string) (dbus.Variant, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err, ok := o.errs[p]; ok {
		return dbus.Variant{}, err
	}
	v, ok := o.props[p]
	if !ok {
		return dbus.Variant{}, fmt.Errorf("no such property %s", p)
	}
	return v, nil
}

// SetProperty implements bus.Object.
func (o *Object) SetProperty(p string, v interface{}) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if variant, ok := v.(dbus.Variant); ok {
		v = variant.Value()
	}
	o.Set[p] = v
	o.props[p] = dbus.MakeVariant(v)
	return nil
}

var (
	_ bus.Conn   = (*Conn)(nil)
	_ bus.Object = (*Object)(nil)
)
