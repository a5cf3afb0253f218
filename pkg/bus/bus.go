// Package bus adapts godbus connections for the D-Bus backed sources and
// decodes loosely typed property bags into typed snapshot fields.
package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	// PropertiesInterface is the standard properties interface.
	PropertiesInterface = "org.freedesktop.DBus.Properties"

	// PropertiesChangedSignal is the fully qualified PropertiesChanged member.
	PropertiesChangedSignal = PropertiesInterface + ".PropertiesChanged"
)

// ErrDisconnected is reported by sources whose signal channel closed because
// the bus connection went away.
var ErrDisconnected = errors.New("bus connection lost")

// Object is the subset of dbus.BusObject the sources use.
type Object interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
	GetProperty(p string) (dbus.Variant, error)
	SetProperty(p string, v interface{}) error
}

// Conn is a bus connection as seen by the sources.
type Conn interface {
	// Object returns a proxy for the object at path owned by dest.
	Object(dest string, path dbus.ObjectPath) Object

	// Subscribe registers matches and returns a channel receiving every
	// signal delivered on the connection. The channel is closed when the
	// connection is lost. Matches are removed when ctx ends.
	Subscribe(ctx context.Context, matches ...Match) (<-chan *dbus.Signal, error)
}

// Match selects signals by object path, interface, member and first argument.
// Empty fields match anything.
type Match struct {
	Path      dbus.ObjectPath
	Interface string
	Member    string
	Arg0      string
}

// PropertiesMatch matches PropertiesChanged for iface on the object at path.
func PropertiesMatch(path dbus.ObjectPath, iface string) Match {
	return Match{
		Path:      path,
		Interface: PropertiesInterface,
		Member:    "PropertiesChanged",
		Arg0:      iface,
	}
}

func (m Match) options() []dbus.MatchOption {
	var opts []dbus.MatchOption
	if m.Path != "" {
		opts = append(opts, dbus.WithMatchObjectPath(m.Path))
	}
	if m.Interface != "" {
		opts = append(opts, dbus.WithMatchInterface(m.Interface))
	}
	if m.Member != "" {
		opts = append(opts, dbus.WithMatchMember(m.Member))
	}
	if m.Arg0 != "" {
		opts = append(opts, dbus.WithMatchArg(0, m.Arg0))
	}
	return opts
}

// Connection wraps a *dbus.Conn as a Conn.
type Connection struct {
	conn *dbus.Conn
}

// ConnectSystem opens a private connection to the system bus. Closing it
// ends every producer subscribed through it.
func ConnectSystem() (*Connection, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return &Connection{conn: conn}, nil
}

// Wrap adapts an existing connection.
func Wrap(conn *dbus.Conn) *Connection {
	return &Connection{conn: conn}
}

// Object implements Conn.
func (c *Connection) Object(dest string, path dbus.ObjectPath) Object {
	return c.conn.Object(dest, path)
}

// Subscribe implements Conn.
func (c *Connection) Subscribe(ctx context.Context, matches ...Match) (<-chan *dbus.Signal, error) {
	for i, m := range matches {
		if err := c.conn.AddMatchSignal(m.options()...); err != nil {
			for _, added := range matches[:i] {
				_ = c.conn.RemoveMatchSignal(added.options()...) //nolint:errcheck // best effort unwind
			}
			return nil, fmt.Errorf("add match %s: %w", m.Path, err)
		}
	}

	ch := make(chan *dbus.Signal, 32)
	c.conn.Signal(ch)

	go func() {
		<-ctx.Done()
		c.conn.RemoveSignal(ch)
		for _, m := range matches {
			_ = c.conn.RemoveMatchSignal(m.options()...) //nolint:errcheck // connection may already be gone
		}
	}()

	return ch, nil
}

// Close closes the underlying connection.
func (c *Connection) Close() error {
	return c.conn.Close()
}

var _ Conn = (*Connection)(nil)
