// Package hyprland reads workspaces from the Hyprland compositor over its
// IPC sockets and keeps them current from the event socket.
package hyprland

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	hypr "github.com/thiagokokada/hyprland-go"
	"github.com/thiagokokada/hyprland-go/event"
)

// ErrNoSocket is returned when no Hyprland instance can be located.
var ErrNoSocket = errors.New("hyprland: HYPRLAND_INSTANCE_SIGNATURE not set")

// ErrEventsClosed reports that Hyprland closed the event socket.
var ErrEventsClosed = errors.New("hyprland: event socket closed")

const (
	requestSocket = ".socket.sock"
	eventSocket   = ".socket2.sock"
)

// SocketDir returns the directory holding the sockets of the running
// Hyprland instance: $XDG_RUNTIME_DIR/hypr/<signature>, or /tmp/hypr/<signature>
// on older releases.
func SocketDir() (string, error) {
	sig := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if sig == "" {
		return "", ErrNoSocket
	}
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		dir := filepath.Join(runtime, "hypr", sig)
		if _, err := os.Stat(filepath.Join(dir, eventSocket)); err == nil {
			return dir, nil
		}
	}
	return filepath.Join("/tmp", "hypr", sig), nil
}

// Workspace is the subset of Hyprland's workspace object the bar uses.
type Workspace struct {
	ID      int
	Name    string
	Monitor string
	Windows int
}

func fromIPC(ws hypr.Workspace) Workspace {
	return Workspace{ID: ws.Id, Name: ws.Name, Monitor: ws.Monitor, Windows: ws.Windows}
}

// Client talks to one Hyprland instance. Requests and the workspace events
// go through hyprland-go.
type Client struct {
	dir    string
	req    *hypr.RequestClient
	dialer net.Dialer
}

// NewClient creates a Client for the sockets in dir.
func NewClient(dir string) *Client {
	return &Client{dir: dir, req: hypr.NewClient(filepath.Join(dir, requestSocket))}
}

// ClientFromEnv locates the running instance through the environment.
func ClientFromEnv() (*Client, error) {
	dir, err := SocketDir()
	if err != nil {
		return nil, err
	}
	return NewClient(dir), nil
}

// Workspaces lists every existing workspace.
func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	list, err := c.req.Workspaces()
	if err != nil {
		return nil, fmt.Errorf("hyprland: workspaces: %w", err)
	}
	out := make([]Workspace, 0, len(list))
	for _, ws := range list {
		out = append(out, fromIPC(ws))
	}
	return out, nil
}

// ActiveWorkspace returns the focused workspace.
func (c *Client) ActiveWorkspace(ctx context.Context) (Workspace, error) {
	if err := ctx.Err(); err != nil {
		return Workspace{}, err
	}
	ws, err := c.req.ActiveWorkspace()
	if err != nil {
		return Workspace{}, fmt.Errorf("hyprland: active workspace: %w", err)
	}
	return fromIPC(ws), nil
}

// Dispatch runs a dispatcher, e.g. "workspace 3". A reply other than "ok"
// is an error.
func (c *Client) Dispatch(ctx context.Context, args string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	replies, err := c.req.Dispatch(args)
	if err != nil {
		return fmt.Errorf("hyprland: dispatch %s: %w", args, err)
	}
	for _, r := range replies {
		if msg := strings.TrimSpace(string(r)); msg != "ok" {
			return fmt.Errorf("hyprland: dispatch %s: %s", args, msg)
		}
	}
	return nil
}

// handler forwards the workspace events hyprland-go decodes.
type handler struct {
	event.DefaultEventHandler
	emit func(Event)
}

func (h *handler) Workspace(w event.WorkspaceName) {
	h.emit(Event{Name: "workspace", Data: string(w)})
}

func (h *handler) CreateWorkspace(w event.WorkspaceName) {
	h.emit(Event{Name: "createworkspace", Data: string(w)})
}

func (h *handler) DestroyWorkspace(w event.WorkspaceName) {
	h.emit(Event{Name: "destroyworkspace", Data: string(w)})
}

func (h *handler) MoveWorkspace(m event.MoveWorkspace) {
	h.emit(Event{Name: "moveworkspace", Data: string(m.WorkspaceName) + "," + string(m.MonitorName)})
}

// Events streams workspace events until ctx ends or Hyprland closes a
// socket. The error channel receives the reason, if any, after the event
// channel closes.
//
// Two subscriptions run side by side: hyprland-go's event client for
// focus, create, destroy and move, and a raw reader for renameworkspace and
// activespecial, which hyprland-go does not hand to its handlers. Ordering
// is kept within each subscription only.
func (c *Client) Events(ctx context.Context) (<-chan Event, <-chan error, error) {
	path := filepath.Join(c.dir, eventSocket)
	lib, err := event.NewClient(path)
	if err != nil {
		return nil, nil, fmt.Errorf("hyprland: connect event socket: %w", err)
	}
	raw, err := c.dialer.DialContext(ctx, "unix", path)
	if err != nil {
		lib.Close()
		return nil, nil, fmt.Errorf("hyprland: dial event socket: %w", err)
	}

	var (
		once  sync.Once
		first error
	)
	shutdown := func(err error) {
		once.Do(func() {
			first = err
			lib.Close()
			raw.Close()
		})
	}
	stop := context.AfterFunc(ctx, func() { shutdown(nil) })

	events := make(chan Event, 64)
	emit := func(ev Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := lib.Subscribe(ctx, &handler{emit: emit},
			event.EventWorkspace,
			event.EventCreateWorkspace,
			event.EventDestroyWorkspace,
			event.EventMoveWorkspace,
		)
		shutdown(closeReason(ctx, err))
	}()
	go func() {
		defer wg.Done()
		shutdown(closeReason(ctx, readRaw(raw, emit)))
	}()

	errc := make(chan error, 1)
	go func() {
		wg.Wait()
		stop()
		close(events)
		if first != nil {
			errc <- first
		}
		close(errc)
	}()
	return events, errc, nil
}

// readRaw forwards the events only the raw stream carries.
func readRaw(conn net.Conn, emit func(Event)) error {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		ev, ok := ParseEvent(scanner.Text())
		if !ok || !rawEvent(ev.Name) {
			continue
		}
		emit(ev)
	}
	return scanner.Err()
}

// closeReason maps how a subscription ended to the error the watcher
// reports. Cancellation is not an error.
func closeReason(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	if err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("hyprland: read events: %w", err)
	}
	return ErrEventsClosed
}

var (
	_ Source     = (*Client)(nil)
	_ Dispatcher = (*Client)(nil)
)
