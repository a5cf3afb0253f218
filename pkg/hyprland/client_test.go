package hyprland

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeHyprland serves the two Hyprland sockets from a temporary directory.
type fakeHyprland struct {
	dir      string
	requests chan string

	mu          sync.Mutex
	subscribers []net.Conn
}

func newFakeHyprland(t *testing.T, reply func(cmd string) string) *fakeHyprland {
	t.Helper()
	dir, err := os.MkdirTemp("", "hypr")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	req, err := net.Listen("unix", filepath.Join(dir, requestSocket))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { req.Close() })

	ev, err := net.Listen("unix", filepath.Join(dir, eventSocket))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ev.Close() })

	f := &fakeHyprland{dir: dir, requests: make(chan string, 16)}
	go func() {
		for {
			conn, err := req.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 1024)
			n, _ := conn.Read(buf)
			cmd := string(buf[:n])
			f.requests <- cmd
			io.WriteString(conn, reply(cmd))
			conn.Close()
		}
	}()
	go func() {
		for {
			conn, err := ev.Accept()
			if err != nil {
				return
			}
			f.mu.Lock()
			f.subscribers = append(f.subscribers, conn)
			f.mu.Unlock()
		}
	}()
	t.Cleanup(f.hangUp)
	return f
}

// waitSubscribers blocks until n event connections are open.
func (f *fakeHyprland) waitSubscribers(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		got := len(f.subscribers)
		f.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d event subscribers", n)
}

// broadcast writes lines to every event subscriber.
func (f *fakeHyprland) broadcast(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conn := range f.subscribers {
		io.WriteString(conn, strings.Join(lines, "\n")+"\n")
	}
}

// hangUp closes every event connection, as a compositor exit would.
func (f *fakeHyprland) hangUp() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conn := range f.subscribers {
		conn.Close()
	}
	f.subscribers = nil
}

func TestClient_Workspaces(t *testing.T) {
	f := newFakeHyprland(t, func(cmd string) string {
		switch {
		case strings.Contains(cmd, "activeworkspace"):
			return `{"id":1,"name":"1","monitor":"DP-1","windows":2}`
		case strings.Contains(cmd, "workspaces"):
			return `[{"id":1,"name":"1","monitor":"DP-1","windows":2},{"id":-98,"name":"special:scratch","monitor":"DP-1","windows":1}]`
		}
		return "unknown request"
	})
	c := NewClient(f.dir)
	ctx := context.Background()

	list, err := c.Workspaces(ctx)
	if err != nil {
		t.Fatalf("Workspaces failed: %v", err)
	}
	if len(list) != 2 || list[1].ID != -98 || list[1].Name != "special:scratch" || list[0].Windows != 2 {
		t.Errorf("unexpected workspaces %+v", list)
	}

	active, err := c.ActiveWorkspace(ctx)
	if err != nil {
		t.Fatalf("ActiveWorkspace failed: %v", err)
	}
	if active.ID != 1 || active.Monitor != "DP-1" {
		t.Errorf("unexpected active workspace %+v", active)
	}
}

func TestClient_Dispatch(t *testing.T) {
	f := newFakeHyprland(t, func(cmd string) string {
		if strings.Contains(cmd, "dispatch workspace 3") {
			return "ok"
		}
		return "Invalid dispatcher"
	})
	c := NewClient(f.dir)

	if err := c.Dispatch(context.Background(), "workspace 3"); err != nil {
		t.Errorf("expected dispatch to succeed, got %v", err)
	}
	if got := <-f.requests; !strings.Contains(got, "dispatch workspace 3") {
		t.Errorf("unexpected request %q", got)
	}
	if err := c.Dispatch(context.Background(), "nope"); err == nil {
		t.Error("expected error reply to fail")
	}
}

func TestClient_DispatchCanceled(t *testing.T) {
	f := newFakeHyprland(t, func(string) string { return "ok" })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewClient(f.dir).Dispatch(ctx, "workspace 1"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSwitch_ClampsNegativeSlot(t *testing.T) {
	f := newFakeHyprland(t, func(string) string { return "ok" })

	if err := Switch(context.Background(), NewClient(f.dir), -1); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	if got := <-f.requests; !strings.Contains(got, "dispatch togglespecialworkspace") {
		t.Errorf("expected slot 0 dispatch, got %q", got)
	}
}

func TestClient_Events(t *testing.T) {
	f := newFakeHyprland(t, func(string) string { return "" })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, errc, err := NewClient(f.dir).Events(ctx)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	f.waitSubscribers(t, 2)
	f.broadcast(
		"workspace>>2",
		"openwindow>>abc,1,kitty,term",
		"renameworkspace>>2,web",
	)

	// The two subscriptions are independent, so only membership is checked.
	got := make(map[string]string)
	for len(got) < 2 {
		select {
		case ev := <-events:
			if _, dup := got[ev.Name]; dup {
				t.Fatalf("event delivered twice: %+v", ev)
			}
			got[ev.Name] = ev.Data
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for events, got %v", got)
		}
	}
	if got["workspace"] != "2" || got["renameworkspace"] != "2,web" {
		t.Errorf("unexpected events %v", got)
	}

	f.hangUp()
	for range events {
	}
	if err := <-errc; !errors.Is(err, ErrEventsClosed) {
		t.Errorf("expected ErrEventsClosed, got %v", err)
	}
}

func TestClient_EventsCanceled(t *testing.T) {
	f := newFakeHyprland(t, func(string) string { return "" })
	ctx, cancel := context.WithCancel(context.Background())

	events, errc, err := NewClient(f.dir).Events(ctx)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	f.waitSubscribers(t, 2)
	cancel()

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("events did not close on cancel")
	}
	if err := <-errc; err != nil {
		t.Errorf("cancel should not report an error, got %v", err)
	}
}

func TestClient_EventsNoSocket(t *testing.T) {
	if _, _, err := NewClient(t.TempDir()).Events(context.Background()); err == nil {
		t.Fatal("expected error without an event socket")
	}
}

func TestSocketDir(t *testing.T) {
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	if _, err := SocketDir(); !errors.Is(err, ErrNoSocket) {
		t.Errorf("expected ErrNoSocket, got %v", err)
	}

	runtime := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtime)
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "abc")

	if dir, _ := SocketDir(); dir != "/tmp/hypr/abc" {
		t.Errorf("expected legacy dir without a socket, got %s", dir)
	}

	want := filepath.Join(runtime, "hypr", "abc")
	if err := os.MkdirAll(want, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(want, eventSocket), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if dir, _ := SocketDir(); dir != want {
		t.Errorf("expected %s, got %s", want, dir)
	}
}
