// Package audio follows the default PulseAudio (or PipeWire-Pulse) sink
// and sets its volume. Requests use the native protocol; change
// notifications come from pactl subscribe.
package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// DefaultSink names whatever sink the server currently routes to.
const DefaultSink = "@DEFAULT_SINK@"

// Runner starts pactl subscribe. ExecRunner is the real one; tests
// substitute a fake.
type Runner interface {
	// Stream starts a long-running command and returns its stdout. Closing
	// the reader stops the command.
	Stream(ctx context.Context, args ...string) (io.ReadCloser, error)
}

// ExecRunner runs the pactl binary found on PATH.
type ExecRunner struct {
	Path string
}

func (r ExecRunner) bin() string {
	if r.Path != "" {
		return r.Path
	}
	return "pactl"
}

// Stream implements Runner.
func (r ExecRunner) Stream(ctx context.Context, args ...string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, r.bin(), args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("pactl %s: %w", strings.Join(args, " "), err)
	}
	return &process{ReadCloser: stdout, cmd: cmd}, nil
}

type process struct {
	io.ReadCloser
	cmd  *exec.Cmd
	once sync.Once
	err  error
}

func (p *process) Close() error {
	p.once.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		p.ReadCloser.Close()
		p.err = p.cmd.Wait()
	})
	return p.err
}

// ErrNoDefaultSink is returned when the server has no default sink.
var ErrNoDefaultSink = errors.New("audio: no default sink")

// Client reads and changes sinks through a Server and follows changes
// through pactl subscribe.
type Client struct {
	server Server
	runner Runner
}

// NewClient creates a Client. A nil runner uses ExecRunner.
func NewClient(server Server, runner Runner) *Client {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Client{server: server, runner: runner}
}

// Connect dials the sound server and creates a Client on it.
func Connect(runner Runner) (*Client, error) {
	server, err := DialPulse()
	if err != nil {
		return nil, err
	}
	return NewClient(server, runner), nil
}

// Close releases the server connection.
func (c *Client) Close() {
	c.server.Close()
}

// DefaultSinkName returns the name of the default sink.
func (c *Client) DefaultSinkName(ctx context.Context) (string, error) {
	return c.server.DefaultSinkName(ctx)
}

// Sink returns the volume and mute state of sink.
func (c *Client) Sink(ctx context.Context, sink string) (Sink, error) {
	return c.server.Sink(ctx, sinkArg(sink))
}

// SetVolume sets every channel of sink to v percent. v is clamped to 0..100.
func (c *Client) SetVolume(ctx context.Context, sink string, v float64) error {
	v = max(0, min(100, v))
	name := sinkArg(sink)
	s, err := c.server.Sink(ctx, name)
	if err != nil {
		return err
	}
	return c.server.SetSinkVolume(ctx, name, s.Channels, v)
}

// SetMute mutes or unmutes sink.
func (c *Client) SetMute(ctx context.Context, sink string, muted bool) error {
	return c.server.SetSinkMute(ctx, sinkArg(sink), muted)
}

// Events streams pactl subscribe until ctx ends or pactl exits. Only sink
// and server events are delivered; the latter signal a default sink change.
func (c *Client) Events(ctx context.Context) (<-chan Event, <-chan error, error) {
	stream, err := c.runner.Stream(ctx, "subscribe")
	if err != nil {
		return nil, nil, err
	}
	stop := context.AfterFunc(ctx, func() { stream.Close() })

	events := make(chan Event, 16)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(events)
		defer stop()

		scanner := bufio.NewScanner(stream)
		for scanner.Scan() {
			ev, ok := ParseEvent(scanner.Text())
			if !ok || (ev.Facility != "sink" && ev.Facility != "server") {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		stream.Close()
		if ctx.Err() != nil {
			return
		}
		if err := scanner.Err(); err != nil {
			errc <- fmt.Errorf("pactl subscribe: %w", err)
			return
		}
		errc <- ErrSubscribeClosed
	}()
	return events, errc, nil
}

// ErrSubscribeClosed reports that pactl subscribe exited.
var ErrSubscribeClosed = errors.New("pactl: subscribe exited")

func sinkArg(sink string) string {
	if sink == "" {
		return DefaultSink
	}
	return sink
}

// Event is one line of pactl subscribe, e.g. "Event 'change' on sink #56".
type Event struct {
	Type     string
	Facility string
	Index    int
}

// ParseEvent parses a pactl subscribe line.
func ParseEvent(line string) (Event, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "Event '")
	if !ok {
		return Event{}, false
	}
	typ, rest, ok := strings.Cut(rest, "' on ")
	if !ok {
		return Event{}, false
	}
	facility, index, ok := strings.Cut(rest, " #")
	if !ok {
		return Event{}, false
	}
	n, err := strconv.Atoi(index)
	if err != nil {
		return Event{}, false
	}
	return Event{Type: typ, Facility: facility, Index: n}, true
}
