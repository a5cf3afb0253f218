package audio

import (
	"context"
	"sync"

	"github.com/wuliuqii/mgs"
)

// Data is a volume snapshot of the default sink.
type Data struct {
	SinkName string
	Volume   float64
	Muted    bool
}

// Commander changes sink state. *Client implements it.
type Commander interface {
	SetVolume(ctx context.Context, sink string, v float64) error
	SetMute(ctx context.Context, sink string, muted bool) error
}

// Watcher emits the default sink's volume and a new snapshot whenever a
// sink or server event changes it.
type Watcher struct {
	client *Client

	mu  sync.Mutex
	err error
}

// New creates a Watcher.
func New(client *Client) *Watcher {
	return &Watcher{client: client}
}

// Factory returns a watcher constructor for mgs.Acquire.
func Factory(client *Client) func() mgs.Watcher[Data] {
	return func() mgs.Watcher[Data] { return New(client) }
}

// Watch implements mgs.Watcher.
func (w *Watcher) Watch(ctx context.Context) (<-chan Data, error) {
	events, errc, err := w.client.Events(ctx)
	if err != nil {
		return nil, err
	}

	data := Data{}
	w.refreshSink(ctx, &data)
	w.refreshVolume(ctx, &data)

	out := make(chan Data)
	go func() {
		defer close(out)

		if !send(ctx, out, data) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					if err := <-errc; err != nil {
						w.mu.Lock()
						w.err = err
						w.mu.Unlock()
					}
					return
				}
				prev := data
				if ev.Facility == "server" {
					w.refreshSink(ctx, &data)
				}
				w.refreshVolume(ctx, &data)
				if data == prev {
					continue
				}
				if !send(ctx, out, data) {
					return
				}
			}
		}
	}()
	return out, nil
}

// Err implements mgs.Errer.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Watcher) refreshSink(ctx context.Context, data *Data) {
	name, err := w.client.DefaultSinkName(ctx)
	data.SinkName = mgs.Fallback(ctx, "sink_name", name, err, DefaultSink)
}

func (w *Watcher) refreshVolume(ctx context.Context, data *Data) {
	s, err := w.client.Sink(ctx, data.SinkName)
	data.Volume = mgs.Fallback(ctx, "volume", s.Volume, err, 0)
	data.Muted = mgs.Fallback(ctx, "muted", s.Muted, err, false)
}

func send(ctx context.Context, out chan<- Data, d Data) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ Commander = (*Client)(nil)
