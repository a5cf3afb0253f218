package testing

import (
	"context"
	"testing"
	"time"

	"github.com/wuliuqii/mgs"
)

func TestWaitFor(t *testing.T) {
	t.Run("condition met immediately", func(t *testing.T) {
		result := WaitFor(t, 100*time.Millisecond, func() bool {
			return true
		})
		if !result {
			t.Error("expected WaitFor to return true")
		}
	})

	t.Run("condition never met", func(t *testing.T) {
		result := WaitFor(t, 30*time.Millisecond, func() bool {
			return false
		})
		if result {
			t.Error("expected WaitFor to return false on timeout")
		}
	})

	t.Run("condition met after delay", func(t *testing.T) {
		met := make(chan struct{})
		go func() {
			time.Sleep(20 * time.Millisecond)
			close(met)
		}()
		result := WaitFor(t, time.Second, func() bool {
			select {
			case <-met:
				return true
			default:
				return false
			}
		})
		if !result {
			t.Error("expected WaitFor to return true")
		}
	})
}

func TestNewTestProducer(t *testing.T) {
	p, ch := NewTestProducer[Sample](t, "sample")

	ch <- Sample{Value: 1, Label: "one"}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	RequireState(t, p, mgs.StateRunning)
	RequireCurrent(t, p.Channel(), func(s Sample) bool {
		return s.Value == 1 && s.Label == "one"
	})

	ch <- Sample{Value: 2, Label: "two"}
	if !p.Process(context.Background()) {
		t.Fatal("expected Process to publish")
	}
	RequireCurrent(t, p.Channel(), func(s Sample) bool { return s.Value == 2 })
}

func TestWaitForState(t *testing.T) {
	p, ch := NewTestProducer[Sample](t, "sample")
	ch <- Sample{Value: 1}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	close(ch)
	p.Process(context.Background())

	if !WaitForState(t, p, mgs.StateStopped, 100*time.Millisecond) {
		t.Errorf("expected stopped, got %s", p.State())
	}
}

func TestNextWithin(t *testing.T) {
	c := mgs.NewChannel(Sample{})
	sub := c.Subscribe()

	go c.Publish(Sample{Value: 7})

	if got := NextWithin(t, sub, time.Second); got.Value != 7 {
		t.Errorf("expected 7, got %d", got.Value)
	}
}
