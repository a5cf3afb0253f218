// Package sysinfo samples CPU load and memory use on a fixed interval.
package sysinfo

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/zoobzio/clockz"

	"github.com/wuliuqii/mgs"
)

// DefaultInterval is the sampling period.
const DefaultInterval = time.Second

// Data is one sample.
type Data struct {
	CPU           float64
	MemoryTotal   uint64
	MemoryUsed    uint64
	MemoryPercent float64
	Load1         float64
}

// Memory is a virtual memory reading.
type Memory struct {
	Total       uint64
	Used        uint64
	UsedPercent float64
}

// Sampler reads the host counters.
type Sampler interface {
	CPU(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (Memory, error)
	Load(ctx context.Context) (float64, error)
}

// Host samples the local machine through gopsutil.
type Host struct{}

// CPU returns the average utilization across all cores since the previous
// call. The first call measures since boot.
func (Host) CPU(ctx context.Context) (float64, error) {
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(total) == 0 {
		return 0, nil
	}
	return total[0], nil
}

// Memory implements Sampler.
func (Host) Memory(ctx context.Context) (Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Memory{}, err
	}
	return Memory{Total: vm.Total, Used: vm.Used, UsedPercent: vm.UsedPercent}, nil
}

// Load returns the one-minute load average.
func (Host) Load(ctx context.Context) (float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return avg.Load1, nil
}

// Watcher emits a sample every interval.
type Watcher struct {
	sampler  Sampler
	clock    clockz.Clock
	interval time.Duration
}

// New creates a Watcher. A nil sampler samples the local host.
func New(sampler Sampler) *Watcher {
	if sampler == nil {
		sampler = Host{}
	}
	return &Watcher{sampler: sampler, clock: clockz.RealClock, interval: DefaultInterval}
}

// Factory returns a watcher constructor for mgs.Acquire.
func Factory(interval time.Duration) func() mgs.Watcher[Data] {
	return func() mgs.Watcher[Data] { return New(nil).Interval(interval) }
}

// Interval sets the sampling period. Non-positive values keep the default.
func (w *Watcher) Interval(d time.Duration) *Watcher {
	if d > 0 {
		w.interval = d
	}
	return w
}

// Clock sets the clock driving the sampling ticker.
func (w *Watcher) Clock(clock clockz.Clock) *Watcher {
	w.clock = clock
	return w
}

// Watch implements mgs.Watcher. It stops only when ctx ends.
func (w *Watcher) Watch(ctx context.Context) (<-chan Data, error) {
	first := w.sample(ctx)
	ticker := w.clock.NewTicker(w.interval)

	out := make(chan Data)
	go func() {
		defer close(out)
		defer ticker.Stop()

		d := first
		for {
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C():
				d = w.sample(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (w *Watcher) sample(ctx context.Context) Data {
	var d Data

	usage, err := w.sampler.CPU(ctx)
	d.CPU = mgs.Fallback(ctx, "cpu", usage, err, 0)

	m, err := w.sampler.Memory(ctx)
	m = mgs.Fallback(ctx, "memory", m, err, Memory{})
	d.MemoryTotal, d.MemoryUsed, d.MemoryPercent = m.Total, m.Used, m.UsedPercent

	l, err := w.sampler.Load(ctx)
	d.Load1 = mgs.Fallback(ctx, "load", l, err, 0)

	return d
}
