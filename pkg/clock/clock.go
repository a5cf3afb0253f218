// Package clock ticks the bar's wall clock, following the system timezone
// when a timedate channel is supplied.
package clock

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/pkg/timedate"
)

// DefaultInterval is the tick period.
const DefaultInterval = time.Second

// Data is the current time in the display location.
type Data struct {
	Now time.Time
}

// Format renders the time with a Go layout.
func (d Data) Format(layout string) string {
	return d.Now.Format(layout)
}

// Watcher emits the time every interval and whenever the timezone changes.
type Watcher struct {
	clock    clockz.Clock
	interval time.Duration
	location *time.Location
	zones    *mgs.Channel[timedate.Data]
}

// New creates a Watcher in the local timezone.
func New() *Watcher {
	return &Watcher{clock: clockz.RealClock, interval: DefaultInterval, location: time.Local}
}

// Factory returns a watcher constructor for mgs.Acquire. zones may be nil.
func Factory(interval time.Duration, zones *mgs.Channel[timedate.Data]) func() mgs.Watcher[Data] {
	return func() mgs.Watcher[Data] { return New().Interval(interval).Timezone(zones) }
}

// Interval sets the tick period. Non-positive values keep the default.
func (w *Watcher) Interval(d time.Duration) *Watcher {
	if d > 0 {
		w.interval = d
	}
	return w
}

// Clock sets the time source.
func (w *Watcher) Clock(clock clockz.Clock) *Watcher {
	w.clock = clock
	return w
}

// Location fixes the display location.
func (w *Watcher) Location(loc *time.Location) *Watcher {
	if loc != nil {
		w.location = loc
	}
	return w
}

// Timezone follows the system timezone published on zones.
func (w *Watcher) Timezone(zones *mgs.Channel[timedate.Data]) *Watcher {
	w.zones = zones
	return w
}

// Watch implements mgs.Watcher. It stops only when ctx ends; losing the
// timezone source keeps the last location.
func (w *Watcher) Watch(ctx context.Context) (<-chan Data, error) {
	loc := w.location
	var zoneUpdates <-chan timedate.Data
	if w.zones != nil {
		sub := w.zones.Subscribe()
		loc = w.zones.Current().Location()
		zoneUpdates = sub.Stream(ctx)
	}

	ticker := w.clock.NewTicker(w.interval)

	out := make(chan Data)
	go func() {
		defer close(out)
		defer ticker.Stop()

		d := Data{Now: w.clock.Now().In(loc)}
		for {
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}

		wait:
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C():
					break wait
				case td, ok := <-zoneUpdates:
					if !ok {
						zoneUpdates = nil
						continue
					}
					next := td.Location()
					if next.String() == loc.String() {
						continue
					}
					loc = next
					break wait
				}
			}
			d = Data{Now: w.clock.Now().In(loc)}
		}
	}()
	return out, nil
}
