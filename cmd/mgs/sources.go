package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/config"
	"github.com/wuliuqii/mgs/logging"
	"github.com/wuliuqii/mgs/pkg/audio"
	"github.com/wuliuqii/mgs/pkg/bus"
	"github.com/wuliuqii/mgs/pkg/clock"
	"github.com/wuliuqii/mgs/pkg/hyprland"
	"github.com/wuliuqii/mgs/pkg/network"
	"github.com/wuliuqii/mgs/pkg/sysinfo"
	"github.com/wuliuqii/mgs/pkg/timedate"
	"github.com/wuliuqii/mgs/pkg/upower"
	"github.com/wuliuqii/mgs/widget"
)

// sources builds widgets and the shared producers behind them. Every
// domain is acquired from the registry, so two widgets over the same
// source share one producer.
type sources struct {
	ctx      context.Context
	registry *mgs.Registry
	cfg      config.Config
	logger   *logging.Logger

	busOnce sync.Once
	bus     *bus.Connection
	busErr  error

	releases []func()
	closers  []func()
}

func newSources(ctx context.Context, registry *mgs.Registry, cfg config.Config, logger *logging.Logger) *sources {
	return &sources{ctx: ctx, registry: registry, cfg: cfg, logger: logger}
}

func (s *sources) systemBus() (*bus.Connection, error) {
	s.busOnce.Do(func() {
		s.bus, s.busErr = bus.ConnectSystem()
	})
	return s.bus, s.busErr
}

func withDebounce[T any](d time.Duration) func(*mgs.Producer[T]) {
	if d <= 0 {
		return nil
	}
	return func(p *mgs.Producer[T]) { p.Debounce(d) }
}

// acquire leases a domain and keeps the lease until close.
func acquire[T any](s *sources, domain string, factory func() mgs.Watcher[T]) (*mgs.Channel[T], error) {
	lease, err := mgs.Acquire(s.ctx, s.registry, domain, factory, withDebounce[T](s.cfg.Debounce.Duration))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", domain, err)
	}
	s.releases = append(s.releases, lease.Release)
	return lease.Channel(), nil
}

func (s *sources) widget(name string, inv widget.Invalidator) (widget.Widget, error) {
	switch name {
	case "battery":
		conn, err := s.systemBus()
		if err != nil {
			return nil, err
		}
		ch, err := acquire(s, "upower", upower.Factory(conn))
		if err != nil {
			return nil, err
		}
		w := widget.NewBattery(inv)
		widget.Attach(s.ctx, w, ch)
		return w, nil

	case "network":
		conn, err := s.systemBus()
		if err != nil {
			return nil, err
		}
		ch, err := acquire(s, "network", network.Factory(conn, s.cfg.Network.RefreshRate.Duration))
		if err != nil {
			return nil, err
		}
		w := widget.NewNetwork(inv)
		widget.Attach(s.ctx, w, ch)
		return w, nil

	case "volume":
		client, err := audio.Connect(nil)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		ch, err := acquire(s, "audio", audio.Factory(client))
		if err != nil {
			return nil, err
		}
		w := widget.NewVolume(s.ctx, inv, client)
		widget.Attach(s.ctx, w, ch)
		return w, nil

	case "workspaces":
		client, err := hyprland.ClientFromEnv()
		if err != nil {
			return nil, err
		}
		ch, err := acquire(s, "hyprland", hyprland.Factory(client))
		if err != nil {
			return nil, err
		}
		w := widget.NewWorkspaces(s.ctx, inv, client)
		widget.Attach(s.ctx, w, ch)
		return w, nil

	case "clock":
		ch, err := acquire(s, "clock", clock.Factory(s.cfg.Clock.Interval.Duration, s.timezones()))
		if err != nil {
			return nil, err
		}
		w := widget.NewClock(inv, s.cfg.Clock.Format)
		widget.Attach(s.ctx, w, ch)
		return w, nil

	case "sysinfo":
		ch, err := acquire(s, "sysinfo", sysinfo.Factory(s.cfg.SysInfo.Interval.Duration))
		if err != nil {
			return nil, err
		}
		w := widget.NewSysInfo(inv)
		widget.Attach(s.ctx, w, ch)
		return w, nil
	}
	return nil, fmt.Errorf("unknown widget %q", name)
}

// timezones returns the timedate channel the clock follows, or nil when
// following is disabled or timedated is unreachable. The clock then stays
// on the local zone.
func (s *sources) timezones() *mgs.Channel[timedate.Data] {
	if !s.cfg.Clock.Timezone {
		return nil
	}
	conn, err := s.systemBus()
	if err != nil {
		s.logger.Warnf("clock: not following timezone: %v", err)
		return nil
	}
	ch, err := acquire(s, "timedate", timedate.Factory(conn))
	if err != nil {
		s.logger.Warnf("clock: not following timezone: %v", err)
		return nil
	}
	return ch
}

// close releases every lease, then the client connections.
func (s *sources) close() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
	for _, c := range s.closers {
		c()
	}
	s.closers = nil
	if s.bus != nil {
		s.bus.Close()
	}
}
