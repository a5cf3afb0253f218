// Command mgs runs the status-bar engine headless. It writes the bar as a
// JSON stream on stdout and reads click events from stdin.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wuliuqii/mgs"
	"github.com/wuliuqii/mgs/bar"
	"github.com/wuliuqii/mgs/config"
	"github.com/wuliuqii/mgs/logging"
)

var Version = "dev"

type options struct {
	configPath string
	logLevel   string
	noInput    bool
}

func main() {
	var (
		opts        options
		showVersion bool
	)

	flag.StringVar(&opts.configPath, "config", "", "Config file path (default: first found on the XDG search path)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, verbose, info, warn, error (overrides config)")
	flag.BoolVar(&opts.noInput, "no-input", false, "Do not read click events from stdin")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.Parse()

	if showVersion {
		fmt.Printf("mgs %s\n", Version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatalf("mgs: %v", err)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, path, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, opts.logLevel)
	if err != nil {
		return err
	}
	detach := logger.Observe()
	defer detach()

	if path != "" {
		logger.Infof("mgs %s using %s", Version, path)
	} else {
		logger.Infof("mgs %s using built-in configuration", Version)
	}

	registry := mgs.NewRegistry()
	defer registry.Close()

	if path != "" {
		lease, err := mgs.Acquire(ctx, registry, "config", config.Factory(path), nil)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer lease.Release()
		go followConfig(ctx, lease.Channel(), logger, opts.logLevel != "")
	}

	b := bar.New(os.Stdout, panelFrom(cfg.Panel))
	defer b.Close()

	src := newSources(ctx, registry, cfg, logger)
	defer src.close()

	for _, section := range []struct {
		align bar.Align
		names []string
	}{
		{bar.AlignLeft, cfg.Layout.Left},
		{bar.AlignCenter, cfg.Layout.Center},
		{bar.AlignRight, cfg.Layout.Right},
	} {
		for _, name := range section.names {
			w, err := src.widget(name, b)
			if err != nil {
				logger.Errorf("%s: disabled: %v", name, err)
				continue
			}
			b.Add(section.align, w)
		}
	}

	if opts.noInput {
		return b.Run(ctx, nil)
	}
	return b.Run(ctx, os.Stdin)
}

func loadConfig(path string) (config.Config, string, error) {
	if path == "" {
		return config.Load()
	}
	cfg, err := config.LoadFile(path)
	return cfg, path, err
}

func newLogger(cfg config.Log, override string) (*logging.Logger, error) {
	name := cfg.Level
	if override != "" {
		name = override
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return nil, err
	}

	colored := logging.ColorEnabled(os.Stderr)
	if cfg.Color != nil {
		colored = *cfg.Color
	}
	return logging.New(os.Stderr, level, colored), nil
}

func panelFrom(p config.Panel) bar.Panel {
	return bar.Panel{
		Height:        p.Height,
		Anchors:       append([]string(nil), p.Anchors...),
		ExclusiveZone: p.Zone(),
		Namespace:     p.Namespace,
	}
}

// followConfig applies the parts of a reloaded configuration that can
// change at runtime. Layout and sources are fixed until restart.
func followConfig(ctx context.Context, ch *mgs.Channel[config.Config], logger *logging.Logger, levelPinned bool) {
	for cfg := range ch.Subscribe().Stream(ctx) {
		if levelPinned {
			continue
		}
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			continue
		}
		if level != logger.Level() {
			logger.SetLevel(level)
			logger.Infof("log level set to %s", level)
		}
	}
}
