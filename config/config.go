// Package config loads the bar configuration and keeps it current.
//
// Files are TOML by default; ".yaml"/".yml" and ".json" are also accepted.
// Every loaded configuration is validated with go-playground/validator
// before it is used.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance.
var validate = validator.New()

// Config is the whole bar configuration.
type Config struct {
	Panel   Panel   `toml:"panel" yaml:"panel" json:"panel"`
	Layout  Layout  `toml:"layout" yaml:"layout" json:"layout"`
	Clock   Clock   `toml:"clock" yaml:"clock" json:"clock"`
	SysInfo SysInfo `toml:"sysinfo" yaml:"sysinfo" json:"sysinfo"`
	Network Network `toml:"network" yaml:"network" json:"network"`
	Log     Log     `toml:"log" yaml:"log" json:"log"`

	// Debounce coalesces bursts of snapshots from one source.
	Debounce Duration `toml:"debounce" yaml:"debounce" json:"debounce"`
}

// Panel is the layer-shell surface the host renderer creates.
type Panel struct {
	Height        int      `toml:"height" yaml:"height" json:"height" validate:"min=1,max=512"`
	Anchors       []string `toml:"anchors" yaml:"anchors" json:"anchors" validate:"min=1,unique,dive,oneof=top bottom left right"`
	ExclusiveZone int      `toml:"exclusive_zone" yaml:"exclusive_zone" json:"exclusive_zone" validate:"min=-1"`
	Namespace     string   `toml:"namespace" yaml:"namespace" json:"namespace" validate:"required"`
}

// Zone is the exclusive zone to reserve. Zero follows the panel height.
func (p Panel) Zone() int {
	if p.ExclusiveZone == 0 {
		return p.Height
	}
	return p.ExclusiveZone
}

// Layout places widgets in the three bar sections.
type Layout struct {
	Left   []string `toml:"left" yaml:"left" json:"left" validate:"dive,oneof=workspaces clock battery network volume sysinfo"`
	Center []string `toml:"center" yaml:"center" json:"center" validate:"dive,oneof=workspaces clock battery network volume sysinfo"`
	Right  []string `toml:"right" yaml:"right" json:"right" validate:"dive,oneof=workspaces clock battery network volume sysinfo"`
}

// Clock configures the clock widget.
type Clock struct {
	Format   string   `toml:"format" yaml:"format" json:"format" validate:"required"`
	Interval Duration `toml:"interval" yaml:"interval" json:"interval"`
	// Timezone follows systemd-timedated when true.
	Timezone bool `toml:"follow_timezone" yaml:"follow_timezone" json:"follow_timezone"`
}

// SysInfo configures the CPU and memory widget.
type SysInfo struct {
	Interval Duration `toml:"interval" yaml:"interval" json:"interval"`
}

// Network configures the network widget.
type Network struct {
	// RefreshRate is how often NetworkManager refreshes byte counters.
	RefreshRate Duration `toml:"refresh_rate" yaml:"refresh_rate" json:"refresh_rate"`
}

// Log configures log output.
type Log struct {
	Level string `toml:"level" yaml:"level" json:"level" validate:"oneof=debug verbose info warn error"`
	Color *bool  `toml:"color" yaml:"color" json:"color"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Panel: Panel{
			Height:        35,
			Anchors:       []string{"top", "left", "right"},
			ExclusiveZone: 0,
			Namespace:     "simple bar",
		},
		Layout: Layout{
			Left:   []string{"workspaces"},
			Center: []string{"clock"},
			Right:  []string{"sysinfo", "network", "volume", "battery"},
		},
		Clock: Clock{
			Format:   "15:04",
			Interval: Duration{time.Second},
			Timezone: true,
		},
		SysInfo: SysInfo{Interval: Duration{time.Second}},
		Network: Network{RefreshRate: Duration{time.Second}},
		Log:     Log{Level: "info"},
	}
}

// Clone implements mgs.Cloner.
func (c Config) Clone() Config {
	c.Panel.Anchors = append([]string(nil), c.Panel.Anchors...)
	c.Layout.Left = append([]string(nil), c.Layout.Left...)
	c.Layout.Center = append([]string(nil), c.Layout.Center...)
	c.Layout.Right = append([]string(nil), c.Layout.Right...)
	if c.Log.Color != nil {
		color := *c.Log.Color
		c.Log.Color = &color
	}
	return c
}

// Widgets returns every widget named in the layout, left to right.
func (c Config) Widgets() []string {
	out := make([]string, 0, len(c.Layout.Left)+len(c.Layout.Center)+len(c.Layout.Right))
	out = append(out, c.Layout.Left...)
	out = append(out, c.Layout.Center...)
	return append(out, c.Layout.Right...)
}

// Validate checks c against its struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Decode parses data over the defaults, applies environment overrides and
// validates the result.
func Decode(data []byte, codec Codec) (Config, error) {
	cfg := Default()
	if err := codec.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", codec.ContentType(), err)
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads and decodes path, choosing the codec by extension.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Decode(data, CodecFor(path))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the first configuration file found on the search path and
// returns it with its path. Without one it returns the defaults and an
// empty path.
func Load() (Config, string, error) {
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			cfg, err := LoadFile(p)
			return cfg, p, err
		}
	}
	cfg := Default()
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, "", nil
}

// SearchPaths lists candidate files in priority order:
// $XDG_CONFIG_HOME/mgs/config.{toml,yaml,json}, then the same under
// ~/.config when XDG_CONFIG_HOME points elsewhere.
func SearchPaths() []string {
	home, _ := os.UserHomeDir()
	defaultXDG := filepath.Join(home, ".config")

	dirs := []string{defaultXDG}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && xdg != defaultXDG {
		dirs = []string{xdg, defaultXDG}
	}

	var paths []string
	for _, dir := range dirs {
		for _, name := range []string{"config.toml", "config.yaml", "config.yml", "config.json"} {
			paths = append(paths, filepath.Join(dir, "mgs", name))
		}
	}
	return paths
}

// applyEnv overrides values from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MGS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		off := false
		cfg.Log.Color = &off
	}
}

// IsValidation reports whether err came from struct validation.
func IsValidation(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}
