// Package config loads the cartfinder YAML configuration.
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/cartfinder/selector"
	"github.com/hazyhaar/cartfinder/sink"
)

// Acquisition modes.
const (
	ModeStatic  = "static"
	ModeBrowser = "browser"
	ModeAuto    = "auto"
)

// Config is the top-level configuration.
type Config struct {
	Listen  string                  `yaml:"listen"`
	DB      string                  `yaml:"db"`
	Mode    string                  `yaml:"mode"` // static | browser | auto
	Limit   int                     `yaml:"limit"`
	Fetch   FetchConfig             `yaml:"fetch"`
	Browser BrowserConfig           `yaml:"browser"`
	Watch   WatchConfig             `yaml:"watch"`
	Kinds   map[string]KindOverride `yaml:"kinds"`
	Sinks   []sink.Config           `yaml:"sinks"`
}

// FetchConfig controls static HTTP acquisition.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	MaxBytes  int64         `yaml:"max_bytes"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	ResourceBlocking []string      `yaml:"resource_blocking"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
	NavTimeout       time.Duration `yaml:"nav_timeout"`
	Settle           time.Duration `yaml:"settle"`
}

// WatchConfig controls re-ranking of a live page.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// KindOverride replaces parts of one selector kind's built-in settings.
// Zero fields keep the default.
type KindOverride struct {
	Threshold     *float64           `yaml:"threshold"`
	Pattern       string             `yaml:"pattern"`
	RegionPattern string             `yaml:"region_pattern"`
	RequireLayout *bool              `yaml:"require_layout"`
	Weights       map[string]float64 `yaml:"weights"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadFile reads a YAML configuration file and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes and validates them.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8086"
	}
	if c.DB == "" {
		c.DB = "data/cartfinder.db"
	}
	if c.Mode == "" {
		c.Mode = ModeAuto
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (compatible; cartfinder/1.0)"
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 10 << 20
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Browser.Settle <= 0 {
		c.Browser.Settle = time.Second
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"fonts", "media"}
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = 2 * time.Second
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
}

// Validate checks modes and compiles every kind override.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeStatic, ModeBrowser, ModeAuto:
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: unknown stealth %q", c.Browser.Stealth)
	}
	opts, err := c.SelectorOptions()
	if err != nil {
		return err
	}
	if _, err := selector.New(opts...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SelectorOptions turns the kind overrides into selector options.
func (c *Config) SelectorOptions() ([]selector.Option, error) {
	defaults := selector.DefaultSpecs()
	names := make([]string, 0, len(c.Kinds))
	for name := range c.Kinds {
		names = append(names, name)
	}
	slices.Sort(names)

	var opts []selector.Option
	for _, name := range names {
		kind, err := selector.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("config: kinds: %w", err)
		}
		spec := c.Kinds[name].apply(defaults[kind])
		opts = append(opts, selector.WithSpec(spec))
	}
	return opts, nil
}

func (o KindOverride) apply(s selector.Spec) selector.Spec {
	if o.Threshold != nil {
		s.Threshold = *o.Threshold
	}
	if o.Pattern != "" {
		s.Pattern = o.Pattern
	}
	if o.RegionPattern != "" {
		s.RegionPattern = o.RegionPattern
	}
	if o.RequireLayout != nil {
		s.RequireLayout = *o.RequireLayout
	}
	if len(o.Weights) > 0 {
		names := make([]string, 0, len(o.Weights))
		for n := range o.Weights {
			names = append(names, n)
		}
		slices.Sort(names)
		s.Weights = make([]selector.Weight, 0, len(names))
		for _, n := range names {
			s.Weights = append(s.Weights, selector.Weight{Feature: n, Weight: o.Weights[n]})
		}
	}
	return s
}
