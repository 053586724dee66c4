// Package config holds the daemon configuration. Zero values mean
// "unspecified" and are replaced by ApplyDefaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"buddyd/internal/params"
	"buddyd/internal/supervisor"
)

// Duration decodes "30s"-style strings from YAML, JSON and TOML.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.Duration.String()), nil }

// SlotConfig overrides the built-in launch description of one slot. For slot
// names without a built-in spec, Tool, Binary and ReadyMarker are required.
type SlotConfig struct {
	Tool         string   `json:"tool" yaml:"tool" toml:"tool"`
	Binary       string   `json:"binary" yaml:"binary" toml:"binary"`
	ReadyMarker  string   `json:"ready_marker" yaml:"ready_marker" toml:"ready_marker"`
	Host         string   `json:"host" yaml:"host" toml:"host"`
	Port         int      `json:"port" yaml:"port" toml:"port"`
	GPULayers    *int     `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	ExtraArgs    []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`
	Extensions   []string `json:"extensions" yaml:"extensions" toml:"extensions"`
	StartTimeout Duration `json:"start_timeout" yaml:"start_timeout" toml:"start_timeout"`
	Disabled     bool     `json:"disabled" yaml:"disabled" toml:"disabled"`
}

// Config holds runtime parameters for the daemon.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	DataDir   string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	BinDir    string `json:"bin_dir" yaml:"bin_dir" toml:"bin_dir"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	// LogFormat is auto, console or json. auto picks console on a terminal.
	LogFormat   string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	StartTimeout    Duration `json:"start_timeout" yaml:"start_timeout" toml:"start_timeout"`
	StopTimeout     Duration `json:"stop_timeout" yaml:"stop_timeout" toml:"stop_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	// Binaries maps a tool name to an explicit executable path.
	Binaries      map[string]string     `json:"binaries" yaml:"binaries" toml:"binaries"`
	Slots         map[string]SlotConfig `json:"slots" yaml:"slots" toml:"slots"`
	TemplateRules []params.TemplateRule `json:"template_rules" yaml:"template_rules" toml:"template_rules"`
	ContextRules  []params.ContextRule  `json:"context_rules" yaml:"context_rules" toml:"context_rules"`
}

const (
	DefaultAddr            = "127.0.0.1:18080"
	DefaultStopTimeout     = 5 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
)

// DefaultDataDir is ~/.buddyd, falling back to the working directory.
func DefaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".buddyd")
	}
	return ".buddyd"
}

// Defaults returns a fully populated configuration.
func Defaults() Config {
	c := Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unspecified fields.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = DefaultAddr
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir()
	}
	if strings.TrimSpace(c.BinDir) == "" {
		c.BinDir = filepath.Join(c.DataDir, "bin")
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if strings.TrimSpace(c.LogFormat) == "" {
		c.LogFormat = "auto"
	}
	if c.StopTimeout.Duration <= 0 {
		c.StopTimeout.Duration = DefaultStopTimeout
	}
	if c.ShutdownTimeout.Duration <= 0 {
		c.ShutdownTimeout.Duration = DefaultShutdownTimeout
	}
}

// Validate reports configuration errors that would prevent the daemon from running.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("log_format: unsupported value %q", c.LogFormat)
	}
	if c.StartTimeout.Duration < 0 {
		return fmt.Errorf("start_timeout must not be negative")
	}
	for name, sc := range c.Slots {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("slots: empty slot name")
		}
		if sc.Port < 0 || sc.Port > 65535 {
			return fmt.Errorf("slots.%s.port: out of range", name)
		}
		if _, builtin := supervisor.SpecFor(name); builtin || sc.Disabled {
			continue
		}
		if sc.Tool == "" || sc.Binary == "" || sc.ReadyMarker == "" {
			return fmt.Errorf("slots.%s: tool, binary and ready_marker are required for a custom slot", name)
		}
	}
	for i, r := range c.ContextRules {
		if r.ContextLength <= 0 {
			return fmt.Errorf("context_rules[%d]: context_length must be positive", i)
		}
	}
	return nil
}

// SlotSpecs merges the built-in slot specs with configured overrides. Built-in
// slots keep their order; custom slots follow in name order.
func (c Config) SlotSpecs() []supervisor.SlotSpec {
	var out []supervisor.SlotSpec
	seen := map[string]bool{}
	for _, spec := range supervisor.DefaultSpecs() {
		seen[spec.Name] = true
		sc, ok := c.Slots[spec.Name]
		if ok && sc.Disabled {
			continue
		}
		out = append(out, c.applySlot(spec, sc))
	}
	var custom []string
	for name := range c.Slots {
		if !seen[name] {
			custom = append(custom, name)
		}
	}
	sort.Strings(custom)
	for _, name := range custom {
		sc := c.Slots[name]
		if sc.Disabled {
			continue
		}
		out = append(out, c.applySlot(supervisor.SlotSpec{Name: name, Host: "127.0.0.1"}, sc))
	}
	return out
}

func (c Config) applySlot(spec supervisor.SlotSpec, sc SlotConfig) supervisor.SlotSpec {
	if sc.Tool != "" {
		spec.Tool = sc.Tool
	}
	if sc.Binary != "" {
		spec.Binary = sc.Binary
	}
	if sc.ReadyMarker != "" {
		spec.ReadyMarker = sc.ReadyMarker
	}
	if sc.Host != "" {
		spec.Host = sc.Host
	}
	if sc.Port > 0 {
		spec.Port = sc.Port
	}
	if sc.GPULayers != nil {
		spec.DefaultGPULayers = *sc.GPULayers
	}
	if len(sc.ExtraArgs) > 0 {
		spec.ExtraArgs = append([]string(nil), sc.ExtraArgs...)
	}
	if len(sc.Extensions) > 0 {
		spec.Extensions = append([]string(nil), sc.Extensions...)
	}
	spec.StartTimeout = c.StartTimeout.Duration
	if sc.StartTimeout.Duration > 0 {
		spec.StartTimeout = sc.StartTimeout.Duration
	}
	spec.StopTimeout = c.StopTimeout.Duration
	return spec
}

// Resolver builds the parameter resolver with configured rules ahead of the defaults.
func (c Config) Resolver() *params.Resolver {
	return params.NewDefault(c.TemplateRules, c.ContextRules)
}
