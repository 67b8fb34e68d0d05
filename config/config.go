package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"go-cycle/logx"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Transport kinds
const (
	TransportLocal   = "local"
	TransportOSCSync = "oscsync"
)

// TransportConfig selects the tempo reference
type TransportConfig struct {
	Kind   string `json:"kind,omitempty"`
	Listen string `json:"listen,omitempty"` // oscsync: local address pulses arrive on
	Master string `json:"master,omitempty"` // oscsync: master address
}

// BridgeConfig tunes pattern rendering
type BridgeConfig struct {
	Slice   float64 `json:"slice,omitempty"`   // beats per tick
	Latency string  `json:"latency,omitempty"` // duration added to every dispatch
	Nudge   float64 `json:"nudge,omitempty"`   // beats the tick fires early (negative) or late
}

// DirtConfig is the OSC sampler output
type DirtConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// MIDIConfig is the MIDI output and optional transport input
type MIDIConfig struct {
	Enabled bool   `json:"enabled"`
	Port    string `json:"port,omitempty"`
	InPort  string `json:"in_port,omitempty"`
}

// LogConfig configures logging
type LogConfig struct {
	Level   string `json:"level,omitempty"`
	File    string `json:"file,omitempty"`
	Console bool   `json:"console,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Tempo       float64         `json:"tempo,omitempty"`
	BeatsPerBar float64         `json:"beats_per_bar,omitempty"`
	Grain       string          `json:"grain,omitempty"` // timing loop period
	Spin        string          `json:"spin,omitempty"`  // busy-wait window, "0s" disables
	Transport   TransportConfig `json:"transport,omitempty"`
	Bridge      BridgeConfig    `json:"bridge,omitempty"`
	Dirt        DirtConfig      `json:"dirt,omitempty"`
	MIDI        MIDIConfig      `json:"midi,omitempty"`
	Voices      string          `json:"voices,omitempty"`  // voice file path
	Palette     string          `json:"palette,omitempty"` // GIMP palette for the monitor, empty for the built-in one
	Log         LogConfig       `json:"log,omitempty"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Tempo:       120,
		BeatsPerBar: 4,
		Grain:       "5ms",
		Spin:        "1ms",
		Transport: TransportConfig{
			Kind:   TransportLocal,
			Listen: "127.0.0.1:0",
			Master: "127.0.0.1:5776",
		},
		Bridge: BridgeConfig{
			Slice:   0.125,
			Latency: "100ms",
		},
		Dirt: DirtConfig{
			Enabled: true,
			Addr:    "127.0.0.1:57120",
		},
		Voices: "voices.yaml",
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-cycle"), nil
}

// Path returns the default config file path
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path over the defaults, or returns the defaults
// if the file does not exist. An empty path means Path().
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults. The format follows the extension
// of path: YAML for .yaml and .yml, JSON otherwise. Unknown fields are
// rejected.
func Parse(path string, data []byte) (*Config, error) {
	jb, _, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("trailing data")
		}
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Tempo < 20 || c.Tempo > 999 {
		add("tempo: %v out of range [20, 999]", c.Tempo)
	}
	if c.BeatsPerBar <= 0 {
		add("beats_per_bar: must be > 0")
	}
	if _, err := ParseDurationField("grain", c.Grain); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("spin", c.Spin); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("bridge.latency", c.Bridge.Latency); err != nil {
		errs = append(errs, err)
	}
	if c.Bridge.Slice < 0 || c.Bridge.Slice > c.BeatsPerBar {
		add("bridge.slice: %v must be between 0 and beats_per_bar", c.Bridge.Slice)
	}

	switch c.Transport.Kind {
	case "", TransportLocal:
	case TransportOSCSync:
		if c.Transport.Master == "" {
			add("transport.master: required for %s", TransportOSCSync)
		}
	default:
		add("transport.kind: unknown %q", c.Transport.Kind)
	}

	if c.Dirt.Enabled && c.Dirt.Addr == "" {
		add("dirt.addr: required when dirt is enabled")
	}
	if !c.Dirt.Enabled && !c.MIDI.Enabled {
		add("no output enabled")
	}
	if c.Log.Level != "" && !logx.ValidLevel(c.Log.Level) {
		add("log.level: unknown %q", c.Log.Level)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// GrainDuration is the timing loop period
func (c *Config) GrainDuration() time.Duration {
	d, _ := ParseDurationOrDefault("grain", c.Grain, 5*time.Millisecond)
	return d
}

// SpinDuration is the busy-wait window; zero disables spinning
func (c *Config) SpinDuration() time.Duration {
	d, _ := ParseDurationField("spin", c.Spin)
	return d
}

// LatencyDuration is the output latency added to every dispatch
func (c *Config) LatencyDuration() time.Duration {
	d, _ := ParseDurationField("bridge.latency", c.Bridge.Latency)
	return d
}

// Save writes the config to path in the format its extension names
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if data, err = yaml.Marshal(v); err != nil {
			return fmt.Errorf("yaml marshal: %w", err)
		}
	}

	return os.WriteFile(path, data, 0644)
}
