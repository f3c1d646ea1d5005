package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"osdbrainz/internal/ctrl"
)

// Config is the top-level YAML configuration for the osdbrainz daemon.
//
// Keep defaults and validation centralized so the rest of the code can
// assume a well-formed config.
type Config struct {
	// Controller input configuration
	Input InputConfig `yaml:"input"`

	// Command decoder configuration
	Decoder DecoderConfig `yaml:"decoder"`

	// IPC configuration (osd-ctl and scripting)
	IPC IPCConfig `yaml:"ipc"`

	// HTTP server for /ws and /metrics
	HTTP HTTPConfig `yaml:"http"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	// Devices lists evdev nodes to read. Empty means IPC-only operation.
	Devices []string `yaml:"devices,omitempty"`

	// Keymap maps controller line names (a, b, z, start, d_up, ..., c_right)
	// to evdev EV_KEY codes.
	Keymap map[string]uint16 `yaml:"keymap,omitempty"`

	// HatDPad routes ABS_HAT0X/ABS_HAT0Y to the D-pad lines. Hat events only
	// press or release a D-pad line when the hat enters or leaves that
	// direction, so keymapped BTN_DPAD_* keys can be used alongside it.
	HatDPad bool `yaml:"hat_dpad"`

	// AnalogStick routes ABS_X/ABS_Y into the snapshot axis bytes.
	AnalogStick bool `yaml:"analog_stick"`
}

type DecoderConfig struct {
	// HistoryLength is the debounce threshold; a new candidate must be
	// observed HistoryLength+1 consecutive polls.
	HistoryLength int `yaml:"history_length"`

	// PollHz is how often the controller snapshot is decoded.
	PollHz int `yaml:"poll_hz"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Port        int    `yaml:"port"`
	WSPath      string `yaml:"ws_path"`
	MetricsPath string `yaml:"metrics_path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`

	// File, when set, sends logs to a rotated file instead of stdout.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// DefaultKeymap is a layout that works for common USB N64 pad adapters.
func DefaultKeymap() map[string]uint16 {
	return map[string]uint16{
		"a":       BTN_SOUTH,
		"b":       BTN_WEST,
		"z":       BTN_TL2,
		"start":   BTN_START,
		"l":       BTN_TL,
		"r":       BTN_TR,
		"d_up":    BTN_DPAD_UP,
		"d_down":  BTN_DPAD_DOWN,
		"d_left":  BTN_DPAD_LEFT,
		"d_right": BTN_DPAD_RIGHT,
		"c_up":    BTN_NORTH,
		"c_down":  BTN_EAST,
		"c_left":  BTN_C,
		"c_right": BTN_Z,
	}
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults and current CLI defaults.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Devices:     []string{defaultInputDevice},
			Keymap:      DefaultKeymap(),
			HatDPad:     true,
			AnalogStick: true,
		},
		Decoder: DecoderConfig{
			HistoryLength: ctrl.HistoryLength,
			PollHz:        defaultPollHz,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		HTTP: HTTPConfig{
			Port:        defaultHTTPPort,
			WSPath:      "/ws",
			MetricsPath: "/metrics",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
// A keymap given in the file replaces the default keymap entirely.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	// yaml.v3 merges into existing maps; start the keymap empty so a file
	// keymap is authoritative, and restore defaults if the file has none.
	cfg.Input.Keymap = nil

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: defaults only.
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document. Decoding into a
	// Node accepts any shape, so anything but io.EOF means a second document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	if cfg.Input.Keymap == nil {
		cfg.Input.Keymap = DefaultKeymap()
	}
	return cfg, nil
}

// FlagOverrides applies overrides from flags on top of a loaded config.
//
// Flags should pass pointers; each override is only applied if the pointer is non-nil.
type FlagOverrides struct {
	InputDevice *string

	HistoryLength *int
	PollHz        *int

	IPCSocketPath *string
	HTTPPort      *int

	LogLevel *string
	LogFile  *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
// If the pointer is non-nil, the value is applied (even if it is a “zero value”).
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputDevice != nil {
		if *o.InputDevice == "" {
			cfg.Input.Devices = nil
		} else {
			cfg.Input.Devices = []string{*o.InputDevice}
		}
	}
	if o.HistoryLength != nil {
		cfg.Decoder.HistoryLength = *o.HistoryLength
	}
	if o.PollHz != nil {
		cfg.Decoder.PollHz = *o.PollHz
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFile != nil {
		cfg.Logging.File = *o.LogFile
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Input
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}
	if _, err := c.Keymap(); err != nil {
		return err
	}

	// Decoder
	if c.Decoder.HistoryLength < 0 || c.Decoder.HistoryLength > ctrl.MaxHistoryLength {
		return fmt.Errorf("decoder.history_length must be between 0 and %d", ctrl.MaxHistoryLength)
	}
	if c.Decoder.PollHz <= 0 || c.Decoder.PollHz > maxPollHz {
		return fmt.Errorf("decoder.poll_hz must be between 1 and %d", maxPollHz)
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// HTTP (port 0 disables the server)
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}
	if c.HTTP.Port != 0 {
		if c.HTTP.WSPath == "" || c.HTTP.WSPath[0] != '/' {
			return errors.New("http.ws_path must start with /")
		}
		if c.HTTP.MetricsPath == "" || c.HTTP.MetricsPath[0] != '/' {
			return errors.New("http.metrics_path must start with /")
		}
		if c.HTTP.WSPath == c.HTTP.MetricsPath {
			return errors.New("http.ws_path and http.metrics_path must differ")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB <= 0 {
		return errors.New("logging.max_size_mb must be > 0 when logging.file is set")
	}

	return nil
}

// Keymap resolves input.keymap into evdev code -> controller line.
func (c *Config) Keymap() (map[uint16]ctrl.Line, error) {
	names := make([]string, 0, len(c.Input.Keymap))
	for name := range c.Input.Keymap {
		names = append(names, name)
	}
	// Sorted so duplicate-code errors are deterministic.
	sort.Strings(names)

	km := make(map[uint16]ctrl.Line, len(names))
	for _, name := range names {
		line, err := ctrl.ParseLine(name)
		if err != nil {
			return nil, fmt.Errorf("input.keymap: %w", err)
		}
		code := c.Input.Keymap[name]
		if prev, dup := km[code]; dup {
			return nil, fmt.Errorf("input.keymap: code %d mapped to both %s and %s", code, prev, line)
		}
		km[code] = line
	}
	return km, nil
}

// PollInterval converts decoder.poll_hz into a ticker period.
func (c *Config) PollInterval() time.Duration {
	return time.Second / time.Duration(c.Decoder.PollHz)
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
