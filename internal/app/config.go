// Package app owns the application's persisted configuration: window,
// video, audio, input, emulation, debug, and filesystem-path settings.
package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// nesWidth and nesHeight are the native NES frame dimensions.
const (
	nesWidth  = 256
	nesHeight = 240
)

// Config is the root of the on-disk configuration tree, persisted as
// JSON via LoadFromFile/SaveToFile.
type Config struct {
	Window    WindowConfig    `json:"window"`
	Video     VideoConfig     `json:"video"`
	Audio     AudioConfig     `json:"audio"`
	Input     InputConfig     `json:"input"`
	Emulation EmulationConfig `json:"emulation"`
	Debug     DebugConfig     `json:"debug"`
	Paths     PathsConfig     `json:"paths"`

	configPath string
	loaded     bool
}

// WindowConfig controls the host window.
type WindowConfig struct {
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	Fullscreen bool `json:"fullscreen"`
	Resizable  bool `json:"resizable"`
	Scale      int  `json:"scale"` // integer multiplier of the NES frame
}

// VideoConfig controls frame presentation and the post-processing
// applied before a frame reaches the backend.
type VideoConfig struct {
	VSync      bool    `json:"vsync"`
	Filter     string  `json:"filter"`  // "nearest", "linear"
	Backend    string  `json:"backend"` // "ebitengine", "headless", "terminal"
	Brightness float32 `json:"brightness"`
	Contrast   float32 `json:"contrast"`
	Saturation float32 `json:"saturation"`
}

// AudioConfig controls the audio player draining the APU.
type AudioConfig struct {
	Enabled    bool    `json:"enabled"`
	SampleRate int     `json:"sample_rate"`
	Volume     float32 `json:"volume"`
	Channels   int     `json:"channels"`
}

// InputConfig records key names for both controller ports. It is
// persisted only: the ebiten backend's key bindings are a fixed table and
// do not read it.
type InputConfig struct {
	Player1Keys KeyMapping `json:"player1_keys"`
	Player2Keys KeyMapping `json:"player2_keys"`
}

// KeyMapping is one port's key-per-button assignment.
type KeyMapping struct {
	Up     string `json:"up"`
	Down   string `json:"down"`
	Left   string `json:"left"`
	Right  string `json:"right"`
	A      string `json:"a"`
	B      string `json:"b"`
	Start  string `json:"start"`
	Select string `json:"select"`
}

// EmulationConfig records timing and save-state settings. They are
// persisted only (validate fills in FrameRate and SaveStateSlots): the
// emulator runs fixed NTSC timing at 60fps and the state manager always
// has ten slots.
type EmulationConfig struct {
	Region         string  `json:"region"`     // "NTSC" is the only tested value
	FrameRate      float64 `json:"frame_rate"` // target frames per second
	SaveStateSlots int     `json:"save_state_slots"`
}

// DebugConfig toggles the instrumentation hooks built into the CPU,
// PPU, and bus, plus the FPS overlay.
type DebugConfig struct {
	ShowFPS         bool `json:"show_fps"`
	ShowDebugInfo   bool `json:"show_debug_info"`
	EnableLogging   bool `json:"enable_logging"`
	CPUTracing      bool `json:"cpu_tracing"`
	PPUDebugging    bool `json:"ppu_debugging"`
	MemoryDebugging bool `json:"memory_debugging"`
}

// PathsConfig names the directories the application reads and writes.
type PathsConfig struct {
	ROMs       string `json:"roms"`
	SaveStates string `json:"save_states"`
	Logs       string `json:"logs"`
}

// NewConfig returns the default configuration: a 2x window, NTSC
// timing, ebiten video, audio on.
func NewConfig() *Config {
	return &Config{
		Window: WindowConfig{Width: 800, Height: 600, Resizable: true, Scale: 2},
		Video: VideoConfig{
			VSync:      true,
			Filter:     "nearest",
			Backend:    "ebitengine",
			Brightness: 1.0,
			Contrast:   1.0,
			Saturation: 1.0,
		},
		Audio: AudioConfig{Enabled: true, SampleRate: 44100, Volume: 0.8, Channels: 2},
		Input: InputConfig{
			Player1Keys: KeyMapping{
				Up: "W", Down: "S", Left: "A", Right: "D",
				A: "J", B: "K", Start: "Return", Select: "Space",
			},
			Player2Keys: KeyMapping{
				Up: "1", Down: "2", Left: "3", Right: "4",
				A: "5", B: "6", Start: "7", Select: "8",
			},
		},
		Emulation: EmulationConfig{Region: "NTSC", FrameRate: 60.0, SaveStateSlots: 10},
		Paths:     PathsConfig{ROMs: "./roms", SaveStates: "./states", Logs: "./logs"},
	}
}

// LoadFromFile reads path into c, validating the result and creating
// the configured directories. A missing file is not an error: the
// defaults are written there instead.
func (c *Config) LoadFromFile(path string) error {
	c.configPath = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c.SaveToFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := c.validate(); err != nil {
		return err
	}
	for _, dir := range []string{c.Paths.ROMs, c.Paths.SaveStates, c.Paths.Logs} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	c.loaded = true
	return nil
}

// SaveToFile writes c to path as indented JSON, creating the parent
// directory as needed.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	c.configPath = path
	return nil
}

// validate repairs out-of-range values from hand-edited files by
// resetting them to defaults (a non-positive Scale falls back to 1
// rather than the default 2). Only a degenerate window size is fatal;
// everything else has a sane fallback.
func (c *Config) validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("invalid window dimensions %dx%d", c.Window.Width, c.Window.Height)
	}

	def := NewConfig()
	if c.Window.Scale <= 0 {
		c.Window.Scale = 1
	}
	if c.Video.Brightness < 0.1 || c.Video.Brightness > 3.0 {
		c.Video.Brightness = def.Video.Brightness
	}
	if c.Video.Contrast < 0.1 || c.Video.Contrast > 3.0 {
		c.Video.Contrast = def.Video.Contrast
	}
	if c.Video.Saturation < 0 || c.Video.Saturation > 3.0 {
		c.Video.Saturation = def.Video.Saturation
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1.0 {
		c.Audio.Volume = def.Audio.Volume
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		c.Audio.Channels = def.Audio.Channels
	}
	if c.Emulation.FrameRate <= 0 {
		c.Emulation.FrameRate = def.Emulation.FrameRate
	}
	if c.Emulation.SaveStateSlots <= 0 {
		c.Emulation.SaveStateSlots = def.Emulation.SaveStateSlots
	}
	return nil
}

// GetWindowResolution returns the NES frame size scaled by Window.Scale.
func (c *Config) GetWindowResolution() (int, int) {
	return nesWidth * c.Window.Scale, nesHeight * c.Window.Scale
}

// UpdateDebug overwrites the FPS overlay, debug overlay, and logging
// enable flags together, as the -debug command-line flag does.
func (c *Config) UpdateDebug(showFPS, showDebugInfo, enableLogging bool) {
	c.Debug.ShowFPS = showFPS
	c.Debug.ShowDebugInfo = showDebugInfo
	c.Debug.EnableLogging = enableLogging
}

// IsLoaded reports whether this Config came from a file rather than
// NewConfig's defaults.
func (c *Config) IsLoaded() bool {
	return c.loaded
}

// GetConfigPath returns the path c was last loaded from or saved to.
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// Clone deep-copies c by round-tripping through JSON.
func (c *Config) Clone() *Config {
	data, err := json.Marshal(c)
	if err != nil {
		return NewConfig()
	}
	clone := &Config{}
	if err := json.Unmarshal(data, clone); err != nil {
		return NewConfig()
	}
	clone.configPath = c.configPath
	clone.loaded = c.loaded
	return clone
}

// GetDefaultConfigPath is the config file used when none is given on
// the command line.
func GetDefaultConfigPath() string {
	return "./config/gones.json"
}
