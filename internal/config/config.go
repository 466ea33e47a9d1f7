package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// UI front-ends
const (
	UITerminal = "tui"
	UITray     = "tray"
)

// Capture backends
const (
	BackendPortAudio = "portaudio"
	BackendMiniaudio = "miniaudio"
	BackendSDL       = "sdl"
)

// DefaultFPS is the visualizer target frame rate used when none is configured.
const DefaultFPS = 60

type Config struct {
	LogLevel     string           `json:"log_level" mapstructure:"log_level"`
	UI           string           `json:"ui" mapstructure:"ui"` // "tui" or "tray"
	Hotkey       string           `json:"hotkey" mapstructure:"hotkey"`
	HotkeyDarwin string           `json:"hotkey_darwin" mapstructure:"hotkey_darwin"`
	Audio        AudioConfig      `json:"audio" mapstructure:"audio"`
	Visualizer   VisualizerConfig `json:"visualizer" mapstructure:"visualizer"`
	Record       RecordConfig     `json:"record" mapstructure:"record"`

	path string
}

type AudioConfig struct {
	Backend         string `json:"backend" mapstructure:"backend"`
	DeviceIndex     int    `json:"device_index" mapstructure:"device_index"` // -1 = system default
	IncludeMonitors bool   `json:"include_monitors" mapstructure:"include_monitors"`
}

type VisualizerConfig struct {
	FPS   uint `json:"fps" mapstructure:"fps"` // 0 = uncapped
	Bands int  `json:"bands" mapstructure:"bands"`
}

type RecordConfig struct {
	Path string `json:"path" mapstructure:"path"` // empty disables the WAV tap
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("ui", UITerminal)
	v.SetDefault("hotkey", "Alt+N")
	v.SetDefault("hotkey_darwin", "Ctrl+N")
	v.SetDefault("audio.backend", BackendPortAudio)
	v.SetDefault("audio.device_index", -1)
	v.SetDefault("audio.include_monitors", true)
	v.SetDefault("visualizer.fps", DefaultFPS)
	v.SetDefault("visualizer.bands", 32)
	v.SetDefault("record.path", "")
}

// Load reads the config from path (or the platform default location when
// path is empty), applying defaults and AUDIOVIZ_* environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = configPath()
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("AUDIOVIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load existing config if it exists
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that the rest of the program relies on.
func (c *Config) Validate() error {
	switch c.UI {
	case UITerminal, UITray:
	default:
		return fmt.Errorf("unknown ui %q (want %q or %q)", c.UI, UITerminal, UITray)
	}

	switch c.Audio.Backend {
	case BackendPortAudio, BackendMiniaudio, BackendSDL:
	default:
		return fmt.Errorf("unknown audio backend %q", c.Audio.Backend)
	}

	if c.Audio.DeviceIndex < -1 {
		return fmt.Errorf("audio.device_index must be -1 or greater, got %d", c.Audio.DeviceIndex)
	}
	if c.Visualizer.Bands <= 0 {
		return fmt.Errorf("visualizer.bands must be positive, got %d", c.Visualizer.Bands)
	}
	return nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := c.Path()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Path returns the file the config was loaded from and is saved to.
func (c *Config) Path() string {
	if c.path == "" {
		return configPath()
	}
	return c.path
}

// PlatformHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.HotkeyDarwin != "" {
		return c.HotkeyDarwin
	}
	return c.Hotkey
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "audioviz", "config.json")
}
