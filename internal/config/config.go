package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Theme       ThemeConfig      `toml:"theme"`
	LogLevels   LogLevelConfig   `toml:"log_levels"`
	Keybindings KeybindingConfig `toml:"keybindings"`
	Display     DisplayConfig    `toml:"display"`
	Engine      EngineConfig     `toml:"engine"`
	Log         LogConfig        `toml:"log"`
}

// ThemeConfig defines color schemes
type ThemeConfig struct {
	Name          string         `toml:"name"`
	LineNumbers   string         `toml:"line_numbers"`
	StatusBar     string         `toml:"status_bar"`
	StatusBarText string         `toml:"status_bar_text"`
	SearchMatch   string         `toml:"search_match"`
	Levels        LogLevelColors `toml:"levels"`
}

// LogLevelColors defines colors for each log level
type LogLevelColors struct {
	Trace string `toml:"trace"`
	Debug string `toml:"debug"`
	Info  string `toml:"info"`
	Warn  string `toml:"warn"`
	Error string `toml:"error"`
	Fatal string `toml:"fatal"`
}

// LogLevelConfig defines log level detection patterns
type LogLevelConfig struct {
	TracePatterns []string `toml:"trace_patterns"`
	DebugPatterns []string `toml:"debug_patterns"`
	InfoPatterns  []string `toml:"info_patterns"`
	WarnPatterns  []string `toml:"warn_patterns"`
	ErrorPatterns []string `toml:"error_patterns"`
	FatalPatterns []string `toml:"fatal_patterns"`
}

// KeybindingConfig allows customizing keybindings
type KeybindingConfig struct {
	Quit        []string `toml:"quit"`
	ScrollUp    []string `toml:"scroll_up"`
	ScrollDown  []string `toml:"scroll_down"`
	PageUp      []string `toml:"page_up"`
	PageDown    []string `toml:"page_down"`
	Top         []string `toml:"top"`
	Bottom      []string `toml:"bottom"`
	Search      []string `toml:"search"`
	SearchBack  []string `toml:"search_back"`
	NextMatch   []string `toml:"next_match"`
	PrevMatch   []string `toml:"prev_match"`
	Filter      []string `toml:"filter"`
	GotoLine    []string `toml:"goto_line"`
	GotoTime    []string `toml:"goto_time"`
	Follow      []string `toml:"follow"`
	Interrupt   []string `toml:"interrupt"`
	Export      []string `toml:"export"`
	SetMark     []string `toml:"set_mark"`
	JumpMark    []string `toml:"jump_mark"`
	RevertSlice []string `toml:"revert_slice"`
}

// DisplayConfig holds display options
type DisplayConfig struct {
	ShowOffsets bool `toml:"show_offsets"` // byte offset gutter
	TabWidth    int  `toml:"tab_width"`
	Syntax      bool `toml:"syntax"` // highlight source files with chroma
}

// EngineConfig tunes file access and background tasks
type EngineConfig struct {
	ChunkSize        int  `toml:"chunk_size"`         // bytes per read
	ForeseeLines     int  `toml:"foresee_lines"`      // extra lines scanned in the direction of travel
	ForegroundLimit  int  `toml:"foreground_limit"`   // bytes a filtered page fetch scans before leaving the rest to the background
	BatchSize        int  `toml:"batch_size"`         // items per background message
	FlushIntervalMs  int  `toml:"flush_interval_ms"`  // max delay before a partial batch is sent
	InterruptCheckMs int  `toml:"interrupt_check_ms"` // debounce for interrupt polling in scan loops
	ChannelSize      int  `toml:"channel_size"`       // signal channel capacity
	PollMs           int  `toml:"poll_ms"`            // UI refresh tick
	UseMmap          bool `toml:"use_mmap"`
}

// FlushInterval returns FlushIntervalMs as a duration
func (e EngineConfig) FlushInterval() time.Duration {
	return time.Duration(e.FlushIntervalMs) * time.Millisecond
}

// InterruptCheck returns InterruptCheckMs as a duration
func (e EngineConfig) InterruptCheck() time.Duration {
	return time.Duration(e.InterruptCheckMs) * time.Millisecond
}

// PollInterval returns PollMs as a duration
func (e EngineConfig) PollInterval() time.Duration {
	return time.Duration(e.PollMs) * time.Millisecond
}

// LogConfig controls diagnostic logging; an empty file discards logs
type LogConfig struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Theme: ThemeConfig{
			Name:          "subtle",
			LineNumbers:   "240", // Dark gray
			StatusBar:     "236", // Darker gray background
			StatusBarText: "252", // Light gray text
			SearchMatch:   "226", // Yellow
			Levels: LogLevelColors{
				Trace: "240", // Dark gray
				Debug: "244", // Medium gray
				Info:  "250", // Light gray (default)
				Warn:  "214", // Orange
				Error: "167", // Soft red
				Fatal: "196", // Bright red
			},
		},
		LogLevels: LogLevelConfig{
			TracePatterns: []string{"[TRC]", "[TRACE]", "TRACE", "TRC"},
			DebugPatterns: []string{"[DBG]", "[DEBUG]", "DEBUG", "DBG"},
			InfoPatterns:  []string{"[INF]", "[INFO]", "INFO", "INF"},
			WarnPatterns:  []string{"[WRN]", "[WARN]", "[WARNING]", "WARN", "WRN", "WARNING"},
			ErrorPatterns: []string{"[ERR]", "[ERROR]", "ERROR", "ERR"},
			FatalPatterns: []string{"[FTL]", "[FATAL]", "FATAL", "FTL", "[CRIT]", "CRITICAL"},
		},
		Keybindings: KeybindingConfig{
			Quit:        []string{"q", "ctrl+c"},
			ScrollUp:    []string{"k", "up"},
			ScrollDown:  []string{"j", "down"},
			PageUp:      []string{"b", "pgup", "ctrl+u"},
			PageDown:    []string{"f", "pgdown", "ctrl+d", " "},
			Top:         []string{"g", "home"},
			Bottom:      []string{"G", "end"},
			Search:      []string{"/"},
			SearchBack:  []string{"?"},
			NextMatch:   []string{"n"},
			PrevMatch:   []string{"N"},
			Filter:      []string{"&"},
			GotoLine:    []string{":"},
			GotoTime:    []string{"t"},
			Follow:      []string{"F"},
			Interrupt:   []string{"x", "esc"},
			Export:      []string{"s"},
			SetMark:     []string{"m"},
			JumpMark:    []string{"'"},
			RevertSlice: []string{"S"},
		},
		Display: DisplayConfig{
			ShowOffsets: true,
			TabWidth:    4,
			Syntax:      true,
		},
		Engine: EngineConfig{
			ChunkSize:        8 * 1024,
			ForeseeLines:     64,
			ForegroundLimit:  1 << 20,
			BatchSize:        256,
			FlushIntervalMs:  100,
			InterruptCheckMs: 20,
			ChannelSize:      64,
			PollMs:           100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate resets out-of-range engine values to their defaults
func (c *Config) Validate() {
	def := DefaultConfig().Engine
	if c.Engine.ChunkSize <= 0 {
		c.Engine.ChunkSize = def.ChunkSize
	}
	if c.Engine.ForeseeLines < 0 {
		c.Engine.ForeseeLines = def.ForeseeLines
	}
	if c.Engine.ForegroundLimit <= 0 {
		c.Engine.ForegroundLimit = def.ForegroundLimit
	}
	if c.Engine.BatchSize <= 0 {
		c.Engine.BatchSize = def.BatchSize
	}
	if c.Engine.FlushIntervalMs < 0 {
		c.Engine.FlushIntervalMs = def.FlushIntervalMs
	}
	if c.Engine.InterruptCheckMs < 0 {
		c.Engine.InterruptCheckMs = def.InterruptCheckMs
	}
	if c.Engine.ChannelSize <= 0 {
		c.Engine.ChannelSize = def.ChannelSize
	}
	if c.Engine.PollMs <= 0 {
		c.Engine.PollMs = def.PollMs
	}
	if c.Display.TabWidth <= 0 {
		c.Display.TabWidth = DefaultConfig().Display.TabWidth
	}
}

// Load loads config from the default location, falling back to defaults
func Load() (*Config, error) {
	return LoadFile(getConfigPath())
}

// LoadFile loads config from path; a missing file yields defaults
func LoadFile(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}

	cfg.Validate()
	return cfg, nil
}

// Save saves config to the default location
func Save(cfg *Config) error {
	return SaveFile(cfg, getConfigPath())
}

// SaveFile writes cfg to configPath
func SaveFile(cfg *Config, configPath string) error {
	if configPath == "" {
		return nil
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// getConfigPath returns the config file path
func getConfigPath() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bigless", "config.toml")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "bigless", "config.toml")
}

// GetConfigPath exports the config path for user reference
func GetConfigPath() string {
	return getConfigPath()
}
