package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"groundstation/pkg/observability"
	"groundstation/pkg/protocol"
	"groundstation/pkg/timebase"
)

const DefaultConfigPath = "groundstation.toml"

type StationConfig struct {
	Link       LinkConfig      `toml:"link"`
	Bridge     BridgeConfig    `toml:"bridge"`
	Metrics    MetricsConfig   `toml:"metrics"`
	Dashboard  DashboardConfig `toml:"dashboard"`
	Log        LogConfig       `toml:"log"`
	configPath string          `toml:"-"`
}

type LinkConfig struct {
	VID           uint16 `toml:"vid"`
	PID           uint16 `toml:"pid"`
	Baud          int    `toml:"baud"`
	PollInterval  string `toml:"poll_interval"`
	ReadTimeout   string `toml:"read_timeout"`
	BufferSize    int    `toml:"buffer_size"`
	ProbeInterval string `toml:"probe_interval"`
}

type BridgeConfig struct {
	Enabled     bool   `toml:"enabled"`
	WSAddr      string `toml:"ws_addr"`
	Name        string `toml:"name"`
	TopicPrefix string `toml:"topic_prefix"`
	SendBuf     int    `toml:"send_buf"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

type DashboardConfig struct {
	Refresh  string `toml:"refresh"`
	TimeBase string `toml:"time_base"`
}

type LogConfig struct {
	Level  string         `toml:"level"`
	Format string         `toml:"format"`
	File   string         `toml:"file,omitempty"`
	Rotate RotationConfig `toml:"rotation"`
}

type RotationConfig struct {
	MaxSizeMB  int  `toml:"max_size_mb"`
	MaxAgeDays int  `toml:"max_age_days"`
	MaxBackups int  `toml:"max_backups"`
	Compress   bool `toml:"compress"`
}

func Default() StationConfig {
	return StationConfig{
		Link: LinkConfig{
			VID:           protocol.VID,
			PID:           protocol.PID,
			Baud:          protocol.DefaultBaudRate,
			PollInterval:  "1s",
			ReadTimeout:   "10ms",
			BufferSize:    protocol.BufferSize,
			ProbeInterval: "2s",
		},
		Bridge: BridgeConfig{
			Enabled:     false,
			WSAddr:      "127.0.0.1:8765",
			Name:        "groundstation",
			TopicPrefix: "groundstation",
			SendBuf:     256,
		},
		Dashboard: DashboardConfig{
			Refresh:  "100ms",
			TimeBase: "ground_control",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Rotate: RotationConfig{
				MaxSizeMB:  20,
				MaxAgeDays: 14,
				MaxBackups: 5,
				Compress:   true,
			},
		},
	}
}

// Load is LoadOrDefault for a file that must exist.
func Load(path string) (StationConfig, error) {
	cfg, exists, err := LoadOrDefault(path)
	if err != nil {
		return StationConfig{}, err
	}
	if !exists {
		return StationConfig{}, os.ErrNotExist
	}
	return cfg, nil
}

// LoadOrDefault reads path. A missing file yields the defaults; exists
// reports whether the file was there.
func LoadOrDefault(path string) (StationConfig, bool, error) {
	cfg := Default()
	cfg.configPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.normalize()
			return cfg, false, nil
		}
		return StationConfig{}, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return StationConfig{}, true, fmt.Errorf("parse config: %w", err)
	}
	cfg.configPath = path
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return StationConfig{}, true, err
	}
	return cfg, true, nil
}

func (cfg *StationConfig) Save(path string) error {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	cfg.configPath = path
	return nil
}

func (cfg *StationConfig) ConfigPath() string {
	return cfg.configPath
}

func (cfg *StationConfig) Validate() error {
	durations := []struct {
		key   string
		value string
	}{
		{"link.poll_interval", cfg.Link.PollInterval},
		{"link.read_timeout", cfg.Link.ReadTimeout},
		{"link.probe_interval", cfg.Link.ProbeInterval},
		{"dashboard.refresh", cfg.Dashboard.Refresh},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must not be negative: %s", d.key, d.value)
		}
	}
	if cfg.Link.Baud <= 0 {
		return fmt.Errorf("link.baud must be positive: %d", cfg.Link.Baud)
	}
	if cfg.Link.BufferSize < 64 {
		return fmt.Errorf("link.buffer_size too small: %d", cfg.Link.BufferSize)
	}
	if _, err := timebase.ParseBasis(cfg.Dashboard.TimeBase); err != nil {
		return fmt.Errorf("dashboard.time_base: %w", err)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error: %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json: %q", cfg.Log.Format)
	}
	if cfg.Bridge.Enabled && cfg.Bridge.WSAddr == "" {
		return fmt.Errorf("bridge.ws_addr is required when the bridge is enabled")
	}
	return nil
}

func (cfg *StationConfig) normalize() {
	def := Default()

	if cfg.Link.VID == 0 {
		cfg.Link.VID = def.Link.VID
	}
	if cfg.Link.PID == 0 {
		cfg.Link.PID = def.Link.PID
	}
	if cfg.Link.Baud == 0 {
		cfg.Link.Baud = def.Link.Baud
	}
	if cfg.Link.PollInterval == "" {
		cfg.Link.PollInterval = def.Link.PollInterval
	}
	if cfg.Link.ReadTimeout == "" {
		cfg.Link.ReadTimeout = def.Link.ReadTimeout
	}
	if cfg.Link.BufferSize == 0 {
		cfg.Link.BufferSize = def.Link.BufferSize
	}
	if cfg.Link.ProbeInterval == "" {
		cfg.Link.ProbeInterval = def.Link.ProbeInterval
	}

	if cfg.Bridge.WSAddr == "" {
		cfg.Bridge.WSAddr = def.Bridge.WSAddr
	}
	if cfg.Bridge.Name == "" {
		cfg.Bridge.Name = def.Bridge.Name
	}
	if cfg.Bridge.TopicPrefix == "" {
		cfg.Bridge.TopicPrefix = def.Bridge.TopicPrefix
	}
	if cfg.Bridge.SendBuf <= 0 {
		cfg.Bridge.SendBuf = def.Bridge.SendBuf
	}

	if cfg.Dashboard.Refresh == "" {
		cfg.Dashboard.Refresh = def.Dashboard.Refresh
	}
	if cfg.Dashboard.TimeBase == "" {
		cfg.Dashboard.TimeBase = def.Dashboard.TimeBase
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.Log.Rotate.MaxSizeMB <= 0 {
		cfg.Log.Rotate.MaxSizeMB = def.Log.Rotate.MaxSizeMB
	}
	if cfg.Log.Rotate.MaxAgeDays <= 0 {
		cfg.Log.Rotate.MaxAgeDays = def.Log.Rotate.MaxAgeDays
	}
	if cfg.Log.Rotate.MaxBackups <= 0 {
		cfg.Log.Rotate.MaxBackups = def.Log.Rotate.MaxBackups
	}
}

// Durations below are validated by Load and Save; a parse failure falls
// back to the default.

func (c LinkConfig) PollEvery() time.Duration {
	return durationOr(c.PollInterval, time.Second)
}

func (c LinkConfig) ReadTimeoutDuration() time.Duration {
	return durationOr(c.ReadTimeout, 10*time.Millisecond)
}

func (c LinkConfig) ProbeEvery() time.Duration {
	return durationOr(c.ProbeInterval, 2*time.Second)
}

func (c DashboardConfig) RefreshEvery() time.Duration {
	return durationOr(c.Refresh, 100*time.Millisecond)
}

func (c DashboardConfig) Basis() timebase.Basis {
	b, err := timebase.ParseBasis(c.TimeBase)
	if err != nil {
		return timebase.GroundControl
	}
	return b
}

// Observability converts the [log] section for observability.NewLogger.
func (c LogConfig) Observability() observability.LogConfig {
	return observability.LogConfig{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.Rotate.MaxSizeMB,
		MaxAgeDays: c.Rotate.MaxAgeDays,
		MaxBackups: c.Rotate.MaxBackups,
		Compress:   c.Rotate.Compress,
	}
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
