package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"groundstation/pkg/config"
	"groundstation/pkg/timebase"
)

func TestLoadOrDefaultMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groundstation.toml")
	cfg, exists, err := config.LoadOrDefault(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if exists {
		t.Fatalf("expected missing file")
	}
	if cfg.Link.VID != 0x16C0 || cfg.Link.PID != 0x03E8 || cfg.Link.BufferSize != 2048 {
		t.Fatalf("unexpected link defaults: %+v", cfg.Link)
	}
	if cfg.ConfigPath() != path {
		t.Fatalf("unexpected config path %q", cfg.ConfigPath())
	}

	if _, err := config.Load(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist from Load, got %v", err)
	}
}

func TestLoadOrDefaultFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groundstation.toml")
	mustWriteFile(t, path, "[link]\npoll_interval = '250ms'\n\n[dashboard]\ntime_base = 'MIT'\n\n[log]\nlevel = 'DEBUG'\n")

	cfg, exists, err := config.LoadOrDefault(path)
	if err != nil || !exists {
		t.Fatalf("load config: %v (exists=%v)", err, exists)
	}
	if cfg.Link.PollEvery() != 250*time.Millisecond {
		t.Fatalf("unexpected poll interval: %v", cfg.Link.PollEvery())
	}
	if cfg.Link.ReadTimeoutDuration() != 10*time.Millisecond || cfg.Link.ProbeEvery() != 2*time.Second {
		t.Fatalf("expected default link timings: %+v", cfg.Link)
	}
	if cfg.Dashboard.Basis() != timebase.Mission || cfg.Dashboard.RefreshEvery() != 100*time.Millisecond {
		t.Fatalf("unexpected dashboard config: %+v", cfg.Dashboard)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Bridge.WSAddr == "" || cfg.Bridge.SendBuf != 256 {
		t.Fatalf("expected bridge defaults: %+v", cfg.Bridge)
	}
	if lc := cfg.Log.Observability(); lc.MaxSizeMB != 20 || !lc.Compress {
		t.Fatalf("unexpected logger config: %+v", lc)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad duration":  "[link]\npoll_interval = 'soon'\n",
		"negative":      "[link]\nread_timeout = '-1s'\n",
		"tiny buffer":   "[link]\nbuffer_size = 8\n",
		"bad basis":     "[dashboard]\ntime_base = 'sidereal'\n",
		"bad log level": "[log]\nlevel = 'chatty'\n",
		"bad toml":      "[link\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "groundstation.toml")
			mustWriteFile(t, path, content)
			if _, _, err := config.LoadOrDefault(path); err == nil {
				t.Fatalf("expected error for %q", content)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "groundstation.toml")
	cfg := config.Default()
	cfg.Bridge.Enabled = true
	cfg.Metrics.Addr = "127.0.0.1:9100"
	cfg.Log.Level = ""
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save config: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if !strings.Contains(string(raw), "[bridge]") || !strings.Contains(string(raw), "info") {
		t.Fatalf("unexpected saved config:\n%s", raw)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if !loaded.Bridge.Enabled || loaded.Metrics.Addr != "127.0.0.1:9100" || loaded.Log.Level != "info" {
		t.Fatalf("unexpected reloaded config: %+v", loaded)
	}
}

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}
