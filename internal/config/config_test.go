package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnvFiles() Options { return Options{EnvFiles: []string{}} }

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(noEnvFiles())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr != ":50051" {
		t.Fatalf("addrs = %q %q", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.FrameInterval != 16*time.Millisecond {
		t.Fatalf("FrameInterval = %v", cfg.FrameInterval)
	}
	if cfg.Viewport.Width != 960 || cfg.Viewport.Height != 720 {
		t.Fatalf("viewport = %+v", cfg.Viewport)
	}
	if cfg.Data.Retries != 3 || cfg.Data.RetryInterval != 500*time.Millisecond {
		t.Fatalf("data = %+v", cfg.Data)
	}
	if cfg.Tracing.Enabled || cfg.Tracing.SampleRatio != 1 {
		t.Fatalf("tracing = %+v", cfg.Tracing)
	}
	if got := Default(); got.HTTPAddr != cfg.HTTPAddr || got.Viewport != cfg.Viewport {
		t.Fatalf("Default() = %+v, want %+v", got, cfg)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ATLAS_HTTP_ADDR", ":9999")
	t.Setenv("ATLAS_FRAME_INTERVAL", "40ms")
	t.Setenv("ATLAS_DATA_CSV", "https://example.test/libya.csv")
	t.Setenv("ATLAS_DATA_RETRIES", "5")
	t.Setenv("ATLAS_VIEWPORT_WIDTH", "1280")
	t.Setenv("ATLAS_LOG_BACKEND", "zap")
	t.Setenv("ATLAS_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load(noEnvFiles())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.FrameInterval != 40*time.Millisecond {
		t.Fatalf("FrameInterval = %v", cfg.FrameInterval)
	}
	if cfg.Data.CSV != "https://example.test/libya.csv" || cfg.Data.Retries != 5 {
		t.Fatalf("data = %+v", cfg.Data)
	}
	if cfg.Viewport.Width != 1280 {
		t.Fatalf("Width = %v", cfg.Viewport.Width)
	}
	if cfg.Log.Logging().Backend != "zap" {
		t.Fatalf("backend = %q", cfg.Log.Backend)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atlas.yaml")
	body := `
grpc_addr: ":6000"
viewport:
  width: 800
  height: 600
tracing:
  enabled: true
  exporter: otlp
  endpoint: collector:4317
  sample_ratio: 0.25
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ATLAS_VIEWPORT_HEIGHT", "500")

	cfg, err := Load(Options{File: path, EnvFiles: []string{}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":6000" {
		t.Fatalf("GRPCAddr = %q", cfg.GRPCAddr)
	}
	if cfg.Viewport.Width != 800 || cfg.Viewport.Height != 500 {
		t.Fatalf("viewport = %+v, env should win over file", cfg.Viewport)
	}
	tc := cfg.Tracing.Observability()
	if !tc.Enabled || tc.Exporter != "otlp" || tc.Endpoint != "collector:4317" || tc.SampleRatio != 0.25 {
		t.Fatalf("tracing = %+v", tc)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml"), EnvFiles: []string{}})
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "ATLAS_METRICS_ADDR"
	if _, set := os.LookupEnv(key); set {
		t.Skipf("%s already set", key)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=:7070\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(Options{EnvFiles: []string{path, filepath.Join(t.TempDir(), "absent.env")}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MetricsAddr != ":7070" {
		t.Fatalf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"ok", func(*Config) {}, ""},
		{"no http addr", func(c *Config) { c.HTTPAddr = "" }, "HTTPAddr"},
		{"zero frame interval", func(c *Config) { c.FrameInterval = 0 }, "FrameInterval"},
		{"negative width", func(c *Config) { c.Viewport.Width = -1 }, "Width"},
		{"huge height", func(c *Config) { c.Viewport.Height = 20000 }, "Height"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "Level"},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, "Exporter"},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Exporter = "otlp" }, "Endpoint"},
		{"ratio above one", func(c *Config) { c.Tracing.SampleRatio = 2 }, "SampleRatio"},
		{"too many retries", func(c *Config) { c.Data.Retries = 50 }, "Retries"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := Validate(cfg)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("err = %v, want mention of %s", err, tc.field)
			}
		})
	}
}
