package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9443
  host: "127.0.0.1"
  tls_cert: cert.pem
  tls_key: key.pem
  allowed_origins:
    - "https://192.168.0.10:8443"
  max_sessions: 4
  ping_interval: 10s
  pong_wait: 25s
screen:
  width: 2560
  height: 1440
pointer:
  backend: log
privacy:
  mask_remote_addrs: true
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9443 {
		t.Errorf("Server.Port = %d, want 9443", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if !cfg.TLSEnabled() {
		t.Error("TLSEnabled() = false, want true")
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://192.168.0.10:8443" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.MaxSessions != 4 {
		t.Errorf("Server.MaxSessions = %d, want 4", cfg.Server.MaxSessions)
	}
	if cfg.Server.PingInterval != 10*time.Second || cfg.Server.PongWait != 25*time.Second {
		t.Errorf("keepalive = %v/%v, want 10s/25s", cfg.Server.PingInterval, cfg.Server.PongWait)
	}
	if cfg.Screen.Width != 2560 || cfg.Screen.Height != 1440 {
		t.Errorf("Screen = %+v, want 2560x1440", cfg.Screen)
	}
	if cfg.Pointer.Backend != BackendLog {
		t.Errorf("Pointer.Backend = %q, want log", cfg.Pointer.Backend)
	}
	if !cfg.Privacy.MaskRemoteAddrs {
		t.Error("Privacy.MaskRemoteAddrs = false, want true")
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.Server.ReadLimit != 4096 {
		t.Errorf("Server.ReadLimit = %d, want default 4096", cfg.Server.ReadLimit)
	}
	if cfg.Server.WriteWait != 5*time.Second {
		t.Errorf("Server.WriteWait = %v, want default 5s", cfg.Server.WriteWait)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("default port = %d, want 8765", cfg.Server.Port)
	}
	if cfg.TLSEnabled() {
		t.Error("TLS should be off without cert and key")
	}
	if cfg.Pointer.Backend != BackendXdotool {
		t.Errorf("default backend = %q, want xdotool", cfg.Pointer.Backend)
	}
	if cfg.Pointer.Timeout != 250*time.Millisecond {
		t.Errorf("default pointer timeout = %v, want 250ms", cfg.Pointer.Timeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() of missing file returned nil error")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("Load() of invalid YAML returned nil error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"cert without key", func(c *Config) { c.Server.TLSCert = "cert.pem" }, "tls_cert"},
		{"negative max sessions", func(c *Config) { c.Server.MaxSessions = -1 }, "max_sessions"},
		{"zero read limit", func(c *Config) { c.Server.ReadLimit = 0 }, "read_limit"},
		{"pong before ping", func(c *Config) { c.Server.PongWait = c.Server.PingInterval }, "pong_wait"},
		{"zero write wait", func(c *Config) { c.Server.WriteWait = 0 }, "write_wait"},
		{"negative rate", func(c *Config) { c.Server.UpgradeRate = -1 }, "upgrade_rate"},
		{"negative screen", func(c *Config) { c.Screen.Width = -1 }, "screen"},
		{"negative pointer timeout", func(c *Config) { c.Pointer.Timeout = -time.Second }, "pointer.timeout"},
		{"unknown backend", func(c *Config) { c.Pointer.Backend = "uinput" }, "pointer.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() returned nil error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "pointer:\n  backend: wayland\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted unknown pointer backend")
	}
}
