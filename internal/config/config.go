package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Screen  ScreenConfig  `yaml:"screen"`
	Pointer PointerConfig `yaml:"pointer"`
	Privacy PrivacyConfig `yaml:"privacy"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	TLSCert        string        `yaml:"tls_cert"`
	TLSKey         string        `yaml:"tls_key"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxSessions    int           `yaml:"max_sessions"`
	ReadLimit      int64         `yaml:"read_limit"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongWait       time.Duration `yaml:"pong_wait"`
	WriteWait      time.Duration `yaml:"write_wait"`
	UpgradeRate    float64       `yaml:"upgrade_rate"`
	UpgradeBurst   int           `yaml:"upgrade_burst"`
	StaticDir      string        `yaml:"static_dir"`
}

// ScreenConfig overrides display detection when both sides are positive.
type ScreenConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type PointerConfig struct {
	Backend     string        `yaml:"backend"`
	XdotoolPath string        `yaml:"xdotool_path"`
	Timeout     time.Duration `yaml:"timeout"` // per cursor call; 0 disables
}

type PrivacyConfig struct {
	MaskRemoteAddrs bool `yaml:"mask_remote_addrs"`
	MaskSessionIDs  bool `yaml:"mask_session_ids"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	BackendXdotool = "xdotool"
	BackendLog     = "log"
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8765,
			Host:         "0.0.0.0",
			ReadLimit:    4096,
			PingInterval: 30 * time.Second,
			PongWait:     60 * time.Second,
			WriteWait:    5 * time.Second,
			UpgradeRate:  20,
			UpgradeBurst: 40,
		},
		Pointer: PointerConfig{
			Backend: BackendXdotool,
			Timeout: 250 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when path does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	if c.Server.MaxSessions < 0 {
		errs = append(errs, errors.New("server.max_sessions must not be negative"))
	}
	if c.Server.ReadLimit <= 0 {
		errs = append(errs, errors.New("server.read_limit must be positive"))
	}
	if c.Server.PingInterval <= 0 || c.Server.PongWait <= c.Server.PingInterval {
		errs = append(errs, errors.New("server.pong_wait must exceed a positive server.ping_interval"))
	}
	if c.Server.WriteWait <= 0 {
		errs = append(errs, errors.New("server.write_wait must be positive"))
	}
	if c.Server.UpgradeRate < 0 || c.Server.UpgradeBurst < 0 {
		errs = append(errs, errors.New("server.upgrade_rate and server.upgrade_burst must not be negative"))
	}
	if c.Screen.Width < 0 || c.Screen.Height < 0 {
		errs = append(errs, errors.New("screen dimensions must not be negative"))
	}
	if c.Pointer.Timeout < 0 {
		errs = append(errs, errors.New("pointer.timeout must not be negative"))
	}
	switch c.Pointer.Backend {
	case BackendXdotool, BackendLog:
	default:
		errs = append(errs, fmt.Errorf("pointer.backend %q unknown", c.Pointer.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// TLSEnabled reports whether the server should terminate TLS itself.
func (c *Config) TLSEnabled() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}
