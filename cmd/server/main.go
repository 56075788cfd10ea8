package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aimpointer/backend/internal/config"
	"github.com/aimpointer/backend/internal/logging"
	"github.com/aimpointer/backend/internal/metrics"
	"github.com/aimpointer/backend/internal/netinfo"
	"github.com/aimpointer/backend/internal/pointer"
	"github.com/aimpointer/backend/internal/session"
	"github.com/aimpointer/backend/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	backend := flag.String("pointer", "", "Override pointer backend (xdotool or log)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *backend != "" {
		cfg.Pointer.Backend = *backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Init(cfg.Log.Level, cfg.Log.Format)
	log := logging.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	actuator, runner := newActuator(cfg)

	override := pointer.Bounds{Width: cfg.Screen.Width, Height: cfg.Screen.Height}
	bounds, err := pointer.DetectBounds(ctx, override, runner)
	if err != nil {
		log.Warn("using default screen bounds", "error", err)
	}

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	registry := session.NewRegistry(cfg.Server.MaxSessions)

	server := ws.NewServer(cfg, registry, bounds, actuator, m)
	server.SetMetricsHandler(metrics.Handler(reg))

	scheme := "ws"
	if cfg.TLSEnabled() {
		scheme = "wss"
	}
	log.Info("pointer control ready",
		"url", fmt.Sprintf("%s://%s:%d", scheme, netinfo.LocalIPv4(ctx), cfg.Server.Port),
		"screen", fmt.Sprintf("%dx%d", bounds.Width, bounds.Height),
		"pointer", cfg.Pointer.Backend)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		log.Info("shutting down")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	err = server.ListenAndServe()
	cancel()
	<-stopped
	return err
}

// newActuator builds the configured actuator. A missing xdotool binary
// degrades to logging so the server still accepts sessions.
func newActuator(cfg *config.Config) (pointer.Actuator, pointer.Runner) {
	if cfg.Pointer.Backend == config.BackendLog {
		return pointer.LogActuator{Logger: logging.Logger}, nil
	}

	runner, err := pointer.NewRunner(cfg.Pointer.XdotoolPath)
	if err != nil {
		logging.Logger.Warn("cursor control unavailable, logging only", "error", err)
		return pointer.LogActuator{Logger: logging.Logger}, nil
	}
	return pointer.NewXdotoolActuator(runner), runner
}
