package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aimpointer/backend/internal/logging"
	"github.com/aimpointer/backend/internal/mock"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "simclient: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	url := flag.String("url", "wss://127.0.0.1:8765", "Server URL")
	pattern := flag.String("pattern", string(mock.PatternCircle), "Pointer path: circle, sweep or jitter")
	steps := flag.Int("steps", 0, "Positions to send (0 = until interrupted)")
	interval := flag.Duration("interval", 16*time.Millisecond, "Delay between positions")
	insecure := flag.Bool("insecure", true, "Skip TLS certificate verification")
	flag.Parse()

	logging.Init("info", "text")
	log := logging.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	phone := mock.NewPhone(*url, mock.Pattern(*pattern))
	phone.Interval = *interval
	phone.Insecure = *insecure

	welcome, err := phone.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer phone.Close()
	log.Info("connected", "screen", fmt.Sprintf("%dx%d", welcome.ScreenWidth, welcome.ScreenHeight), "mode", welcome.ControlMode)

	cal, err := phone.Calibrate(ctx, 0, 45, 0)
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}
	log.Info("calibrated", "calibration", cal)

	if err := phone.Run(ctx, *steps); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream: %w", err)
	}
	return nil
}
