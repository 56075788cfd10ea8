// Package pointer holds the host-side collaborators of a pointing session:
// the display bounds and the actuator that moves the OS cursor.
package pointer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

// ErrUnknownButton is returned by Click for buttons other than left, middle
// and right.
var ErrUnknownButton = errors.New("unknown mouse button")

// Actuator places the OS cursor and clicks. Implementations must be safe for
// concurrent use because every session shares one actuator.
type Actuator interface {
	MoveAbsolute(ctx context.Context, x, y int) error
	Click(ctx context.Context, button string) error
}

// Runner executes one xdotool invocation and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// NewRunner returns a Runner for the xdotool binary at path, resolving it on
// PATH when path is empty.
func NewRunner(path string) (Runner, error) {
	if path == "" {
		path = "xdotool"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("xdotool not found: %w", err)
	}
	return func(ctx context.Context, args ...string) ([]byte, error) {
		out, err := exec.CommandContext(ctx, resolved, args...).Output()
		if err != nil {
			return nil, fmt.Errorf("xdotool %s: %w", args[0], err)
		}
		return out, nil
	}, nil
}

var buttonCodes = map[string]string{
	"left":   "1",
	"middle": "2",
	"right":  "3",
}

// XdotoolActuator drives the X11 cursor through xdotool. Each call spawns
// its own process, so concurrent calls never share state.
type XdotoolActuator struct {
	run Runner
}

func NewXdotoolActuator(run Runner) *XdotoolActuator {
	return &XdotoolActuator{run: run}
}

func (a *XdotoolActuator) MoveAbsolute(ctx context.Context, x, y int) error {
	_, err := a.run(ctx, "mousemove", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

func (a *XdotoolActuator) Click(ctx context.Context, button string) error {
	code, ok := buttonCodes[button]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownButton, button)
	}
	_, err := a.run(ctx, "click", code)
	return err
}

// TimeoutActuator bounds every call of the wrapped actuator. A stalled call
// returns context.DeadlineExceeded instead of blocking its session.
type TimeoutActuator struct {
	Actuator
	Timeout time.Duration
}

// WithTimeout wraps a so each call gets at most d. A non-positive d returns
// a unchanged.
func WithTimeout(a Actuator, d time.Duration) Actuator {
	if d <= 0 {
		return a
	}
	return TimeoutActuator{Actuator: a, Timeout: d}
}

func (a TimeoutActuator) MoveAbsolute(ctx context.Context, x, y int) error {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()
	return a.Actuator.MoveAbsolute(ctx, x, y)
}

func (a TimeoutActuator) Click(ctx context.Context, button string) error {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()
	return a.Actuator.Click(ctx, button)
}

// LogActuator only logs what it would do. It is used on headless hosts and
// when xdotool is unavailable.
type LogActuator struct {
	Logger *slog.Logger
}

func (a LogActuator) MoveAbsolute(_ context.Context, x, y int) error {
	a.logger().Debug("cursor move", "x", x, "y", y)
	return nil
}

func (a LogActuator) Click(_ context.Context, button string) error {
	if _, ok := buttonCodes[button]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownButton, button)
	}
	a.logger().Debug("cursor click", "button", button)
	return nil
}

func (a LogActuator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
