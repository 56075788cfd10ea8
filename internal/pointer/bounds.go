package pointer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultBounds is used when the display geometry cannot be detected.
var DefaultBounds = Bounds{Width: 1920, Height: 1080}

// Bounds is the addressable extent of the target display in pixels.
// It is fixed at startup and shared read-only by every session.
type Bounds struct {
	Width  int `json:"screen_width"`
	Height int `json:"screen_height"`
}

func (b Bounds) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// Clamp maps (x, y) into [0, Width-1] x [0, Height-1]. Coordinates are
// clamped per axis before rounding.
func (b Bounds) Clamp(x, y float64) (int, int) {
	cx := clamp(x, 0, float64(b.Width-1))
	cy := clamp(y, 0, float64(b.Height-1))
	return int(math.Round(cx)), int(math.Round(cy))
}

// clamp returns max(lo, min(hi, v)). NaN collapses to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return max(lo, min(hi, v))
}

// DetectBounds returns override when it is valid, otherwise asks xdotool for
// the display geometry. Detection failures fall back to DefaultBounds and are
// reported through the returned error so the caller can log them.
func DetectBounds(ctx context.Context, override Bounds, run Runner) (Bounds, error) {
	if override.Valid() {
		return override, nil
	}
	if run == nil {
		return DefaultBounds, errors.New("detect display geometry: no runner")
	}

	out, err := run(ctx, "getdisplaygeometry")
	if err != nil {
		return DefaultBounds, fmt.Errorf("detect display geometry: %w", err)
	}

	b, err := parseGeometry(string(out))
	if err != nil {
		return DefaultBounds, fmt.Errorf("detect display geometry: %w", err)
	}
	return b, nil
}

// parseGeometry parses the "WIDTH HEIGHT" output of xdotool getdisplaygeometry.
func parseGeometry(s string) (Bounds, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Bounds{}, fmt.Errorf("unexpected geometry %q", strings.TrimSpace(s))
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return Bounds{}, fmt.Errorf("width: %w", err)
	}
	h, err := strconv.Atoi(fields[1])
	if err != nil {
		return Bounds{}, fmt.Errorf("height: %w", err)
	}
	b := Bounds{Width: w, Height: h}
	if !b.Valid() {
		return Bounds{}, fmt.Errorf("non-positive geometry %dx%d", w, h)
	}
	return b, nil
}
