// Package mock simulates a phone client. It dials the control server and
// streams calibration samples, pointer positions and clicks the way the
// browser client does, for demos and smoke tests without a device.
package mock

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/aimpointer/backend/internal/logging"
	"github.com/gorilla/websocket"
)

// Pattern names the path the simulated pointer traces.
type Pattern string

const (
	PatternCircle Pattern = "circle"
	PatternSweep  Pattern = "sweep"
	PatternJitter Pattern = "jitter"
)

// Welcome mirrors the server's initial status frame.
type Welcome struct {
	Status       string `json:"status"`
	ControlMode  string `json:"control_mode"`
	ScreenWidth  int    `json:"screen_width"`
	ScreenHeight int    `json:"screen_height"`
}

type Phone struct {
	URL        string
	Pattern    Pattern
	Interval   time.Duration
	ClickEvery int // click after this many positions; 0 disables
	Insecure   bool

	conn    *websocket.Conn
	welcome Welcome
	rng     *rand.Rand

	// Filled by readLoop, the only reader after Connect.
	replies chan map[string]float64
	readErr error
	done    chan struct{}
}

// ErrDisconnected is returned by Calibrate when the server closed the
// connection before replying.
var ErrDisconnected = errors.New("server disconnected")

func NewPhone(url string, pattern Pattern) *Phone {
	return &Phone{
		URL:        url,
		Pattern:    pattern,
		Interval:   16 * time.Millisecond,
		ClickEvery: 120,
		rng:        rand.New(rand.NewSource(1)),
	}
}

// Connect dials the server and reads the welcome frame. Afterwards a
// background reader drains replies and answers the server's pings.
func (p *Phone) Connect(ctx context.Context) (Welcome, error) {
	dialer := *websocket.DefaultDialer
	if p.Insecure {
		// The server usually runs with a self-signed certificate.
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	conn, _, err := dialer.DialContext(ctx, p.URL, nil)
	if err != nil {
		return Welcome{}, fmt.Errorf("dial %s: %w", p.URL, err)
	}
	p.conn = conn

	if err := p.conn.ReadJSON(&p.welcome); err != nil {
		p.conn.Close()
		return Welcome{}, fmt.Errorf("read welcome: %w", err)
	}

	p.replies = make(chan map[string]float64, 1)
	p.done = make(chan struct{})
	go p.readLoop()
	return p.welcome, nil
}

func (p *Phone) readLoop() {
	defer close(p.done)
	for {
		var reply struct {
			Type        string             `json:"type"`
			Calibration map[string]float64 `json:"calibration"`
		}
		if err := p.conn.ReadJSON(&reply); err != nil {
			p.readErr = err
			return
		}
		if reply.Type != "calibration_updated" {
			continue
		}
		select {
		case p.replies <- reply.Calibration:
		default:
			logging.Logger.Debug("dropping unrequested calibration reply")
		}
	}
}

// Calibrate sends an orientation sample and returns the echoed calibration.
func (p *Phone) Calibrate(ctx context.Context, x, y, z float64) (map[string]float64, error) {
	if err := p.send(map[string]any{
		"type":        "calibrate",
		"orientation": map[string]float64{"x": x, "y": y, "z": z},
	}); err != nil {
		return nil, err
	}

	select {
	case cal := <-p.replies:
		return cal, nil
	case <-p.done:
		return nil, fmt.Errorf("%w: %v", ErrDisconnected, p.readErr)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run streams positions until ctx is done or steps positions were sent
// (steps <= 0 means no limit).
func (p *Phone) Run(ctx context.Context, steps int) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for tick := 0; steps <= 0 || tick < steps; tick++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		x, y := p.position(tick)
		if err := p.send(map[string]any{"type": "absolute_position", "x": x, "y": y}); err != nil {
			return err
		}
		if p.ClickEvery > 0 && tick > 0 && tick%p.ClickEvery == 0 {
			if err := p.send(map[string]any{"type": "click", "button": "left"}); err != nil {
				return err
			}
		}
	}
	return nil
}

// position returns the pointer target for tick. Circle and sweep overshoot
// the screen edges.
func (p *Phone) position(tick int) (float64, float64) {
	w, h := float64(p.welcome.ScreenWidth), float64(p.welcome.ScreenHeight)
	cx, cy := w/2, h/2

	switch p.Pattern {
	case PatternSweep:
		period := 240
		phase := float64(tick%period) / float64(period)
		return -0.1*w + phase*1.2*w, cy + math.Sin(phase*2*math.Pi)*h*0.3
	case PatternJitter:
		return cx + p.rng.NormFloat64()*w*0.02, cy + p.rng.NormFloat64()*h*0.02
	default:
		angle := float64(tick) * 2 * math.Pi / 180
		r := math.Min(w, h) * 0.6
		return math.Round(cx + r*math.Cos(angle)), math.Round(cy + r*math.Sin(angle))
	}
}

func (p *Phone) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *Phone) Close() error {
	if p.conn == nil {
		return nil
	}
	logging.Logger.Debug("simulated phone disconnecting", "url", p.URL)
	p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return p.conn.Close()
}
