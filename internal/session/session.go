// Package session owns the per-connection pointing state and turns decoded
// control messages into calibration updates and cursor actions.
//
// A Session is used by exactly one goroutine, the one reading its
// connection, so its fields are unguarded. Shared state lives in Registry.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aimpointer/backend/internal/calibration"
	"github.com/aimpointer/backend/internal/metrics"
	"github.com/aimpointer/backend/internal/pointer"
	"github.com/aimpointer/backend/internal/protocol"
)

// ErrClosed is returned by Handle after Close.
var ErrClosed = errors.New("session closed")

type Session struct {
	info     Info
	bounds   pointer.Bounds
	actuator pointer.Actuator
	metrics  *metrics.Metrics
	log      *slog.Logger

	phase       Phase
	calibration calibration.State
	mode        protocol.ControlMode
}

// New returns a Connected session with zero calibration in absolute mode.
func New(id, remoteAddr string, bounds pointer.Bounds, actuator pointer.Actuator, m *metrics.Metrics, log *slog.Logger) *Session {
	return &Session{
		info: Info{
			ID:          id,
			RemoteAddr:  remoteAddr,
			ConnectedAt: time.Now(),
		},
		bounds:   bounds,
		actuator: actuator,
		metrics:  m,
		log:      log,
		phase:    Connected,
		mode:     protocol.ModeAbsolute,
	}
}

func (s *Session) ID() string                     { return s.info.ID }
func (s *Session) Info() Info                     { return s.info }
func (s *Session) Phase() Phase                   { return s.phase }
func (s *Session) Calibration() calibration.State { return s.calibration }
func (s *Session) Mode() protocol.ControlMode     { return s.mode }

// Welcome builds the status frame sent right after the handshake.
func (s *Session) Welcome() protocol.Welcome {
	return protocol.NewWelcome(s.calibration, s.mode, s.bounds)
}

// Close moves the session to its terminal phase. Later messages are refused.
func (s *Session) Close() {
	s.phase = Closed
}

type handlerFunc func(s *Session, ctx context.Context, msg protocol.Message) any

var handlers = map[protocol.MessageType]handlerFunc{
	protocol.MsgAbsolutePosition: (*Session).handleAbsolutePosition,
	protocol.MsgClick:            (*Session).handleClick,
	protocol.MsgCalibrate:        (*Session).handleCalibrate,
	protocol.MsgResetCalibration: (*Session).handleResetCalibration,
}

// Handle applies one message and returns the reply to send, or nil when the
// message has none. Unknown types are ignored. Actuator failures are logged
// and never returned.
func (s *Session) Handle(ctx context.Context, msg protocol.Message) (any, error) {
	if s.phase.IsTerminal() {
		return nil, ErrClosed
	}

	s.metrics.Messages.WithLabelValues(metrics.MessageLabel(string(msg.Type))).Inc()

	h, ok := handlers[msg.Type]
	if !ok {
		s.log.Debug("ignoring message", "type", msg.Type)
		return nil, nil
	}
	return h(s, ctx, msg), nil
}

func (s *Session) handleAbsolutePosition(ctx context.Context, msg protocol.Message) any {
	x, y := s.bounds.Clamp(msg.X, msg.Y)
	if err := s.actuator.MoveAbsolute(ctx, x, y); err != nil {
		s.metrics.ActuatorErrors.WithLabelValues("move").Inc()
		s.log.Warn("cursor move failed", "x", x, "y", y, "error", err)
	}
	return nil
}

func (s *Session) handleClick(ctx context.Context, msg protocol.Message) any {
	if err := s.actuator.Click(ctx, msg.Button); err != nil {
		s.metrics.ActuatorErrors.WithLabelValues("click").Inc()
		s.log.Warn("cursor click failed", "button", msg.Button, "error", err)
	}
	return nil
}

func (s *Session) handleCalibrate(_ context.Context, msg protocol.Message) any {
	s.calibration = calibration.Update(s.calibration, msg.Orientation)
	s.log.Info("calibration updated",
		"x", s.calibration.X, "y", s.calibration.Y, "z", s.calibration.Z)
	return protocol.NewCalibrationUpdated(s.calibration)
}

func (s *Session) handleResetCalibration(_ context.Context, _ protocol.Message) any {
	s.calibration = calibration.Reset()
	s.log.Info("calibration reset")
	return protocol.NewCalibrationUpdated(s.calibration)
}
