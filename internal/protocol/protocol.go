// Package protocol defines the JSON frames exchanged with the phone client.
//
// Decode is the only place defaults are applied: every optional field of an
// inbound frame has a fixed fallback, so handlers never see a missing value.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aimpointer/backend/internal/calibration"
	"github.com/aimpointer/backend/internal/pointer"
)

// ErrMalformedFrame is returned when a frame is not a JSON object.
var ErrMalformedFrame = errors.New("malformed frame")

type MessageType string

const (
	MsgAbsolutePosition   MessageType = "absolute_position"
	MsgClick              MessageType = "click"
	MsgCalibrate          MessageType = "calibrate"
	MsgResetCalibration   MessageType = "reset_calibration"
	MsgCalibrationUpdated MessageType = "calibration_updated"
)

const DefaultButton = "left"

type ControlMode string

const ModeAbsolute ControlMode = "absolute"

// Message is a decoded inbound frame with defaults applied.
type Message struct {
	Type        MessageType
	X           float64
	Y           float64
	Button      string
	Orientation calibration.Sample
}

// Decode parses one text frame.
func Decode(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	// "null" unmarshals into a nil map without error.
	if fields == nil {
		return Message{}, fmt.Errorf("%w: not an object", ErrMalformedFrame)
	}

	msg := Message{
		Type:   MessageType(stringField(fields["type"])),
		X:      number(fields["x"]),
		Y:      number(fields["y"]),
		Button: stringField(fields["button"]),
	}
	if msg.Button == "" {
		msg.Button = DefaultButton
	}

	var orientation map[string]json.RawMessage
	if raw, ok := fields["orientation"]; ok && json.Unmarshal(raw, &orientation) == nil {
		msg.Orientation = calibration.Sample{
			X: number(orientation["x"]),
			Y: number(orientation["y"]),
			Z: number(orientation["z"]),
		}
	}

	return msg, nil
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// number coerces a JSON value to a float64. Numbers, numeric strings and
// booleans are accepted; everything else is 0. Literals too large for a
// float64 keep their sign as an infinity so coordinates clamp to the edge
// they point at.
func number(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}

	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0
		}
		return parseNumber(strings.TrimSpace(s))
	case 't':
		if string(raw) == "true" {
			return 1
		}
		return 0
	default:
		var n json.Number
		if json.Unmarshal(raw, &n) != nil {
			return 0
		}
		return parseNumber(n.String())
	}
}

// parseNumber returns ±Inf only for overflowing literals. Spelled-out
// "NaN" and "Inf" are 0.
func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return f
		}
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Welcome is sent once, right after a session is registered.
type Welcome struct {
	Message      string            `json:"message"`
	Status       string            `json:"status"`
	Calibration  calibration.State `json:"calibration"`
	ControlMode  ControlMode       `json:"control_mode"`
	ScreenWidth  int               `json:"screen_width"`
	ScreenHeight int               `json:"screen_height"`
}

func NewWelcome(st calibration.State, mode ControlMode, b pointer.Bounds) Welcome {
	return Welcome{
		Message:      "Connected!",
		Status:       "connected",
		Calibration:  st,
		ControlMode:  mode,
		ScreenWidth:  b.Width,
		ScreenHeight: b.Height,
	}
}

// CalibrationUpdated answers calibrate and reset_calibration.
type CalibrationUpdated struct {
	Type        MessageType       `json:"type"`
	Calibration calibration.State `json:"calibration"`
}

func NewCalibrationUpdated(st calibration.State) CalibrationUpdated {
	return CalibrationUpdated{Type: MsgCalibrationUpdated, Calibration: st}
}
