package main

import (
	"encoding/json"
	"fmt"
	"time"

	"osdbrainz/internal/ctrl"
)

// ============================================================================
// Events - inputs to the reducer
// ============================================================================
// Events come from the evdev translator, from IPC clients and from the
// daemon's own poll ticker. The daemon loop is the only consumer.
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// Tick is emitted by the daemon loop once per poll. Every Tick decodes the
// current pad snapshot exactly once.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// PadButton presses or releases one controller line.
type PadButton struct {
	Line    ctrl.Line `json:"line"`
	Pressed bool      `json:"pressed"`
}

func (PadButton) eventMarker() {}

// PadAxis sets one analog stick axis.
type PadAxis struct {
	Axis  string `json:"axis"` // "x" or "y"
	Value int8   `json:"value"`
}

func (PadAxis) eventMarker() {}

// SetSnapshot replaces the whole controller word, as if the hardware
// register had been sampled with this value.
type SetSnapshot struct {
	Raw ctrl.Snapshot `json:"raw"`
}

func (SetSnapshot) eventMarker() {}

// ReleaseAll releases every line and centres the stick.
type ReleaseAll struct{}

func (ReleaseAll) eventMarker() {}

// RequestStatus asks the daemon for a status snapshot. Reply must be
// buffered; the daemon never blocks on it.
type RequestStatus struct {
	Reply chan<- StatusSnapshot `json:"-"`
}

func (RequestStatus) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON envelope into a concrete payload Event.
// Ticks are internal and cannot be injected.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "pad_button":
		var e PadButton
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal PadButton: %w", err)
		}
		return e, nil

	case "pad_axis":
		var e PadAxis
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal PadAxis: %w", err)
		}
		if e.Axis != "x" && e.Axis != "y" {
			return nil, fmt.Errorf("unmarshal PadAxis: axis must be \"x\" or \"y\", got %q", e.Axis)
		}
		return e, nil

	case "set_snapshot":
		var e SetSnapshot
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SetSnapshot: %w", err)
		}
		return e, nil

	case "release_all":
		return ReleaseAll{}, nil

	case "get_status":
		return RequestStatus{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}
}

// MarshalEvent serializes a payload Event into a JSON envelope
func MarshalEvent(ev Event) ([]byte, error) {
	var env EventEnvelope

	switch e := ev.(type) {
	case PadButton:
		env.Type = "pad_button"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal PadButton: %w", err)
		}
		env.Data = data

	case PadAxis:
		env.Type = "pad_axis"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal PadAxis: %w", err)
		}
		env.Data = data

	case SetSnapshot:
		env.Type = "set_snapshot"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetSnapshot: %w", err)
		}
		env.Data = data

	case ReleaseAll:
		env.Type = "release_all"

	case RequestStatus:
		env.Type = "get_status"

	default:
		return nil, fmt.Errorf("unknown event type: %T", ev)
	}

	return json.Marshal(env)
}
