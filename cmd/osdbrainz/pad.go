package main

import (
	"osdbrainz/internal/ctrl"
)

// padTranslator turns raw evdev events into pad Events.
//
// Stick values are absolute and pass straight through. Hat axes are
// edge-translated against the last hat value, so a direction's D-pad line
// only changes when the hat itself enters or leaves that direction and
// BTN_DPAD_* keys keep their state across unrelated hat events.
//
// Not safe for concurrent use; forwardInput is its only caller.
type padTranslator struct {
	keymap      map[uint16]ctrl.Line
	hatDPad     bool
	analogStick bool

	hatX, hatY int32
}

func newPadTranslator(keymap map[uint16]ctrl.Line, hatDPad, analogStick bool) *padTranslator {
	return &padTranslator{keymap: keymap, hatDPad: hatDPad, analogStick: analogStick}
}

// translate maps one evdev event to zero or more pad Events.
// Key repeats are ignored; the pad is level-sampled on every poll anyway.
func (t *padTranslator) translate(ev inputEvent) []Event {
	switch ev.Type {
	case EV_KEY:
		line, ok := t.keymap[ev.Code]
		if !ok {
			return nil
		}
		switch ev.Value {
		case evValuePress:
			return []Event{PadButton{Line: line, Pressed: true}}
		case evValueRelease:
			return []Event{PadButton{Line: line, Pressed: false}}
		}

	case EV_ABS:
		switch ev.Code {
		case ABS_HAT0X:
			if t.hatDPad {
				out := hatEdges(t.hatX, ev.Value, ctrl.LineDLeft, ctrl.LineDRight)
				t.hatX = ev.Value
				return out
			}
		case ABS_HAT0Y:
			if t.hatDPad {
				out := hatEdges(t.hatY, ev.Value, ctrl.LineDUp, ctrl.LineDDown)
				t.hatY = ev.Value
				return out
			}
		case ABS_X:
			if t.analogStick {
				return []Event{PadAxis{Axis: "x", Value: clampAxis(ev.Value)}}
			}
		case ABS_Y:
			if t.analogStick {
				// evdev Y grows downwards, the controller's grows upwards.
				return []Event{PadAxis{Axis: "y", Value: clampAxis(-ev.Value)}}
			}
		}
	}
	return nil
}

// hatEdges emits a PadButton for each of neg/pos whose hat-derived state
// differs between prev and cur. Releases come before presses.
func hatEdges(prev, cur int32, neg, pos ctrl.Line) []Event {
	var out []Event
	wasNeg, isNeg := prev < 0, cur < 0
	wasPos, isPos := prev > 0, cur > 0
	if wasNeg && !isNeg {
		out = append(out, PadButton{Line: neg, Pressed: false})
	}
	if wasPos && !isPos {
		out = append(out, PadButton{Line: pos, Pressed: false})
	}
	if !wasNeg && isNeg {
		out = append(out, PadButton{Line: neg, Pressed: true})
	}
	if !wasPos && isPos {
		out = append(out, PadButton{Line: pos, Pressed: true})
	}
	return out
}

func clampAxis(v int32) int8 {
	if v < axisMin {
		return axisMin
	}
	if v > axisMax {
		return axisMax
	}
	return int8(v)
}
