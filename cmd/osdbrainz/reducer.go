package main

import (
	"time"

	"osdbrainz/internal/ctrl"
)

// This file implements the reducer:
//
//   - Events: inputs (pad changes, poll ticks, status requests)
//   - Broadcasts: state changes for WebSocket clients
//   - Effects: side effects the daemon loop must perform (status replies)
//   - Reduce(): computes next state + outputs, without performing I/O
//
// The command decoder runs inside Reduce on every Tick, so its debounce state
// is part of DaemonState rather than hidden in the decoder.

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is a reducer-emitted state change for external clients.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastCommand is emitted once per decoded command.
type BroadcastCommand struct {
	Command ctrl.Command
	Raw     ctrl.Snapshot
	At      time.Time
}

func (BroadcastCommand) broadcastMarker() {}

// BroadcastStatusChanged is emitted when an emitted command changed OSDStatus.
type BroadcastStatusChanged struct {
	Status OSDStatus
	At     time.Time
}

func (BroadcastStatusChanged) broadcastMarker() {}

// ==============================
// Effects
// ==============================

// Effect is a side effect executed by the daemon loop after Reduce.
type Effect interface {
	effectMarker()
}

// EffPublishStatus delivers a status snapshot to a requester.
type EffPublishStatus struct {
	Reply    chan<- StatusSnapshot
	Snapshot StatusSnapshot
}

func (EffPublishStatus) effectMarker() {}

// ==============================
// Reducer input/output
// ==============================

// ReduceResult is the output of Reduce.
type ReduceResult struct {
	State *DaemonState

	// Emitted is the command decoded on this event (Ticks only), or ctrl.None.
	Emitted ctrl.Command

	Broadcasts []StateBroadcast
	Effects    []Effect
}

// Reduce applies one event to s.
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Decodes at most once, and only for Tick
func Reduce(s *DaemonState, e Event, dec *ctrl.Decoder) ReduceResult {
	if s == nil {
		s = NewDaemonState(dec)
	}

	rr := ReduceResult{State: s}

	switch ev := e.(type) {
	case Tick:
		raw := s.Pad.Snapshot()
		cmd := dec.Decode(&s.Decoder, raw)
		s.Polls++
		if cmd == ctrl.None {
			break
		}

		rr.Emitted = cmd
		s.LastCommand = cmd
		s.LastCommandAt = ev.Now
		rr.Broadcasts = append(rr.Broadcasts, BroadcastCommand{Command: cmd, Raw: raw, At: ev.Now})

		next := s.Status.Apply(cmd)
		if next != s.Status {
			s.Status = next
			rr.Broadcasts = append(rr.Broadcasts, BroadcastStatusChanged{Status: next, At: ev.Now})
		}

	case PadButton:
		s.Pad.SetLine(ev.Line, ev.Pressed)

	case PadAxis:
		s.Pad.SetAxis(ev.Axis, ev.Value)

	case SetSnapshot:
		s.Pad.Set(ev.Raw)

	case ReleaseAll:
		s.Pad.ReleaseAll()

	case RequestStatus:
		if ev.Reply != nil {
			rr.Effects = append(rr.Effects, EffPublishStatus{Reply: ev.Reply, Snapshot: s.Snapshot()})
		}

	default:
		// Unknown event type: no-op.
	}

	return rr
}
