package main

import (
	"time"

	"osdbrainz/internal/ctrl"
)

// DaemonState is the top-level, daemon-owned state container.
//
// Only the daemon goroutine touches it. Other goroutines get copies through
// StatusSnapshot.
type DaemonState struct {
	// Pad is the live view of the controller lines, assembled from evdev and
	// IPC events. It is sampled once per Tick.
	Pad PadState

	// Decoder is the debounce state for the command decoder.
	Decoder ctrl.DecoderState

	// Status holds the OSD indicators implied by emitted commands.
	Status OSDStatus

	// LastCommand is the most recent non-none command emitted.
	LastCommand   ctrl.Command
	LastCommandAt time.Time

	// Polls counts decoded Ticks.
	Polls uint64
}

// NewDaemonState returns the power-on state for the given decoder.
func NewDaemonState(dec *ctrl.Decoder) *DaemonState {
	return &DaemonState{Decoder: dec.NewState()}
}

// PadState tracks which controller lines are currently held.
type PadState struct {
	raw ctrl.Snapshot
}

// Snapshot samples the pad as the hardware register would read.
func (p PadState) Snapshot() ctrl.Snapshot {
	return p.raw
}

func (p *PadState) SetLine(l ctrl.Line, pressed bool) {
	p.raw = p.raw.With(l, pressed)
}

func (p *PadState) SetAxis(axis string, v int8) {
	x, y := p.raw.X(), p.raw.Y()
	switch axis {
	case "x":
		x = v
	case "y":
		y = v
	default:
		return
	}
	p.raw = p.raw.WithAxes(x, y)
}

func (p *PadState) Set(raw ctrl.Snapshot) {
	p.raw = raw
}

func (p *PadState) ReleaseAll() {
	p.raw = 0
}

// OSDStatus is the indicator state a menu consumer would render.
type OSDStatus struct {
	MenuOpen bool `json:"menu_open"`
	Muted    bool `json:"muted"`
	Deblur   bool `json:"deblur"`
	Bit15    bool `json:"15bit_mode"`
}

// Apply returns the status after cmd. Navigation commands leave it unchanged.
func (s OSDStatus) Apply(cmd ctrl.Command) OSDStatus {
	switch cmd {
	case ctrl.OpenMenu:
		s.MenuOpen = true
		s.Muted = false
	case ctrl.CloseMenu:
		s.MenuOpen = false
		s.Muted = false
	case ctrl.MuteMenu:
		s.Muted = true
	case ctrl.UnmuteMenu:
		s.Muted = false
	case ctrl.DeblurQuickOn:
		s.Deblur = true
	case ctrl.DeblurQuickOff:
		s.Deblur = false
	case ctrl.Bit15QuickOn:
		s.Bit15 = true
	case ctrl.Bit15QuickOff:
		s.Bit15 = false
	}
	return s
}

// StatusSnapshot is a copy of daemon state safe to hand to other goroutines.
type StatusSnapshot struct {
	Status        OSDStatus     `json:"status"`
	Raw           ctrl.Snapshot `json:"raw"`
	Stable        ctrl.Command  `json:"stable"`
	PendingStreak int           `json:"pending_streak"`
	LastCommand   ctrl.Command  `json:"last_command"`
	LastCommandAt time.Time     `json:"last_command_at,omitempty"`
	Polls         uint64        `json:"polls"`
}

func (s *DaemonState) Snapshot() StatusSnapshot {
	return StatusSnapshot{
		Status:        s.Status,
		Raw:           s.Pad.Snapshot(),
		Stable:        s.Decoder.LastStable,
		PendingStreak: s.Decoder.PendingStreak,
		LastCommand:   s.LastCommand,
		LastCommandAt: s.LastCommandAt,
		Polls:         s.Polls,
	}
}
