package ctrl

import "fmt"

// HistoryLength is the default debounce threshold: a changed candidate must
// be seen on HistoryLength+1 consecutive polls before it is emitted.
const HistoryLength = 1

// MaxHistoryLength bounds the debounce threshold to the width of the
// device's 8-bit streak counter.
const MaxHistoryLength = 255

// Binding maps one exact digital pattern to a command.
type Binding struct {
	Pattern Snapshot
	Command Command
}

// OSD button combinations.
var (
	ComboOpenMenu       = Combo(LineL, LineR, LineDRight)
	ComboCloseMenu      = Combo(LineL, LineR, LineDLeft)
	ComboMuteMenu       = Combo(LineL, LineZ)
	ComboDeblurQuickOn  = Combo(LineZ, LineStart, LineR, LineCRight)
	ComboDeblurQuickOff = Combo(LineZ, LineStart, LineR, LineCLeft)
	Combo15BitQuickOn   = Combo(LineZ, LineStart, LineR, LineCUp)
	Combo15BitQuickOff  = Combo(LineZ, LineStart, LineR, LineCDown)
)

// DefaultBindings returns the OSD binding table in match order.
//
// The D-pad and the C buttons both drive menu navigation, so each direction
// has two bindings.
func DefaultBindings() []Binding {
	return []Binding{
		{ComboOpenMenu, OpenMenu},
		{ComboCloseMenu, CloseMenu},
		{ComboMuteMenu, MuteMenu},
		{ComboDeblurQuickOn, DeblurQuickOn},
		{ComboDeblurQuickOff, DeblurQuickOff},
		{Combo15BitQuickOn, Bit15QuickOn},
		{Combo15BitQuickOff, Bit15QuickOff},
		{Combo(LineA), MenuEnter},
		{Combo(LineB), MenuBack},
		{Combo(LineDUp), MenuUp},
		{Combo(LineCUp), MenuUp},
		{Combo(LineDDown), MenuDown},
		{Combo(LineCDown), MenuDown},
		{Combo(LineDLeft), MenuLeft},
		{Combo(LineCLeft), MenuLeft},
		{Combo(LineDRight), MenuRight},
		{Combo(LineCRight), MenuRight},
	}
}

// DecoderState is the debounce state carried between polls.
//
// It is owned by a single poller; Decode performs an unsynchronised
// read-modify-write on it.
type DecoderState struct {
	// LastStable is the most recently confirmed candidate. It never holds
	// UnmuteMenu: releasing mute confirms None.
	LastStable Command

	// PendingStreak counts down the polls a changed candidate still needs.
	// It stays within [0, HistoryLength].
	PendingStreak int
}

// NewDecoderState returns the power-on state for the given threshold.
func NewDecoderState(historyLength int) DecoderState {
	return DecoderState{LastStable: None, PendingStreak: historyLength}
}

// Decoder turns snapshots into debounced commands.
type Decoder struct {
	historyLength int
	bindings      []Binding
}

// NewDecoder returns a decoder using the default binding table.
func NewDecoder(historyLength int) (*Decoder, error) {
	return NewDecoderWithBindings(historyLength, DefaultBindings())
}

// NewDecoderWithBindings returns a decoder matching against bindings in order.
func NewDecoderWithBindings(historyLength int, bindings []Binding) (*Decoder, error) {
	if historyLength < 0 || historyLength > MaxHistoryLength {
		return nil, fmt.Errorf("history length must be between 0 and %d, got %d", MaxHistoryLength, historyLength)
	}
	for i, b := range bindings {
		if b.Pattern&^DigitalMask != 0 {
			return nil, fmt.Errorf("binding %d (%s): pattern 0x%08x has analog bits set", i, b.Command, uint32(b.Pattern))
		}
		if b.Command == None || b.Command == UnmuteMenu || b.Command >= numCommands {
			return nil, fmt.Errorf("binding %d: command %s cannot be bound", i, b.Command)
		}
	}
	bs := make([]Binding, len(bindings))
	copy(bs, bindings)
	return &Decoder{historyLength: historyLength, bindings: bs}, nil
}

// HistoryLength returns the debounce threshold.
func (d *Decoder) HistoryLength() int {
	return d.historyLength
}

// NewState returns the power-on state for this decoder.
func (d *Decoder) NewState() DecoderState {
	return NewDecoderState(d.historyLength)
}

// Candidate returns the command matching raw before debouncing.
// Unmatched patterns give None.
func (d *Decoder) Candidate(raw Snapshot) Command {
	digital := raw.Digital()
	for _, b := range d.bindings {
		if b.Pattern == digital {
			return b.Command
		}
	}
	return None
}

// Decode feeds one poll into st and returns the command confirmed on this
// poll, or None.
func (d *Decoder) Decode(st *DecoderState, raw Snapshot) Command {
	cand := d.Candidate(raw)

	if cand == st.LastStable {
		if cand == None {
			st.PendingStreak = 0
		} else {
			st.PendingStreak = d.historyLength
		}
		return None
	}

	if st.PendingStreak > 0 {
		st.PendingStreak--
		return None
	}

	out := cand
	if st.LastStable == MuteMenu && cand == None {
		out = UnmuteMenu
	}
	st.LastStable = cand
	st.PendingStreak = d.historyLength
	return out
}
