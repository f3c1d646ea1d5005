// Package ctrl decodes polled controller snapshots into debounced OSD commands.
//
// A Snapshot is the 32-bit controller status word sampled once per poll.
// The upper half carries the digital lines (buttons and directions), the
// lower half the analog stick. Only the digital half takes part in decoding.
package ctrl

import (
	"fmt"
	"strings"
)

// Snapshot is one raw controller sample.
type Snapshot uint32

// Line is a single digital input line within a Snapshot.
type Line uint32

// Digital lines, in controller status word order.
const (
	LineA      Line = 1 << 31
	LineB      Line = 1 << 30
	LineZ      Line = 1 << 29
	LineStart  Line = 1 << 28
	LineDUp    Line = 1 << 27
	LineDDown  Line = 1 << 26
	LineDLeft  Line = 1 << 25
	LineDRight Line = 1 << 24
	LineReset  Line = 1 << 23
	LineL      Line = 1 << 21
	LineR      Line = 1 << 20
	LineCUp    Line = 1 << 19
	LineCDown  Line = 1 << 18
	LineCLeft  Line = 1 << 17
	LineCRight Line = 1 << 16
)

const (
	// DigitalMask selects every digital line of a Snapshot.
	DigitalMask Snapshot = 0xFFFF0000

	xAxisMask  Snapshot = 0x0000FF00
	yAxisMask  Snapshot = 0x000000FF
	xAxisShift          = 8
)

var lineNames = []struct {
	line Line
	name string
}{
	{LineA, "a"},
	{LineB, "b"},
	{LineZ, "z"},
	{LineStart, "start"},
	{LineDUp, "d_up"},
	{LineDDown, "d_down"},
	{LineDLeft, "d_left"},
	{LineDRight, "d_right"},
	{LineReset, "reset"},
	{LineL, "l"},
	{LineR, "r"},
	{LineCUp, "c_up"},
	{LineCDown, "c_down"},
	{LineCLeft, "c_left"},
	{LineCRight, "c_right"},
}

// String returns the line's config name (e.g. "d_up").
func (l Line) String() string {
	for _, ln := range lineNames {
		if ln.line == l {
			return ln.name
		}
	}
	return fmt.Sprintf("line(0x%08x)", uint32(l))
}

// ParseLine resolves a config name back to its Line.
func ParseLine(name string) (Line, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, ln := range lineNames {
		if ln.name == n {
			return ln.line, nil
		}
	}
	return 0, fmt.Errorf("unknown controller line: %q", name)
}

func (l Line) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Line) UnmarshalText(b []byte) error {
	parsed, err := ParseLine(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// LineNames lists every known line name in status word order.
func LineNames() []string {
	names := make([]string, 0, len(lineNames))
	for _, ln := range lineNames {
		names = append(names, ln.name)
	}
	return names
}

// Digital returns only the digital lines of s.
func (s Snapshot) Digital() Snapshot {
	return s & DigitalMask
}

// Has reports whether every line in l is set.
func (s Snapshot) Has(l Line) bool {
	return uint32(s)&uint32(l) == uint32(l)
}

// With returns s with the given lines set or cleared.
func (s Snapshot) With(l Line, pressed bool) Snapshot {
	if pressed {
		return s | Snapshot(l)
	}
	return s &^ Snapshot(l)
}

// X returns the analog X axis.
func (s Snapshot) X() int8 {
	return int8((s & xAxisMask) >> xAxisShift)
}

// Y returns the analog Y axis.
func (s Snapshot) Y() int8 {
	return int8(s & yAxisMask)
}

// WithAxes returns s with the analog bytes replaced.
func (s Snapshot) WithAxes(x, y int8) Snapshot {
	s &^= xAxisMask | yAxisMask
	return s | Snapshot(uint8(x))<<xAxisShift | Snapshot(uint8(y))
}

// String renders the snapshot the way the device debug overlay prints it.
func (s Snapshot) String() string {
	return fmt.Sprintf("Ctrl.Data: 0x%08x", uint32(s))
}

// Combo builds a Snapshot with exactly the given lines pressed.
func Combo(lines ...Line) Snapshot {
	var s Snapshot
	for _, l := range lines {
		s |= Snapshot(l)
	}
	return s
}
