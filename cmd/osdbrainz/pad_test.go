package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"
	"time"

	"osdbrainz/internal/ctrl"
)

func newTestTranslator(t *testing.T) *padTranslator {
	t.Helper()
	cfg := DefaultConfig()
	km, err := cfg.Keymap()
	if err != nil {
		t.Fatalf("Keymap: %v", err)
	}
	return newPadTranslator(km, true, true)
}

func TestPadTranslator_Keys(t *testing.T) {
	tr := newTestTranslator(t)

	got := tr.translate(inputEvent{Type: EV_KEY, Code: BTN_TL, Value: evValuePress})
	if len(got) != 1 || got[0] != (PadButton{Line: ctrl.LineL, Pressed: true}) {
		t.Fatalf("press BTN_TL => %#v", got)
	}
	got = tr.translate(inputEvent{Type: EV_KEY, Code: BTN_TL, Value: evValueRelease})
	if len(got) != 1 || got[0] != (PadButton{Line: ctrl.LineL, Pressed: false}) {
		t.Fatalf("release BTN_TL => %#v", got)
	}

	if got := tr.translate(inputEvent{Type: EV_KEY, Code: BTN_TL, Value: evValueRepeat}); got != nil {
		t.Fatalf("repeat should be ignored, got %#v", got)
	}
	if got := tr.translate(inputEvent{Type: EV_KEY, Code: BTN_MODE, Value: evValuePress}); got != nil {
		t.Fatalf("unmapped key should be ignored, got %#v", got)
	}
	if got := tr.translate(inputEvent{Type: EV_SYN}); got != nil {
		t.Fatalf("EV_SYN should be ignored, got %#v", got)
	}
}

func TestPadTranslator_Hat(t *testing.T) {
	tr := newTestTranslator(t)

	got := tr.translate(inputEvent{Type: EV_ABS, Code: ABS_HAT0X, Value: 1})
	if len(got) != 1 || got[0] != (PadButton{Line: ctrl.LineDRight, Pressed: true}) {
		t.Fatalf("hat x=1 => %#v", got)
	}

	// Swinging straight across releases first, then presses.
	got = tr.translate(inputEvent{Type: EV_ABS, Code: ABS_HAT0X, Value: -1})
	want := []Event{
		PadButton{Line: ctrl.LineDRight, Pressed: false},
		PadButton{Line: ctrl.LineDLeft, Pressed: true},
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("hat x=1 -> -1 => %#v", got)
	}

	// Same value again is not an edge.
	if got := tr.translate(inputEvent{Type: EV_ABS, Code: ABS_HAT0X, Value: -1}); len(got) != 0 {
		t.Fatalf("repeated hat x=-1 => %#v", got)
	}

	got = tr.translate(inputEvent{Type: EV_ABS, Code: ABS_HAT0Y, Value: -1})
	if len(got) != 1 || got[0] != (PadButton{Line: ctrl.LineDUp, Pressed: true}) {
		t.Fatalf("hat y=-1 => %#v", got)
	}
}

func TestPadTranslator_HatCentreReleases(t *testing.T) {
	tr := newTestTranslator(t)
	dec := newTestDecoder(t)

	var s DaemonState
	feed := func(ev inputEvent) {
		for _, pe := range tr.translate(ev) {
			Reduce(&s, pe, dec)
		}
	}

	feed(inputEvent{Type: EV_ABS, Code: ABS_HAT0Y, Value: -1})
	if !s.Pad.Snapshot().Has(ctrl.LineDUp) {
		t.Fatalf("hat y=-1 did not press d_up: %s", s.Pad.Snapshot())
	}
	feed(inputEvent{Type: EV_ABS, Code: ABS_HAT0Y, Value: 0})
	if s.Pad.Snapshot() != 0 {
		t.Fatalf("centred hat left %s", s.Pad.Snapshot())
	}
}

func TestPadTranslator_HatKeepsDPadKeys(t *testing.T) {
	tr := newTestTranslator(t)
	dec := newTestDecoder(t)

	var s DaemonState
	feed := func(ev inputEvent) {
		for _, pe := range tr.translate(ev) {
			Reduce(&s, pe, dec)
		}
	}

	feed(inputEvent{Type: EV_KEY, Code: BTN_DPAD_UP, Value: evValuePress})
	feed(inputEvent{Type: EV_ABS, Code: ABS_HAT0X, Value: 1})
	feed(inputEvent{Type: EV_ABS, Code: ABS_HAT0X, Value: 0})

	raw := s.Pad.Snapshot()
	if !raw.Has(ctrl.LineDUp) {
		t.Fatalf("hat x events released keyed d_up: %s", raw)
	}
	if raw.Has(ctrl.LineDRight) {
		t.Fatalf("centred hat x left d_right: %s", raw)
	}

	// A hat that never left centre on Y does not touch d_up either.
	feed(inputEvent{Type: EV_ABS, Code: ABS_HAT0Y, Value: 0})
	if !s.Pad.Snapshot().Has(ctrl.LineDUp) {
		t.Fatalf("centred hat y released keyed d_up: %s", s.Pad.Snapshot())
	}
}

func TestPadTranslator_StickClampedAndInverted(t *testing.T) {
	tr := newTestTranslator(t)

	got := tr.translate(inputEvent{Type: EV_ABS, Code: ABS_X, Value: 500})
	if len(got) != 1 || got[0] != (PadAxis{Axis: "x", Value: 127}) {
		t.Fatalf("stick x=500 => %#v", got)
	}
	got = tr.translate(inputEvent{Type: EV_ABS, Code: ABS_Y, Value: 20})
	if len(got) != 1 || got[0] != (PadAxis{Axis: "y", Value: -20}) {
		t.Fatalf("stick y=20 => %#v", got)
	}
	got = tr.translate(inputEvent{Type: EV_ABS, Code: ABS_Y, Value: -300})
	if len(got) != 1 || got[0] != (PadAxis{Axis: "y", Value: 127}) {
		t.Fatalf("stick y=-300 => %#v", got)
	}
}

func TestPadTranslator_DisabledSources(t *testing.T) {
	km := map[uint16]ctrl.Line{BTN_SOUTH: ctrl.LineA}
	tr := newPadTranslator(km, false, false)

	for _, ev := range []inputEvent{
		{Type: EV_ABS, Code: ABS_HAT0X, Value: 1},
		{Type: EV_ABS, Code: ABS_X, Value: 10},
		{Type: EV_ABS, Code: ABS_RX, Value: 10},
	} {
		if got := tr.translate(ev); got != nil {
			t.Fatalf("%+v should be ignored, got %#v", ev, got)
		}
	}
}

func TestClampAxis(t *testing.T) {
	cases := map[int32]int8{-1000: -128, -128: -128, 0: 0, 99: 99, 127: 127, 128: 127}
	for in, want := range cases {
		if got := clampAxis(in); got != want {
			t.Errorf("clampAxis(%d)=%d, want %d", in, got, want)
		}
	}
}

func TestReadInputEvents_DecodesAndReportsEOF(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()

	events := make(chan inputEvent, 4)
	readErr := make(chan error, 1)
	go readInputEvents(r, events, readErr)

	var buf bytes.Buffer
	in := inputEvent{Sec: 1, Usec: 2, Type: EV_KEY, Code: BTN_START, Value: evValuePress}
	if err := binary.Write(&buf, binary.LittleEndian, in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-events:
		if got != in {
			t.Fatalf("got %+v, want %+v", got, in)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for event")
	}

	w.Close()
	select {
	case err := <-readErr:
		if err == nil {
			t.Fatalf("expected read error after close")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for read error")
	}
}
