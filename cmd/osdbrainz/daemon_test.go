package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"osdbrainz/internal/ctrl"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startDaemon runs the loop with a fast ticker and returns its channels.
func startDaemon(t *testing.T, ctx context.Context, metrics *Metrics) (chan Event, chan StateBroadcast, chan struct{}) {
	t.Helper()
	dec := newTestDecoder(t)
	events := make(chan Event, 8)
	broadcasts := make(chan StateBroadcast, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(ctx, events, broadcasts, dec, nil, time.Millisecond, metrics, quietLogger())
	}()
	return events, broadcasts, done
}

func nextCommand(t *testing.T, broadcasts <-chan StateBroadcast) BroadcastCommand {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case b := <-broadcasts:
			if bc, ok := b.(BroadcastCommand); ok {
				return bc
			}
		case <-timeout:
			t.Fatalf("timeout waiting for a command broadcast")
		}
	}
}

func TestDaemon_DecodesOnTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, broadcasts, done := startDaemon(t, ctx, nil)

	events <- SetSnapshot{Raw: ctrl.ComboDeblurQuickOn}
	if bc := nextCommand(t, broadcasts); bc.Command != ctrl.DeblurQuickOn {
		t.Fatalf("command=%s, want deblur_quick_on", bc.Command)
	}

	events <- SetSnapshot{Raw: ctrl.ComboMuteMenu}
	if bc := nextCommand(t, broadcasts); bc.Command != ctrl.MuteMenu {
		t.Fatalf("command=%s, want mute_menu", bc.Command)
	}

	events <- ReleaseAll{}
	if bc := nextCommand(t, broadcasts); bc.Command != ctrl.UnmuteMenu {
		t.Fatalf("command=%s, want unmute_menu", bc.Command)
	}

	reply := make(chan StatusSnapshot, 1)
	events <- RequestStatus{Reply: reply}
	select {
	case snap := <-reply:
		if !snap.Status.Deblur || snap.Status.Muted {
			t.Fatalf("status=%+v", snap.Status)
		}
		if snap.LastCommand != ctrl.UnmuteMenu || snap.Polls == 0 {
			t.Fatalf("snapshot=%+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for status reply")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("daemon did not stop on cancel")
	}
}

func TestDaemon_NavigationLogsAtDebug(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))

	events := make(chan Event, 8)
	broadcasts := make(chan StateBroadcast, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(ctx, events, broadcasts, newTestDecoder(t), nil, time.Millisecond, nil, logger)
	}()

	events <- SetSnapshot{Raw: ctrl.Combo(ctrl.LineDUp)}
	if bc := nextCommand(t, broadcasts); bc.Command != ctrl.MenuUp {
		t.Fatalf("command=%s, want menu_up", bc.Command)
	}
	events <- SetSnapshot{Raw: ctrl.ComboOpenMenu}
	if bc := nextCommand(t, broadcasts); bc.Command != ctrl.OpenMenu {
		t.Fatalf("command=%s, want open_menu", bc.Command)
	}

	cancel()
	<-done

	logs := out.String()
	if !strings.Contains(logs, "command=open_menu") {
		t.Fatalf("open_menu not logged at info:\n%s", logs)
	}
	if strings.Contains(logs, "command=menu_up") {
		t.Fatalf("menu_up logged at info:\n%s", logs)
	}
}

func TestDaemon_StopsWhenEventsClosed(t *testing.T) {
	events, _, done := startDaemon(t, context.Background(), nil)
	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("daemon did not stop when events closed")
	}
}

func TestForwardInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := newTestTranslator(t)
	raw := make(chan inputEvent, 2)
	readErr := make(chan error, 1)
	events := make(chan Event, 4)

	errCh := make(chan error, 1)
	go func() { errCh <- forwardInput(ctx, tr, raw, readErr, events, nil) }()

	raw <- inputEvent{Type: EV_KEY, Code: BTN_START, Value: evValuePress}
	select {
	case ev := <-events:
		if ev != (PadButton{Line: ctrl.LineStart, Pressed: true}) {
			t.Fatalf("forwarded %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for pad event")
	}

	readErr <- io.ErrUnexpectedEOF
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected reader error")
		}
	case <-time.After(time.Second):
		t.Fatalf("forwardInput did not return on reader error")
	}
}

func TestRunEffect_DropsWhenReplyFull(t *testing.T) {
	reply := make(chan StatusSnapshot, 1)
	reply <- StatusSnapshot{}

	done := make(chan struct{})
	go func() {
		runEffect(EffPublishStatus{Reply: reply, Snapshot: StatusSnapshot{Polls: 1}}, quietLogger())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("runEffect blocked on a full reply channel")
	}
	if got := <-reply; got.Polls != 0 {
		t.Fatalf("reply overwritten: %+v", got)
	}
}
