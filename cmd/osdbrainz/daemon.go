package main

import (
	"context"
	"log/slog"
	"time"

	"osdbrainz/internal/ctrl"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// The daemon goroutine is the single owner of DaemonState, which makes it the
// only caller of the command decoder. Pad events mutate the pad view as they
// arrive; the decoder samples that view once per poll tick.
//
// ============================================================================

// runDaemon is the main daemon loop that:
//   - Receives Events from the evdev translator and IPC
//   - Emits a Tick every pollInterval, decoding the pad once per Tick
//   - Forwards reducer broadcasts to the WebSocket broadcaster
//   - Executes reducer effects
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	broadcasts chan<- StateBroadcast,
	dec *ctrl.Decoder,
	state *DaemonState,
	pollInterval time.Duration,
	metrics *Metrics,
	logger *slog.Logger,
) {
	if state == nil {
		state = NewDaemonState(dec)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	apply := func(ev Event) {
		rr := Reduce(state, ev, dec)
		if rr.State != nil {
			state = rr.State
		}

		if _, isTick := ev.(Tick); isTick {
			metrics.RecordPoll(ctx, rr.Emitted)
		}
		if rr.Emitted != ctrl.None {
			level := slog.LevelInfo
			if rr.Emitted.IsNavigation() {
				// Menu movement is chatty; only OSD state changes log at info.
				level = slog.LevelDebug
			}
			logger.Log(ctx, level, "command", "command", rr.Emitted.String(), "raw", state.Pad.Snapshot())
		}

		for _, b := range rr.Broadcasts {
			if broadcasts == nil {
				break
			}
			select {
			case broadcasts <- b:
			default:
				logger.Warn("broadcast queue full, dropping", "broadcast", b)
			}
		}
		for _, eff := range rr.Effects {
			runEffect(eff, logger)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			apply(ev)

		case now := <-ticker.C:
			apply(Tick{Now: now})
		}
	}
}
