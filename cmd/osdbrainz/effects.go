package main

import (
	"log/slog"
)

// runEffect executes a single reducer-emitted Effect.
//
// This function is allowed to talk to other goroutines; it must never call
// Reduce() directly and must never block the daemon loop.
func runEffect(eff Effect, logger *slog.Logger) {
	switch e := eff.(type) {
	case EffPublishStatus:
		select {
		case e.Reply <- e.Snapshot:
		default:
			logger.Warn("status reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown effect type", "effect", eff)
	}
}
