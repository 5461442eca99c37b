//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/go-overlay/controller"
	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/session"
)

// cycleModes switches to the next detection mode on every SIGUSR1.
func cycleModes(ctx context.Context, ctrl *controller.Controller, s *session.Session, logger logging.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			next := nextMode(s.Mode())
			if err := ctrl.SelectMode(next); err != nil {
				logger.Warnw("mode switch failed", "mode", next, "error", err)
			}
		}
	}
}
