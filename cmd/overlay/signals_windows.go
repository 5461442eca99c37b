package main

import (
	"context"

	"github.com/nvr-ai/go-overlay/controller"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/session"
)

// cycleModes is unavailable without SIGUSR1.
func cycleModes(context.Context, *controller.Controller, *session.Session, logging.Logger) {}
