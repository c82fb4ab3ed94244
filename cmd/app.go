package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/kbsync/kbsync/internal/app"
	"github.com/kbsync/kbsync/internal/config"
)

// withApp loads configuration, wires the application, and runs fn, closing the
// application afterward regardless of fn's outcome. ctx is cancelled on
// SIGINT/SIGTERM so an in-flight sync gets its cancellation grace window
// (spec §5) rather than being killed outright.
func withApp(parent context.Context, fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("error closing application", "error", closeErr)
		}
	}()

	return fn(ctx, a)
}
