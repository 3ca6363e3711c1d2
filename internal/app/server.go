package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Start launches the outbox poller and returns a channel closed on
// shutdown. Unlike the teacher's Start (which binds HTTP/SSE listeners),
// this App has no inbound listener of its own — the background outbox
// poller is the only long-running loop Start owns directly; each consumer
// Runtime started by topic wiring code runs on its own goroutine.Manager.
func (a *App) Start() <-chan struct{} {
	terminateChan := make(chan struct{})

	a.goroutine.Go(a.ctx, func(ctx context.Context) error {
		slog.Info("outbox poller starting")
		a.poller.Start(ctx)
		return nil
	})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigint)

		<-sigint

		if a.cancel != nil {
			a.cancel()
		}

		close(terminateChan)

		slog.Info("application gracefully shutdown")
	}()

	return terminateChan
}

// Stop gracefully shuts down the poller and closes resources.
func (a *App) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}

	if err := a.poller.Stop(); err != nil {
		slog.ErrorContext(ctx, "failed to stop outbox poller", "error", err)
	}

	slog.InfoContext(ctx, "waiting for all goroutines to finish")
	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "error from goroutine executions", "error", err)
	}
	slog.InfoContext(ctx, "all goroutines have finished successfully")

	for _, closer := range a.closers {
		if err := closer.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resource", "name", closer.name, "error", err)
		}
	}
}
