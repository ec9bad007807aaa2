package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/cli/config"
	controller "github.com/m-mizutani/herder/pkg/controller/http"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/usecase"
	"github.com/m-mizutani/herder/pkg/utils/async"
)

// abortReporter captures aborted webhook runs in Sentry
type abortReporter struct {
	w    *workflow
	next interfaces.ReleaseUseCase
}

func (x *abortReporter) Run(ctx context.Context, event *model.Event) (*model.RunReport, error) {
	report, err := x.next.Run(ctx, event)
	if err != nil {
		x.w.sentryCfg.CaptureAbort(err, report)
	}
	return report, err
}

func serve(ctx context.Context, w *workflow, cfg *config.Server, webhookSecret string) error {
	addr := cfg.Addr
	logger := ctxlog.From(ctx)

	if w.testMode {
		return goerr.New("--test-event cannot be combined with --serve")
	}

	logger.Info("Starting herder server",
		slog.String("addr", addr),
	)

	releaseUC, err := w.releaseUseCase()
	if err != nil {
		return err
	}
	var runs async.Group
	webhookUC := usecase.NewWebhook(
		&abortReporter{w: w, next: releaseUC},
		usecase.WithRunTimeout(w.run.Timeout),
		usecase.WithDispatcher(runs.Dispatch),
	)

	server, err := controller.NewServer(
		ctx,
		webhookUC,
		controller.WithAddr(addr),
		controller.WithWebhookSecret(webhookSecret),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to create HTTP server")
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", slog.Any("error", err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down...")
	case sig := <-sigChan:
		logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shutdown server gracefully")
	}

	// Let in-flight runs finish their pushes.
	drainCtx, drainCancel := context.WithTimeout(context.WithoutCancel(ctx), w.run.Timeout)
	defer drainCancel()
	if err := runs.Wait(drainCtx); err != nil {
		logger.Warn("Release runs still in flight at shutdown", slog.Any("error", err))
	}

	logger.Info("Server shutdown complete")
	return nil
}
