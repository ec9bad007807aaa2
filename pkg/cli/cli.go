package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/cli/config"
	"github.com/m-mizutani/herder/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var (
		loggerCfg   config.Logger
		githubCfg   config.GitHub
		workflowCfg config.Workflow
		eventCfg    config.Event
		runCfg      config.Run
		lockCfg     config.Lock
		notifyCfg   config.Notify
		reportCfg   config.Report
		sentryCfg   config.Sentry
		serverCfg   config.Server
	)
	var logger *slog.Logger

	var flags []cli.Flag
	for _, f := range [][]cli.Flag{
		loggerCfg.Flags(),
		githubCfg.Flags(),
		workflowCfg.Flags(),
		eventCfg.Flags(),
		runCfg.Flags(),
		lockCfg.Flags(),
		notifyCfg.Flags(),
		reportCfg.Flags(),
		sentryCfg.Flags(),
		serverCfg.Flags(),
	} {
		flags = append(flags, f...)
	}

	app := &cli.Command{
		Name:    "herder",
		Usage:   "Promote a project release together with its packaging feedstock",
		Version: types.Version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			flush, err := sentryCfg.Configure()
			if err != nil {
				return err
			}
			defer flush()

			policy, err := workflowCfg.Load()
			if err != nil {
				return err
			}

			githubClient, tokens, err := githubCfg.Configure()
			if err != nil {
				return err
			}

			branchLock, closeLock, err := lockCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer closeLock()

			reports, closeReports, err := reportCfg.Configure(ctx, lockCfg.CredentialsFile)
			if err != nil {
				return err
			}
			defer closeReports()

			w := &workflow{
				policy:    policy,
				github:    githubClient,
				tokens:    tokens,
				run:       runCfg,
				lock:      branchLock,
				notifier:  notifyCfg.Configure(),
				reports:   reports,
				testMode:  eventCfg.TestMode(),
				sentryCfg: &sentryCfg,
			}

			if serverCfg.Serve {
				if githubCfg.WebhookSecret == "" {
					return goerr.New("--github-webhook-secret is required with --serve")
				}
				return serve(ctx, w, &serverCfg, githubCfg.WebhookSecret)
			}

			ev, err := eventCfg.Load(ctx)
			if err != nil {
				return err
			}
			return w.runOnce(ctx, ev)
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		return err
	}

	return nil
}
