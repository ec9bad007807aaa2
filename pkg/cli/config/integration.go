package config

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
	"github.com/m-mizutani/herder/pkg/infra/lock"
	"github.com/m-mizutani/herder/pkg/infra/notify"
	"github.com/m-mizutani/herder/pkg/infra/report"
	"github.com/urfave/cli/v3"
)

// Lock holds branch lock configuration. Without a Firestore project the lock
// is process local.
type Lock struct {
	ProjectID       string
	DatabaseID      string
	Collection      string
	CredentialsFile string
	TTL             time.Duration
}

// Flags returns CLI flags for lock configuration
func (c *Lock) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore project for the shared branch lock",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("HERDER_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Destination: &c.DatabaseID,
			Sources:     cli.EnvVars("HERDER_FIRESTORE_DATABASE_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-collection",
			Usage:       "Firestore collection of lock documents",
			Value:       lock.DefaultCollection,
			Destination: &c.Collection,
			Sources:     cli.EnvVars("HERDER_FIRESTORE_COLLECTION"),
		},
		&cli.StringFlag{
			Name:        "google-credentials",
			Usage:       "Google Cloud credentials file for Firestore and Cloud Storage",
			Destination: &c.CredentialsFile,
			Sources:     cli.EnvVars("HERDER_GOOGLE_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS"),
		},
		&cli.DurationFlag{
			Name:        "lock-ttl",
			Usage:       "Lease of a branch lock that was never released",
			Value:       time.Hour,
			Destination: &c.TTL,
			Sources:     cli.EnvVars("HERDER_LOCK_TTL"),
		},
	}
}

// Configure returns the branch lock and its closer
func (c *Lock) Configure(ctx context.Context) (interfaces.BranchLock, func(), error) {
	if c.ProjectID == "" {
		return lock.NewMemory(), func() {}, nil
	}

	fs, err := lock.NewFirestore(ctx, c.ProjectID, c.DatabaseID, c.CredentialsFile,
		lock.WithCollection(c.Collection),
		lock.WithTTL(c.TTL),
	)
	if err != nil {
		return nil, nil, err
	}

	closer := func() {
		if err := fs.Close(); err != nil {
			ctxlog.From(ctx).Warn("Failed to close Firestore client", "error", err)
		}
	}
	return fs, closer, nil
}

// Notify holds notification configuration
type Notify struct {
	SlackWebhookURL string
}

// Flags returns CLI flags for notification configuration
func (c *Notify) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook for release and abort notifications",
			Destination: &c.SlackWebhookURL,
			Sources:     cli.EnvVars("HERDER_SLACK_WEBHOOK_URL"),
		},
	}
}

// Configure returns the notifier, nil when disabled
func (c *Notify) Configure() interfaces.Notifier {
	if c.SlackWebhookURL == "" {
		return nil
	}
	return notify.NewSlack(c.SlackWebhookURL)
}

// Report holds run report archive configuration
type Report struct {
	Bucket string
	Prefix string
}

// Flags returns CLI flags for report configuration
func (c *Report) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "report-bucket",
			Usage:       "Cloud Storage bucket receiving run reports",
			Destination: &c.Bucket,
			Sources:     cli.EnvVars("HERDER_REPORT_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "report-prefix",
			Usage:       "Object prefix of run reports",
			Value:       "reports",
			Destination: &c.Prefix,
			Sources:     cli.EnvVars("HERDER_REPORT_PREFIX"),
		},
	}
}

// Configure returns the report store and its closer, nil when disabled
func (c *Report) Configure(ctx context.Context, credentialsFile string) (interfaces.ReportStore, func(), error) {
	if c.Bucket == "" {
		return nil, func() {}, nil
	}

	store, err := report.NewStorage(ctx, c.Bucket, c.Prefix, credentialsFile)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := store.Close(); err != nil {
			ctxlog.From(ctx).Warn("Failed to close Cloud Storage client", "error", err)
		}
	}
	return store, closer, nil
}

// Sentry holds error reporting configuration
type Sentry struct {
	DSN string
	Env string
}

// Flags returns CLI flags for Sentry configuration
func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN for aborted runs",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("HERDER_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Destination: &c.Env,
			Sources:     cli.EnvVars("HERDER_SENTRY_ENV"),
		},
	}
}

// Configure initializes the Sentry client. The returned function flushes
// pending events.
func (c *Sentry) Configure() (func(), error) {
	if c.DSN == "" {
		return func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         c.DSN,
		Environment: c.Env,
		Release:     types.Version,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize Sentry")
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureAbort sends the error of an aborted run with the run context
func (c *Sentry) CaptureAbort(err error, rep *model.RunReport) {
	if c.DSN == "" || err == nil {
		return
	}

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		if rep != nil {
			scope.SetTag("run_id", rep.ID.String())
			scope.SetTag("repository", rep.Event.Repository.String())
			scope.SetTag("event_kind", string(rep.Event.Kind))
			scope.SetContext("run", sentry.Context{
				"history":          rep.History,
				"previous_version": rep.PreviousVersion,
				"new_version":      rep.NewVersion,
				"published":        rep.Published,
			})
		}
		if values := errorValues(err); len(values) > 0 {
			scope.SetContext("error_values", values)
		}
	})
	hub.CaptureException(err)
}

// errorValues collects the goerr.V values attached along the error chain
func errorValues(err error) sentry.Context {
	var gErr *goerr.Error
	if !errors.As(err, &gErr) {
		return nil
	}
	values := sentry.Context{}
	for k, v := range gErr.Values() {
		values[k] = v
	}
	return values
}

// Run holds settings of a single workflow run
type Run struct {
	Workspace     string
	KeepWorkspace bool
	Timeout       time.Duration
}

// Flags returns CLI flags for run configuration
func (c *Run) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "workspace",
			Usage:       "Directory receiving per-run clones (default: OS temp dir)",
			Destination: &c.Workspace,
			Sources:     cli.EnvVars("HERDER_WORKSPACE"),
		},
		&cli.BoolFlag{
			Name:        "keep-workspace",
			Usage:       "Keep clones after the run",
			Destination: &c.KeepWorkspace,
			Sources:     cli.EnvVars("HERDER_KEEP_WORKSPACE"),
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Overall deadline of a run",
			Value:       30 * time.Minute,
			Destination: &c.Timeout,
			Sources:     cli.EnvVars("HERDER_TIMEOUT"),
		},
	}
}
