package cli

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/herder/pkg/cli/config"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/infra/git"
	"github.com/m-mizutani/herder/pkg/infra/recipe"
	"github.com/m-mizutani/herder/pkg/usecase"
	"github.com/m-mizutani/herder/pkg/utils/prompt"
)

// workflow carries everything needed to build the release use case
type workflow struct {
	policy    *config.Policy
	github    interfaces.GitHubClient
	tokens    interfaces.TokenSource
	run       config.Run
	lock      interfaces.BranchLock
	notifier  interfaces.Notifier
	reports   interfaces.ReportStore
	testMode  bool
	sentryCfg *config.Sentry
}

func (w *workflow) releaseUseCase() (interfaces.ReleaseUseCase, error) {
	rules, err := w.policy.MetadataRules()
	if err != nil {
		return nil, err
	}
	rerenderer, err := w.policy.Rerenderer()
	if err != nil {
		return nil, err
	}
	versions := w.policy.VersionStore()
	bumper, err := w.policy.Bumper(versions)
	if err != nil {
		return nil, err
	}

	cfg := w.policy.ReleaseConfig(w.testMode)
	cfg.Workspace = w.run.Workspace
	cfg.KeepWorkspace = w.run.KeepWorkspace
	cfg.Token = w.tokens

	gitClient := git.New()

	deps := usecase.Dependencies{
		Classifier: usecase.NewClassifier(w.github, w.policy.ClassifierConfig()),
		GitHub:     w.github,
		Git:        gitClient,
		Rerenderer: rerenderer,
		Bumper:     bumper,
		Metadata:   recipe.NewAccessor(rules...),
		Versions:   versions,
		Publisher:  usecase.NewPublisher(gitClient, w.tokens, cfg.Identity),
		Lock:       w.lock,
		Notifier:   w.notifier,
		Reports:    w.reports,
	}
	if w.testMode {
		deps.Confirmer = prompt.New()
	}

	return usecase.NewRelease(deps, cfg)
}

// runOnce processes a single event under the run deadline. A skipped run is
// a success; an aborted run returns its error.
func (w *workflow) runOnce(ctx context.Context, ev *model.Event) error {
	releaseUC, err := w.releaseUseCase()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, w.run.Timeout)
	defer cancel()

	if w.testMode {
		ctxlog.From(ctx).Warn("Running in test mode, publishing requires confirmation")
	}

	report, err := releaseUC.Run(ctx, ev)
	if err != nil {
		w.sentryCfg.CaptureAbort(err, report)
		return err
	}
	return nil
}
