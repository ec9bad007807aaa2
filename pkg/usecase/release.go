package usecase

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

const (
	DefaultReleaseBranch types.BranchName = "develop"
	DefaultRecipeFile                     = "recipe/meta.yaml"
)

// ReleaseConfig is the policy of the release reconciler
type ReleaseConfig struct {
	// ReleaseBranch is the only branch a release may be cut from
	ReleaseBranch types.BranchName
	// FeedstockBranch is checked out in the feedstock; empty means the
	// branch of the decision
	FeedstockBranch types.BranchName
	// RecipeFile is the recipe path inside the feedstock
	RecipeFile   string
	GitRevSource types.GitRevSource

	// Workspace is the parent of the per-run clone directory
	Workspace     string
	KeepWorkspace bool
	// Token supplies the credential for every clone; nil clones anonymously
	Token interfaces.TokenSource

	// Identity authors the local rerender commit of a release run
	Identity model.Identity
}

func (x *ReleaseConfig) setDefaults() {
	if x.ReleaseBranch == "" {
		x.ReleaseBranch = DefaultReleaseBranch
	}
	if x.RecipeFile == "" {
		x.RecipeFile = DefaultRecipeFile
	}
	if x.GitRevSource == "" {
		x.GitRevSource = types.GitRevFromVersion
	}
	if x.Workspace == "" {
		x.Workspace = os.TempDir()
	}
	if x.Token == nil {
		x.Token = interfaces.StaticToken("")
	}
}

// Dependencies are the collaborators of the reconciler. Lock, Notifier,
// Reports and Confirmer are optional.
type Dependencies struct {
	Classifier *Classifier
	GitHub     interfaces.GitHubClient
	Git        interfaces.GitClient
	Rerenderer interfaces.Rerenderer
	Bumper     interfaces.VersionBumper
	Metadata   interfaces.MetadataStore
	Versions   interfaces.VersionStore
	Publisher  interfaces.PublishUseCase

	Lock      interfaces.BranchLock
	Notifier  interfaces.Notifier
	Reports   interfaces.ReportStore
	Confirmer interfaces.Confirmer
}

func (x *Dependencies) validate() error {
	switch {
	case x.Classifier == nil:
		return goerr.New("classifier is required")
	case x.GitHub == nil:
		return goerr.New("GitHub client is required")
	case x.Git == nil:
		return goerr.New("git client is required")
	case x.Rerenderer == nil:
		return goerr.New("rerenderer is required")
	case x.Bumper == nil:
		return goerr.New("version bumper is required")
	case x.Metadata == nil:
		return goerr.New("metadata store is required")
	case x.Versions == nil:
		return goerr.New("version store is required")
	case x.Publisher == nil:
		return goerr.New("publisher is required")
	}
	return nil
}

type releaseUseCase struct {
	deps  Dependencies
	cfg   ReleaseConfig
	now   func() time.Time
	newID func() types.RunID
}

// ReleaseOption configures the reconciler
type ReleaseOption func(*releaseUseCase)

// WithReleaseClock replaces time.Now
func WithReleaseClock(now func() time.Time) ReleaseOption {
	return func(uc *releaseUseCase) {
		uc.now = now
	}
}

// WithRunID replaces the run id generator
func WithRunID(newID func() types.RunID) ReleaseOption {
	return func(uc *releaseUseCase) {
		uc.newID = newID
	}
}

// NewRelease creates the release reconciler
func NewRelease(deps Dependencies, cfg ReleaseConfig, opts ...ReleaseOption) (interfaces.ReleaseUseCase, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := cfg.GitRevSource.Validate(); cfg.GitRevSource != "" && err != nil {
		return nil, goerr.Wrap(err, "invalid release config", goerr.V("git_rev_source", cfg.GitRevSource))
	}
	cfg.setDefaults()

	uc := &releaseUseCase{
		deps: deps,
		cfg:  cfg,
		now:  time.Now,
		newID: func() types.RunID {
			return types.RunID(uuid.NewString())
		},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc, nil
}

// run carries the mutable state of one workflow execution
type run struct {
	report    *model.RunReport
	event     *model.Event
	decision  *model.ReleaseDecision
	dir       string
	feedstock *model.RepositoryHandle
	project   *model.RepositoryHandle
}

// Run drives one event through Idle → Classified → {RerenderOnly |
// ReleasePending} → Reconciled → Published → Done. Any fatal condition ends in
// Aborted with no further side effects.
func (uc *releaseUseCase) Run(ctx context.Context, event *model.Event) (*model.RunReport, error) {
	r := &run{
		report: model.NewRunReport(uc.newID(), *event, uc.now().UTC()),
		event:  event,
	}

	logger := ctxlog.From(ctx).With(
		"run_id", r.report.ID,
		"event_kind", event.Kind,
		"repository", event.Repository,
		"ref_name", event.RefName,
	)
	ctx = ctxlog.With(ctx, logger)

	err := uc.execute(ctx, r)
	if err != nil {
		r.report.Error = err.Error()
		r.report.Transit(model.StateAborted)
		logger.Error("Release run aborted",
			"error", err,
			"history", r.report.History,
		)
	}
	r.report.EndedAt = uc.now().UTC()

	uc.finish(ctx, r.report)
	return r.report, err
}

func (uc *releaseUseCase) execute(ctx context.Context, r *run) error {
	logger := ctxlog.From(ctx)

	if err := r.event.Validate(); err != nil {
		return goerr.Wrap(err, "invalid event", goerr.T(types.ErrTagPrecondition))
	}

	// Idle → Classified
	cls, err := uc.deps.Classifier.Classify(ctx, r.event)
	if err != nil {
		return goerr.Wrap(err, "failed to classify event")
	}
	r.report.Transit(model.StateClassified)

	if cls.Noop() {
		r.report.Skip = cls.Skip
		r.report.Transit(model.StateDone)
		logger.Info("Nothing to do", "reason", cls.Skip)
		return nil
	}
	r.decision = cls.Decision
	r.report.Decision = cls.Decision

	// Per-branch lock
	if uc.deps.Lock != nil {
		key := r.event.Repository.String() + ":" + r.decision.Branch.String()
		// Scheduled runs reuse the branch head sha and are never deduplicated.
		var dedupe types.CommitSHA
		if r.event.Kind == model.EventPush {
			dedupe = r.decision.CommitSHA
		}
		release, err := uc.deps.Lock.Acquire(ctx, key, dedupe)
		if err != nil {
			return goerr.Wrap(err, "failed to lock branch", goerr.V("key", key))
		}
		if release == nil {
			r.report.Skip = model.SkipAlreadyProcessed
			r.report.Transit(model.StateDone)
			logger.Info("Commit already processed on this branch", "sha", r.decision.CommitSHA.Short())
			return nil
		}
		defer func() {
			succeeded := r.report.State == model.StateDone && r.report.Skip == model.SkipNone
			// the run context may be past its deadline
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if err := release(releaseCtx, succeeded); err != nil {
				logger.Warn("Failed to release branch lock", "key", key, "error", err)
			}
		}()
	}

	// Feedstock must exist for any action
	feedstock, err := uc.deps.GitHub.GetRepository(ctx, r.event.Repository.Feedstock())
	if err != nil {
		if goerr.HasTag(err, types.ErrTagNotFound) {
			return goerr.Wrap(err, "feedstock repository not found",
				goerr.V("feedstock", r.event.Repository.Feedstock()),
				goerr.T(types.ErrTagPrecondition),
			)
		}
		return goerr.Wrap(err, "failed to look up feedstock repository")
	}
	r.feedstock = feedstock

	if r.decision.Release {
		if r.decision.Branch != uc.cfg.ReleaseBranch {
			return goerr.New("releases are only cut from the release branch",
				goerr.V("branch", r.decision.Branch),
				goerr.V("release_branch", uc.cfg.ReleaseBranch),
				goerr.T(types.ErrTagPrecondition),
			)
		}
		r.report.Transit(model.StateReleasePending)
	} else {
		r.report.Transit(model.StateRerenderOnly)
	}

	if err := uc.prepareWorkspace(ctx, r); err != nil {
		return err
	}
	defer uc.cleanupWorkspace(ctx, r)

	if err := uc.cloneFeedstock(ctx, r); err != nil {
		return err
	}

	var rerender *interfaces.RerenderResult
	if r.decision.Rerender {
		if rerender, err = uc.deps.Rerenderer.Rerender(ctx, r.feedstock.LocalPath); err != nil {
			return goerr.Wrap(err, "failed to rerender feedstock", goerr.V("repo", r.feedstock.Name))
		}
		r.report.RerenderMessage = rerender.CommitMessage
	}

	if !r.decision.Release {
		return uc.publishRerender(ctx, r, rerender)
	}

	if rerender != nil && rerender.CommitMessage != "" {
		if err := uc.commitRerender(ctx, r, rerender.CommitMessage); err != nil {
			return err
		}
	}

	if err := uc.reconcile(ctx, r); err != nil {
		return err
	}
	r.report.Transit(model.StateReconciled)

	if err := uc.publishRelease(ctx, r); err != nil {
		return err
	}
	return nil
}

// publishRerender handles the RerenderOnly branch
func (uc *releaseUseCase) publishRerender(ctx context.Context, r *run, rerender *interfaces.RerenderResult) error {
	logger := ctxlog.From(ctx)

	if rerender == nil || rerender.CommitMessage == "" {
		logger.Info("Feedstock already up to date, nothing to publish", "repo", r.feedstock.Name)
		r.report.Transit(model.StateDone)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "deadline reached before publishing", goerr.T(types.ErrTagDeadline))
	}

	if ok, err := uc.confirm(ctx, r, "Push rerendered feedstock "+r.feedstock.Name.String()+"?"); err != nil || !ok {
		return err
	}

	if err := uc.deps.Publisher.Publish(ctx, r.feedstock, uc.feedstockBranch(r), rerender.CommitMessage); err != nil {
		return goerr.Wrap(err, "failed to publish feedstock", goerr.V("repo", r.feedstock.Name))
	}
	r.report.Published = append(r.report.Published, r.feedstock.Name)
	r.report.Transit(model.StatePublished)
	r.report.Transit(model.StateDone)
	return nil
}

// reconcile reads both versions, bumps the project and rewrites the recipe
func (uc *releaseUseCase) reconcile(ctx context.Context, r *run) error {
	logger := ctxlog.From(ctx)

	project, err := uc.deps.GitHub.GetRepository(ctx, r.event.Repository)
	if err != nil {
		return goerr.Wrap(err, "failed to look up project repository", goerr.T(types.ErrTagPrecondition))
	}
	project.LocalPath = filepath.Join(r.dir, "project")
	r.project = project

	if err := uc.clone(ctx, project, r.decision.Branch); err != nil {
		return err
	}

	prev, err := uc.deps.Versions.Read(project.LocalPath)
	if err != nil {
		return goerr.Wrap(err, "failed to read project version")
	}
	r.report.PreviousVersion = prev.String()

	recipePath := filepath.Join(r.feedstock.LocalPath, uc.cfg.RecipeFile)
	prevMD, err := uc.deps.Metadata.Read(recipePath, model.MetadataKeys)
	if err != nil {
		return goerr.Wrap(err, "failed to read feedstock metadata")
	}
	r.report.PreviousMetadata = prevMD

	if feedstockVersion := normalizeOrRaw(prevMD.Version()); feedstockVersion != prev.String() {
		return goerr.New("feedstock version does not match project version, fix the feedstock manually",
			goerr.V("feedstock_version", prevMD.Version()),
			goerr.V("project_version", prev.String()),
			goerr.T(types.ErrTagConsistency),
		)
	}

	kind := prev.BumpKind()
	logger.Info("Bumping project version", "kind", kind, "current", prev.String())
	if err := uc.deps.Bumper.Bump(ctx, project.LocalPath, kind); err != nil {
		return goerr.Wrap(err, "failed to bump project version", goerr.V("kind", kind))
	}

	next, err := uc.deps.Versions.Read(project.LocalPath)
	if err != nil {
		return goerr.Wrap(err, "failed to re-read project version")
	}
	if next == prev {
		return goerr.New("version bump did not change the project version",
			goerr.V("version", prev.String()),
			goerr.V("kind", kind),
			goerr.T(types.ErrTagConsistency),
		)
	}
	r.report.NewVersion = next.String()

	var gitRev string
	if uc.cfg.GitRevSource == types.GitRevFromCommit {
		gitRev = r.decision.CommitSHA.String()
	}
	nextMD, err := prevMD.Next(next.String(), gitRev)
	if err != nil {
		return goerr.Wrap(err, "failed to compute feedstock metadata")
	}

	if err := uc.deps.Metadata.Write(ctx, recipePath, nextMD.Substitutions()); err != nil {
		return goerr.Wrap(err, "failed to write feedstock metadata", goerr.V("path", recipePath))
	}
	r.report.NewMetadata = nextMD

	logger.Info("Reconciled versions",
		"from", prev.String(),
		"to", next.String(),
		"build", nextMD.Build(),
		"git_rev", nextMD.GitRev(),
	)
	return nil
}

// publishRelease pushes the feedstock, then the project. The first failure
// halts the run, which can leave the feedstock pushed and the project not.
func (uc *releaseUseCase) publishRelease(ctx context.Context, r *run) error {
	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "deadline reached before publishing", goerr.T(types.ErrTagDeadline))
	}

	if ok, err := uc.confirm(ctx, r, "Push release "+r.report.NewVersion+" to "+r.feedstock.Name.String()+" and "+r.project.Name.String()+"?"); err != nil || !ok {
		return err
	}

	targets := []struct {
		repo   *model.RepositoryHandle
		branch types.BranchName
	}{
		{repo: r.feedstock, branch: uc.feedstockBranch(r)},
		{repo: r.project, branch: r.decision.Branch},
	}

	for _, target := range targets {
		if err := uc.deps.Publisher.Publish(ctx, target.repo, target.branch, r.decision.CommitMessage); err != nil {
			return goerr.Wrap(err, "failed to publish repository",
				goerr.V("repo", target.repo.Name),
				goerr.V("published", r.report.Published),
			)
		}
		r.report.Published = append(r.report.Published, target.repo.Name)
	}

	r.report.Transit(model.StatePublished)
	r.report.Transit(model.StateDone)
	return nil
}

// confirm asks the operator in test mode. A refusal ends the run as a skip.
func (uc *releaseUseCase) confirm(ctx context.Context, r *run, question string) (bool, error) {
	if uc.deps.Confirmer == nil {
		return true, nil
	}

	ok, err := uc.deps.Confirmer.Confirm(ctx, question)
	if err != nil {
		return false, goerr.Wrap(err, "failed to get confirmation")
	}
	if !ok {
		ctxlog.From(ctx).Info("Publishing declined by operator")
		r.report.Skip = model.SkipNotConfirmed
		r.report.Transit(model.StateDone)
	}
	return ok, nil
}

func (uc *releaseUseCase) commitRerender(ctx context.Context, r *run, message string) error {
	if err := uc.deps.Git.StageAll(ctx, r.feedstock.LocalPath); err != nil {
		return goerr.Wrap(err, "failed to stage rerender output")
	}
	changed, err := uc.deps.Git.HasStagedChanges(ctx, r.feedstock.LocalPath)
	if err != nil {
		return goerr.Wrap(err, "failed to inspect rerender output")
	}
	if !changed {
		return nil
	}
	if err := uc.deps.Git.Commit(ctx, r.feedstock.LocalPath, message, uc.cfg.Identity); err != nil {
		return goerr.Wrap(err, "failed to commit rerender output")
	}
	return nil
}

func (uc *releaseUseCase) feedstockBranch(r *run) types.BranchName {
	if uc.cfg.FeedstockBranch != "" {
		return uc.cfg.FeedstockBranch
	}
	return r.decision.Branch
}

func (uc *releaseUseCase) cloneFeedstock(ctx context.Context, r *run) error {
	r.feedstock.LocalPath = filepath.Join(r.dir, "feedstock")
	return uc.clone(ctx, r.feedstock, uc.feedstockBranch(r))
}

func (uc *releaseUseCase) clone(ctx context.Context, repo *model.RepositoryHandle, branch types.BranchName) error {
	token, err := uc.cfg.Token(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to get clone token", goerr.V("repo", repo.Name))
	}
	remote, err := repo.AuthURL(token)
	if err != nil {
		return err
	}
	if err := uc.deps.Git.Clone(ctx, remote, repo.LocalPath, branch); err != nil {
		return goerr.Wrap(err, "failed to clone repository",
			goerr.V("repo", repo.Name),
			goerr.V("branch", branch),
			goerr.T(types.ErrTagExternal),
		)
	}
	if err := uc.deps.Git.Checkout(ctx, repo.LocalPath, branch); err != nil {
		return goerr.Wrap(err, "failed to checkout branch",
			goerr.V("repo", repo.Name),
			goerr.V("branch", branch),
			goerr.T(types.ErrTagExternal),
		)
	}
	ctxlog.From(ctx).Info("Cloned repository", "repo", repo.Name, "branch", branch, "path", repo.LocalPath)
	return nil
}

func (uc *releaseUseCase) prepareWorkspace(ctx context.Context, r *run) error {
	r.dir = filepath.Join(uc.cfg.Workspace, "herder-"+r.report.ID.String())
	if err := os.MkdirAll(r.dir, 0700); err != nil {
		return goerr.Wrap(err, "failed to create run workspace", goerr.V("path", r.dir))
	}
	ctxlog.From(ctx).Debug("Created run workspace", "path", r.dir)
	return nil
}

func (uc *releaseUseCase) cleanupWorkspace(ctx context.Context, r *run) {
	logger := ctxlog.From(ctx)
	if uc.cfg.KeepWorkspace {
		logger.Info("Keeping run workspace", "path", r.dir)
		return
	}
	if err := os.RemoveAll(r.dir); err != nil {
		logger.Warn("Failed to clean up run workspace", "path", r.dir, "error", err)
		return
	}
	logger.Debug("Cleaned up run workspace", "path", r.dir)
}

// finish logs the report and hands it to the optional notifier and archive.
// Their failures never change the outcome of the run.
func (uc *releaseUseCase) finish(ctx context.Context, report *model.RunReport) {
	logger := ctxlog.From(ctx)
	logger.Info("Release run finished",
		"state", report.State,
		"skip", report.Skip,
		"history", report.History,
		"previous_version", report.PreviousVersion,
		"new_version", report.NewVersion,
		"published", report.Published,
		"duration", report.EndedAt.Sub(report.StartedAt).String(),
	)

	// the run context may be cancelled by now
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if uc.deps.Notifier != nil {
		if err := uc.deps.Notifier.Notify(ctx, report); err != nil {
			logger.Warn("Failed to send notification", "error", err)
		}
	}
	if uc.deps.Reports != nil {
		if err := uc.deps.Reports.Put(ctx, report); err != nil {
			logger.Warn("Failed to archive run report", "error", err)
		}
	}
}

func normalizeOrRaw(s string) string {
	if v, err := model.NormalizeVersion(s); err == nil {
		return v
	}
	return s
}
