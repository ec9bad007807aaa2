package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

type publisher struct {
	gitClient interfaces.GitClient
	tokens    interfaces.TokenSource
	identity  model.Identity
}

// NewPublisher creates the commit-and-push step. identity is the commit
// author; a nil tokens pushes without credentials.
func NewPublisher(gitClient interfaces.GitClient, tokens interfaces.TokenSource, identity model.Identity) interfaces.PublishUseCase {
	if tokens == nil {
		tokens = interfaces.StaticToken("")
	}
	return &publisher{
		gitClient: gitClient,
		tokens:    tokens,
		identity:  identity,
	}
}

// Publish stages everything in the working copy, commits it when anything is
// staged, force-pushes all branches and then pushes branch with tags. There
// is no retry: the first failure is returned.
func (p *publisher) Publish(ctx context.Context, repo *model.RepositoryHandle, branch types.BranchName, commitMessage string) error {
	logger := ctxlog.From(ctx).With("repo", repo.Name, "branch", branch)

	if err := p.gitClient.StageAll(ctx, repo.LocalPath); err != nil {
		return goerr.Wrap(err, "failed to stage changes", goerr.V("repo", repo.Name))
	}

	changed, err := p.gitClient.HasStagedChanges(ctx, repo.LocalPath)
	if err != nil {
		return goerr.Wrap(err, "failed to inspect working copy", goerr.V("repo", repo.Name))
	}

	if changed {
		if err := p.gitClient.Commit(ctx, repo.LocalPath, commitMessage, p.identity); err != nil {
			return goerr.Wrap(err, "failed to commit", goerr.V("repo", repo.Name))
		}
		logger.Info("Committed changes", "message", commitMessage, "author", p.identity.Name)
	} else {
		logger.Info("Nothing new to commit, pushing existing history")
	}

	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "deadline reached before push",
			goerr.V("repo", repo.Name),
			goerr.T(types.ErrTagDeadline),
		)
	}

	token, err := p.tokens(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to get push token", goerr.V("repo", repo.Name))
	}
	remote, err := repo.AuthURL(token)
	if err != nil {
		return err
	}

	if err := p.gitClient.Push(ctx, repo.LocalPath, remote, model.PushOptions{All: true, Force: true}); err != nil {
		return goerr.Wrap(err, "failed to push all branches",
			goerr.V("repo", repo.Name),
			goerr.T(types.ErrTagExternal),
		)
	}
	if err := p.gitClient.Push(ctx, repo.LocalPath, remote, model.PushOptions{Branch: branch, Tags: true}); err != nil {
		return goerr.Wrap(err, "failed to push branch with tags",
			goerr.V("repo", repo.Name),
			goerr.V("branch", branch),
			goerr.T(types.ErrTagExternal),
		)
	}

	logger.Info("Pushed repository")
	return nil
}
