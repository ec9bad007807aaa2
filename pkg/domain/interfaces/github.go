package interfaces

import (
	"context"

	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// GitHubClient defines operations for interacting with GitHub API
type GitHubClient interface {
	// GetRepository returns the repository handle. A missing repository is
	// reported with types.ErrTagNotFound.
	GetRepository(ctx context.Context, name types.RepoName) (*model.RepositoryHandle, error)

	// GetCommit returns the message, author and author date of a commit
	GetCommit(ctx context.Context, name types.RepoName, sha types.CommitSHA) (*model.Commit, error)

	// GetBranch returns the branch with its most recent commit
	GetBranch(ctx context.Context, name types.RepoName, branch types.BranchName) (*model.Branch, error)
}

// TokenSource returns the token used for git over https. Implementations
// backed by a GitHub App refresh the installation token as it nears expiry,
// so callers fetch it once per clone or push.
type TokenSource func(ctx context.Context) (types.GitHubToken, error)

// StaticToken returns a TokenSource for a long-lived token. An empty token
// means unauthenticated remotes.
func StaticToken(token types.GitHubToken) TokenSource {
	return func(context.Context) (types.GitHubToken, error) {
		return token, nil
	}
}
