package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

const defaultBaseURL = "https://api.github.com/"

type client struct {
	githubClient *github.Client
}

// Option configures the client
type Option func(*github.Client) (*github.Client, error)

// WithBaseURL points the client at another API endpoint (GitHub Enterprise, tests)
func WithBaseURL(baseURL string) Option {
	return func(c *github.Client) (*github.Client, error) {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, goerr.Wrap(err, "invalid GitHub API base URL", goerr.V("url", baseURL))
		}
		c.BaseURL = u
		return c, nil
	}
}

// NewClient creates a GitHub client with App authentication. The returned
// TokenSource shares the client's installation transport, which caches the
// installation token and mints a new one shortly before it expires.
func NewClient(appID, installationID int64, privateKey []byte, opts ...Option) (interfaces.GitHubClient, interfaces.TokenSource, error) {
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create GitHub App transport")
	}

	c, err := newClient(github.NewClient(&http.Client{Transport: itr}), opts...)
	if err != nil {
		return nil, nil, err
	}
	if u := c.githubClient.BaseURL.String(); u != defaultBaseURL {
		itr.BaseURL = strings.TrimSuffix(u, "/")
	}

	return c, installationTokenSource(itr, appID, installationID), nil
}

type tokenMinter interface {
	Token(ctx context.Context) (string, error)
}

func installationTokenSource(itr tokenMinter, appID, installationID int64) interfaces.TokenSource {
	return func(ctx context.Context) (types.GitHubToken, error) {
		token, err := itr.Token(ctx)
		if err != nil {
			return "", goerr.Wrap(err, "failed to get installation token",
				goerr.V("app_id", appID),
				goerr.V("installation_id", installationID),
				goerr.T(types.ErrTagExternal),
			)
		}
		return types.GitHubToken(token), nil
	}
}

// NewTokenClient creates a new GitHub client authenticated with an access token
func NewTokenClient(token types.GitHubToken, opts ...Option) (interfaces.GitHubClient, error) {
	return newClient(github.NewClient(nil).WithAuthToken(string(token)), opts...)
}

func newClient(gh *github.Client, opts ...Option) (*client, error) {
	for _, opt := range opts {
		var err error
		if gh, err = opt(gh); err != nil {
			return nil, err
		}
	}
	return &client{githubClient: gh}, nil
}

// GetRepository returns the repository handle. 404 is tagged ErrTagNotFound.
func (c *client) GetRepository(ctx context.Context, name types.RepoName) (*model.RepositoryHandle, error) {
	repo, resp, err := c.githubClient.Repositories.Get(ctx, name.Owner(), name.Name())
	if err != nil {
		return nil, wrapAPIError(err, resp, "failed to get repository", goerr.V("repo", name))
	}

	return &model.RepositoryHandle{
		Name:          types.RepoName(repo.GetFullName()),
		CloneURL:      repo.GetCloneURL(),
		DefaultBranch: types.BranchName(repo.GetDefaultBranch()),
	}, nil
}

// GetCommit returns the commit message and author date
func (c *client) GetCommit(ctx context.Context, name types.RepoName, sha types.CommitSHA) (*model.Commit, error) {
	commit, resp, err := c.githubClient.Repositories.GetCommit(ctx, name.Owner(), name.Name(), sha.String(), nil)
	if err != nil {
		return nil, wrapAPIError(err, resp, "failed to get commit", goerr.V("repo", name), goerr.V("sha", sha))
	}

	return toCommit(commit), nil
}

// GetBranch returns the branch and its most recent commit
func (c *client) GetBranch(ctx context.Context, name types.RepoName, branch types.BranchName) (*model.Branch, error) {
	b, resp, err := c.githubClient.Repositories.GetBranch(ctx, name.Owner(), name.Name(), branch.String(), 3)
	if err != nil {
		return nil, wrapAPIError(err, resp, "failed to get branch", goerr.V("repo", name), goerr.V("branch", branch))
	}

	return &model.Branch{
		Name:       types.BranchName(b.GetName()),
		LastCommit: *toCommit(b.GetCommit()),
	}, nil
}

func toCommit(rc *github.RepositoryCommit) *model.Commit {
	inner := rc.GetCommit()
	return &model.Commit{
		SHA:     types.CommitSHA(rc.GetSHA()),
		Message: inner.GetMessage(),
		Author:  inner.GetAuthor().GetName(),
		Date:    inner.GetAuthor().GetDate().UTC(),
	}
}

func wrapAPIError(err error, resp *github.Response, msg string, opts ...goerr.Option) error {
	var errResp *github.ErrorResponse
	notFound := (resp != nil && resp.StatusCode == http.StatusNotFound) ||
		(errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound)
	if notFound {
		opts = append(opts, goerr.T(types.ErrTagNotFound))
	} else {
		opts = append(opts, goerr.T(types.ErrTagExternal))
	}
	return goerr.Wrap(err, msg, opts...)
}
