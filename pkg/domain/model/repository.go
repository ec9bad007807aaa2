package model

import (
	"net/url"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// RepositoryHandle identifies a remote repository and its working copy for one run
type RepositoryHandle struct {
	Name          types.RepoName
	CloneURL      string
	DefaultBranch types.BranchName
	LocalPath     string
}

// AuthURL returns the clone URL with token embedded for https remotes.
// Other remotes (local paths, ssh) are returned unchanged.
func (x *RepositoryHandle) AuthURL(token types.GitHubToken) (string, error) {
	if token == "" {
		return x.CloneURL, nil
	}
	u, err := url.Parse(x.CloneURL)
	if err != nil {
		return "", goerr.Wrap(err, "invalid clone URL", goerr.V("repo", x.Name))
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return x.CloneURL, nil
	}
	u.User = url.UserPassword("x-access-token", string(token))
	return u.String(), nil
}

// Identity is the author/committer used for bot commits
type Identity struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// PushOptions mirrors the flags of a git push
type PushOptions struct {
	All    bool
	Force  bool
	Tags   bool
	Branch types.BranchName
}
