package types

import "strings"

// Version is the herder build version, overridden via -ldflags.
var Version = "dev"

// RepoName is a full GitHub repository name such as "owner/name"
type RepoName string

func (x RepoName) String() string { return string(x) }

// Owner returns the owner part of the repository name
func (x RepoName) Owner() string {
	owner, _, _ := strings.Cut(string(x), "/")
	return owner
}

// Name returns the repository part of the repository name
func (x RepoName) Name() string {
	_, name, _ := strings.Cut(string(x), "/")
	return name
}

// Valid reports whether the name has the "owner/name" shape
func (x RepoName) Valid() bool {
	owner, name, ok := strings.Cut(string(x), "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}

// Feedstock returns the name of the companion feedstock repository
func (x RepoName) Feedstock() RepoName {
	return x + "-feedstock"
}

// BranchName is a git branch name without the refs/heads/ prefix
type BranchName string

func (x BranchName) String() string { return string(x) }

// CommitSHA is a git commit hash
type CommitSHA string

func (x CommitSHA) String() string { return string(x) }

// Short returns the first 7 characters of the hash
func (x CommitSHA) Short() string {
	if len(x) > 7 {
		return string(x[:7])
	}
	return string(x)
}

// GitHubToken is an access token. Values of this type are redacted in logs.
type GitHubToken string

// BumpKind is the argument handed to the version bumper
type BumpKind string

const (
	BumpDev   BumpKind = "dev"
	BumpPatch BumpKind = "patch"
)

// GitRevSource selects what is written into the git_rev metadata key
type GitRevSource string

const (
	GitRevFromVersion GitRevSource = "version"
	GitRevFromCommit  GitRevSource = "commit"
)

// Validate checks the source is one of the known values
func (x GitRevSource) Validate() error {
	switch x {
	case GitRevFromVersion, GitRevFromCommit:
		return nil
	default:
		return ErrInvalidGitRevSource
	}
}

// RunID identifies one workflow run
type RunID string

func (x RunID) String() string { return string(x) }
