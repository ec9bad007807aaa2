package types

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrTagPrecondition marks fatal precondition failures: missing feedstock,
	// unsupported branch, unparseable version, missing metadata key.
	ErrTagPrecondition = goerr.NewTag("precondition")

	// ErrTagConsistency marks feedstock/project disagreement and bumps that changed nothing.
	ErrTagConsistency = goerr.NewTag("consistency")

	// ErrTagExternal marks failures of subprocesses and remotes.
	ErrTagExternal = goerr.NewTag("external")

	// ErrTagNotFound is attached by the GitHub client when the API answers 404.
	ErrTagNotFound = goerr.NewTag("not_found")

	// ErrTagInvalidVersion marks version strings that do not parse.
	ErrTagInvalidVersion = goerr.NewTag("invalid_version")

	// ErrTagDeadline marks runs stopped by the overall timeout.
	ErrTagDeadline = goerr.NewTag("deadline")

	// ErrTagLocked marks a branch held by another run.
	ErrTagLocked = goerr.NewTag("locked")
)

var (
	ErrInvalidGitRevSource = goerr.New("git_rev source must be 'version' or 'commit'")
)
