package git

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// Client runs the git binary against local working copies
type Client struct {
	binary  string
	secrets []string
}

var _ interfaces.GitClient = (*Client)(nil)

// Option configures Client
type Option func(*Client)

// WithBinary overrides the git executable
func WithBinary(path string) Option {
	return func(c *Client) {
		c.binary = path
	}
}

// WithSecret registers a string that must never appear in returned errors
func WithSecret(secret string) Option {
	return func(c *Client) {
		if secret != "" {
			c.secrets = append(c.secrets, secret)
		}
	}
}

// New creates a git client
func New(opts ...Option) *Client {
	c := &Client{binary: "git"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clone clones remoteURL into localPath with branch checked out
func (c *Client) Clone(ctx context.Context, remoteURL, localPath string, branch types.BranchName) error {
	args := []string{"clone", "--quiet"}
	if branch != "" {
		args = append(args, "--branch", branch.String())
	}
	args = append(args, remoteURL, localPath)

	if _, err := c.run(ctx, "", args...); err != nil {
		return goerr.Wrap(err, "failed to clone repository", goerr.V("path", localPath), goerr.V("branch", branch))
	}
	return nil
}

// Checkout switches the working copy to branch
func (c *Client) Checkout(ctx context.Context, localPath string, branch types.BranchName) error {
	if _, err := c.run(ctx, localPath, "checkout", "--quiet", branch.String()); err != nil {
		return goerr.Wrap(err, "failed to checkout branch", goerr.V("path", localPath), goerr.V("branch", branch))
	}
	return nil
}

// StageAll stages every modification, addition and deletion
func (c *Client) StageAll(ctx context.Context, localPath string) error {
	if _, err := c.run(ctx, localPath, "add", "--all"); err != nil {
		return goerr.Wrap(err, "failed to stage changes", goerr.V("path", localPath))
	}
	return nil
}

// HasStagedChanges reports whether the index differs from HEAD
func (c *Client) HasStagedChanges(ctx context.Context, localPath string) (bool, error) {
	_, err := c.run(ctx, localPath, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, goerr.Wrap(err, "failed to inspect index", goerr.V("path", localPath))
}

// Commit records the index under identity
func (c *Client) Commit(ctx context.Context, localPath, message string, identity model.Identity) error {
	args := []string{
		"-c", "user.name=" + identity.Name,
		"-c", "user.email=" + identity.Email,
		"commit", "--quiet", "-m", message,
	}
	if _, err := c.run(ctx, localPath, args...); err != nil {
		return goerr.Wrap(err, "failed to commit", goerr.V("path", localPath))
	}
	return nil
}

// Push pushes to remoteURL. With All every local branch is pushed; otherwise
// opts.Branch is pushed, together with tags when opts.Tags is set.
func (c *Client) Push(ctx context.Context, localPath, remoteURL string, opts model.PushOptions) error {
	args := []string{"push", "--quiet"}
	if opts.All {
		args = append(args, "--all")
	}
	if opts.Force {
		args = append(args, "--force")
	}
	args = append(args, remoteURL)
	if !opts.All && opts.Branch != "" {
		args = append(args, opts.Branch.String())
	}
	if opts.Tags {
		args = append(args, "--tags")
	}

	if _, err := c.run(ctx, localPath, args...); err != nil {
		return goerr.Wrap(err, "failed to push", goerr.V("path", localPath), goerr.V("branch", opts.Branch))
	}
	return nil
}

func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	logger := ctxlog.From(ctx)

	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Running git", "dir", dir, "args", c.redact(strings.Join(args, " ")))

	if err := cmd.Run(); err != nil {
		return "", goerr.Wrap(err, "git command failed",
			goerr.V("args", c.redact(strings.Join(args, " "))),
			goerr.V("stderr", c.redact(strings.TrimSpace(stderr.String()))),
			goerr.T(types.ErrTagExternal),
		)
	}

	return stdout.String(), nil
}

// credentialInURL matches the userinfo part of an http(s) remote
var credentialInURL = regexp.MustCompile(`(https?://)[^/@\s]+@`)

func (c *Client) redact(s string) string {
	for _, secret := range c.secrets {
		s = strings.ReplaceAll(s, secret, "***")
	}
	return credentialInURL.ReplaceAllString(s, "${1}***@")
}
