package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/types"
	githubinfra "github.com/m-mizutani/herder/pkg/infra/github"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub configuration
type GitHub struct {
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKey     string
	BaseURL        string
	WebhookSecret  string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub access token for API calls and git pushes",
			Destination: &c.Token,
			Sources:     cli.EnvVars("HERDER_GITHUB_TOKEN", "GH_TOKEN"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID, used instead of a token",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("HERDER_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-app-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("HERDER_GITHUB_APP_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-app-private-key",
			Usage:       "GitHub App private key (PEM content or file path)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("HERDER_GITHUB_APP_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-api-url",
			Usage:       "GitHub API base URL",
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("HERDER_GITHUB_API_URL", "GITHUB_API_URL"),
		},
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret, required with --serve",
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("HERDER_GITHUB_WEBHOOK_SECRET"),
		},
	}
}

func (c *GitHub) useApp() bool {
	return c.AppID != 0 || c.InstallationID != 0 || c.PrivateKey != ""
}

// Validate checks exactly one complete credential is configured
func (c *GitHub) Validate() error {
	if c.useApp() {
		if c.AppID == 0 || c.InstallationID == 0 || c.PrivateKey == "" {
			return goerr.New("GitHub App requires app id, installation id and private key")
		}
		return nil
	}
	if c.Token == "" {
		return goerr.New("GitHub token or GitHub App credentials are required")
	}
	return nil
}

func (c *GitHub) privateKey() ([]byte, error) {
	if _, err := os.Stat(c.PrivateKey); err == nil {
		key, err := os.ReadFile(c.PrivateKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read GitHub App private key", goerr.V("path", c.PrivateKey))
		}
		return key, nil
	}
	return []byte(c.PrivateKey), nil
}

// Configure returns the API client and the token source used for git over
// https. Under App auth the installation token is refreshed on demand.
func (c *GitHub) Configure() (interfaces.GitHubClient, interfaces.TokenSource, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	var opts []githubinfra.Option
	if c.BaseURL != "" {
		opts = append(opts, githubinfra.WithBaseURL(c.BaseURL))
	}

	if !c.useApp() {
		client, err := githubinfra.NewTokenClient(types.GitHubToken(c.Token), opts...)
		if err != nil {
			return nil, nil, err
		}
		return client, interfaces.StaticToken(types.GitHubToken(c.Token)), nil
	}

	key, err := c.privateKey()
	if err != nil {
		return nil, nil, err
	}
	return githubinfra.NewClient(c.AppID, c.InstallationID, key, opts...)
}
