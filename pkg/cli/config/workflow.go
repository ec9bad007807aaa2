package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
	"github.com/m-mizutani/herder/pkg/infra/recipe"
	"github.com/m-mizutani/herder/pkg/infra/tool"
	"github.com/m-mizutani/herder/pkg/usecase"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

var (
	defaultIdentity     = model.Identity{Name: "herder-bot", Email: "herder-bot@users.noreply.github.com"}
	defaultTestIdentity = model.Identity{Name: "herder-test", Email: "herder-test@users.noreply.github.com"}
)

// MetadataRule overrides how one metadata key is found and rendered in the recipe
type MetadataRule struct {
	Key     string `toml:"key"`
	Pattern string `toml:"pattern"`
	Render  string `toml:"render"`
}

// Policy is the workflow policy. It is read from the TOML file given with
// --config; flags override file values.
type Policy struct {
	ReleaseTag       string         `toml:"release_tag"`
	RerenderTag      string         `toml:"rerender_tag"`
	ReleaseBranch    string         `toml:"release_branch"`
	FeedstockBranch  string         `toml:"feedstock_branch"`
	RecencyThreshold string         `toml:"recency_threshold"`
	NightlyMessage   string         `toml:"nightly_message"`
	VersionFile      string         `toml:"version_file"`
	RecipeFile       string         `toml:"recipe_file"`
	GitRevSource     string         `toml:"git_rev_source"`
	RerenderCommand  string         `toml:"rerender_command"`
	BumpCommand      string         `toml:"bump_command"`
	Identity         model.Identity `toml:"identity"`
	TestIdentity     model.Identity `toml:"test_identity"`
	Metadata         []MetadataRule `toml:"metadata"`
}

// Workflow holds the policy file location and the flag overrides
type Workflow struct {
	ConfigFile string
	flags      Policy
}

// Flags returns CLI flags for workflow configuration
func (c *Workflow) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Workflow policy file (TOML)",
			Destination: &c.ConfigFile,
			Sources:     cli.EnvVars("HERDER_CONFIG"),
		},
		&cli.StringFlag{
			Name:        "release-branch",
			Usage:       "Branch releases are cut from (default: develop)",
			Destination: &c.flags.ReleaseBranch,
			Sources:     cli.EnvVars("HERDER_RELEASE_BRANCH"),
		},
		&cli.StringFlag{
			Name:        "feedstock-branch",
			Usage:       "Feedstock branch to update (default: the event branch)",
			Destination: &c.flags.FeedstockBranch,
			Sources:     cli.EnvVars("HERDER_FEEDSTOCK_BRANCH"),
		},
		&cli.StringFlag{
			Name:        "recency-threshold",
			Usage:       "Scheduled runs release when the last commit is younger than this (default: 24h)",
			Destination: &c.flags.RecencyThreshold,
			Sources:     cli.EnvVars("HERDER_RECENCY_THRESHOLD"),
		},
		&cli.StringFlag{
			Name:        "version-file",
			Usage:       "Project version file (default: version)",
			Destination: &c.flags.VersionFile,
			Sources:     cli.EnvVars("HERDER_VERSION_FILE"),
		},
		&cli.StringFlag{
			Name:        "recipe-file",
			Usage:       "Feedstock recipe file (default: recipe/meta.yaml)",
			Destination: &c.flags.RecipeFile,
			Sources:     cli.EnvVars("HERDER_RECIPE_FILE"),
		},
		&cli.StringFlag{
			Name:        "git-rev-source",
			Usage:       "Value written into git_rev: version or commit (default: version)",
			Destination: &c.flags.GitRevSource,
			Sources:     cli.EnvVars("HERDER_GIT_REV_SOURCE"),
		},
		&cli.StringFlag{
			Name:        "rerender-command",
			Usage:       "Packaging rerender command",
			Destination: &c.flags.RerenderCommand,
			Sources:     cli.EnvVars("HERDER_RERENDER_COMMAND"),
		},
		&cli.StringFlag{
			Name:        "bump-command",
			Usage:       "Version bump command, {kind} is replaced by dev or patch (default: builtin)",
			Destination: &c.flags.BumpCommand,
			Sources:     cli.EnvVars("HERDER_BUMP_COMMAND"),
		},
	}
}

// Load reads the policy file, if any, and applies flag overrides
func (c *Workflow) Load() (*Policy, error) {
	var p Policy
	if c.ConfigFile != "" {
		raw, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", c.ConfigFile))
		}
		if err := toml.Unmarshal(raw, &p); err != nil {
			return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", c.ConfigFile))
		}
	}

	override(&p.ReleaseBranch, c.flags.ReleaseBranch)
	override(&p.FeedstockBranch, c.flags.FeedstockBranch)
	override(&p.RecencyThreshold, c.flags.RecencyThreshold)
	override(&p.VersionFile, c.flags.VersionFile)
	override(&p.RecipeFile, c.flags.RecipeFile)
	override(&p.GitRevSource, c.flags.GitRevSource)
	override(&p.RerenderCommand, c.flags.RerenderCommand)
	override(&p.BumpCommand, c.flags.BumpCommand)

	if p.Identity == (model.Identity{}) {
		p.Identity = defaultIdentity
	}
	if p.TestIdentity == (model.Identity{}) {
		p.TestIdentity = defaultTestIdentity
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks values that would otherwise fail in the middle of a run
func (p *Policy) Validate() error {
	if p.RecencyThreshold != "" {
		if _, err := time.ParseDuration(p.RecencyThreshold); err != nil {
			return goerr.Wrap(err, "invalid recency_threshold", goerr.V("value", p.RecencyThreshold))
		}
	}
	if p.GitRevSource != "" {
		if err := types.GitRevSource(p.GitRevSource).Validate(); err != nil {
			return goerr.Wrap(err, "invalid git_rev_source", goerr.V("value", p.GitRevSource))
		}
	}
	if _, err := p.MetadataRules(); err != nil {
		return err
	}
	return nil
}

// ClassifierConfig returns the tag and schedule policy
func (p *Policy) ClassifierConfig() usecase.ClassifierConfig {
	cfg := usecase.ClassifierConfig{
		ReleaseTag:     p.ReleaseTag,
		RerenderTag:    p.RerenderTag,
		ReleaseBranch:  types.BranchName(p.ReleaseBranch),
		NightlyMessage: p.NightlyMessage,
	}
	if d, err := time.ParseDuration(p.RecencyThreshold); err == nil {
		cfg.RecencyThreshold = d
	}
	return cfg
}

// ReleaseConfig returns the reconciler policy. testMode swaps the commit
// identity for the test identity.
func (p *Policy) ReleaseConfig(testMode bool) usecase.ReleaseConfig {
	cfg := usecase.ReleaseConfig{
		ReleaseBranch:   types.BranchName(p.ReleaseBranch),
		FeedstockBranch: types.BranchName(p.FeedstockBranch),
		RecipeFile:      p.RecipeFile,
		GitRevSource:    types.GitRevSource(p.GitRevSource),
		Identity:        p.Identity,
	}
	if testMode {
		cfg.Identity = p.TestIdentity
	}
	return cfg
}

// MetadataRules builds the recipe rule table. Keys not listed keep the
// default {%set KEY = "VALUE"%} rule.
func (p *Policy) MetadataRules() ([]recipe.Rule, error) {
	rules := recipe.DefaultRules()
	for _, m := range p.Metadata {
		key := model.MetadataKey(m.Key)
		switch key {
		case model.KeyVersion, model.KeyBuild, model.KeyGitRev:
		default:
			return nil, goerr.New("unknown metadata key", goerr.V("key", m.Key))
		}

		rule, err := recipe.NewRule(key, m.Pattern, m.Render)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Rerenderer returns the packaging rerender tool
func (p *Policy) Rerenderer() (interfaces.Rerenderer, error) {
	line := p.RerenderCommand
	if line == "" {
		line = tool.DefaultRerenderCommand
	}
	cmd, err := tool.ParseCommand(line)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid rerender command")
	}
	return tool.NewRerenderer(cmd), nil
}

// VersionStore returns the project version file
func (p *Policy) VersionStore() interfaces.VersionStore {
	return recipe.NewVersionFile(p.VersionFile)
}

// Bumper returns the configured bump command, or the builtin bumper
func (p *Policy) Bumper(versions interfaces.VersionStore) (interfaces.VersionBumper, error) {
	if p.BumpCommand == "" {
		return tool.NewBuiltinBumper(versions), nil
	}
	cmd, err := tool.ParseCommand(p.BumpCommand)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid bump command")
	}
	return tool.NewCommandBumper(cmd), nil
}
