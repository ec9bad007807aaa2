package usecase

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

const (
	DefaultReleaseTag       = "ci"
	DefaultRerenderTag      = "rerender"
	DefaultRecencyThreshold = 24 * time.Hour
	DefaultNightlyMessage   = "NIGHTLY: automated nightly release of {repo} ({date})"

	// NightlyDispatchAction turns a repository_dispatch into a scheduled run
	NightlyDispatchAction = "nightly"
)

var (
	bracketTag = regexp.MustCompile(`\[(.*?)\]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// ClassifierConfig is the tag and schedule policy of the classifier
type ClassifierConfig struct {
	ReleaseTag       string
	RerenderTag      string
	ReleaseBranch    types.BranchName
	RecencyThreshold time.Duration
	NightlyMessage   string
}

func (x *ClassifierConfig) setDefaults() {
	if x.ReleaseTag == "" {
		x.ReleaseTag = DefaultReleaseTag
	}
	if x.RerenderTag == "" {
		x.RerenderTag = DefaultRerenderTag
	}
	if x.ReleaseBranch == "" {
		x.ReleaseBranch = DefaultReleaseBranch
	}
	if x.RecencyThreshold <= 0 {
		x.RecencyThreshold = DefaultRecencyThreshold
	}
	if x.NightlyMessage == "" {
		x.NightlyMessage = DefaultNightlyMessage
	}
	x.ReleaseTag = strings.ToLower(x.ReleaseTag)
	x.RerenderTag = strings.ToLower(x.RerenderTag)
}

// Classifier turns an event into a release decision
type Classifier struct {
	githubClient interfaces.GitHubClient
	cfg          ClassifierConfig
	now          func() time.Time
}

// ClassifierOption configures Classifier
type ClassifierOption func(*Classifier)

// WithClassifierClock replaces time.Now
func WithClassifierClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) {
		c.now = now
	}
}

// NewClassifier creates a classifier
func NewClassifier(githubClient interfaces.GitHubClient, cfg ClassifierConfig, opts ...ClassifierOption) *Classifier {
	cfg.setDefaults()
	c := &Classifier{
		githubClient: githubClient,
		cfg:          cfg,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SupportedTags returns the recognized commit tags
func (c *Classifier) SupportedTags() []string {
	return []string{c.cfg.ReleaseTag, c.cfg.RerenderTag}
}

// Classify decides what a run should do for event. A classification without a
// decision is a normal skip; errors come only from platform lookups.
func (c *Classifier) Classify(ctx context.Context, event *model.Event) (*model.Classification, error) {
	logger := ctxlog.From(ctx).With(
		"event_kind", event.Kind,
		"repository", event.Repository,
		"ref_type", event.RefType,
		"ref_name", event.RefName,
	)

	if !event.OnBranch() {
		logger.Info("Event is not on a branch, nothing to do")
		return &model.Classification{Skip: model.SkipNotBranch}, nil
	}

	switch event.Kind {
	case model.EventPush:
		return c.classifyPush(ctx, event)

	case model.EventScheduled:
		return c.classifyScheduled(ctx, event)

	case model.EventDispatch:
		if event.DispatchAction == NightlyDispatchAction {
			return c.classifyScheduled(ctx, event)
		}
		logger.Info("Ignoring repository_dispatch action", "action", event.DispatchAction)
		return &model.Classification{Skip: model.SkipUnsupportedKind}, nil

	default:
		logger.Info("Ignoring unsupported event kind")
		return &model.Classification{Skip: model.SkipUnsupportedKind}, nil
	}
}

func (c *Classifier) classifyPush(ctx context.Context, event *model.Event) (*model.Classification, error) {
	logger := ctxlog.From(ctx)

	commit, err := c.githubClient.GetCommit(ctx, event.Repository, event.CommitSHA)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get pushed commit",
			goerr.V("repo", event.Repository),
			goerr.V("sha", event.CommitSHA),
		)
	}

	directive := ParseTagDirective(commit.Message, c.SupportedTags())
	if !directive.Found {
		logger.Info("No tag detected in commit message", "sha", event.CommitSHA.Short())
		return &model.Classification{Skip: model.SkipNoTag}, nil
	}
	if !directive.Recognized {
		logger.Info("No supported tag detected",
			"tag", directive.Tag,
			"supported", c.SupportedTags(),
			"sha", event.CommitSHA.Short(),
		)
		return &model.Classification{Skip: model.SkipUnrecognizedTag}, nil
	}

	decision := &model.ReleaseDecision{
		Rerender:      true,
		Release:       directive.Tag == c.cfg.ReleaseTag,
		CommitMessage: directive.CleanedMessage,
		Branch:        event.RefName,
		CommitSHA:     event.CommitSHA,
	}

	logger.Info("Push classified",
		"tag", directive.Tag,
		"rerender", decision.Rerender,
		"release", decision.Release,
		"commit_message", decision.CommitMessage,
	)
	return &model.Classification{Decision: decision}, nil
}

func (c *Classifier) classifyScheduled(ctx context.Context, event *model.Event) (*model.Classification, error) {
	logger := ctxlog.From(ctx)
	branch := c.cfg.ReleaseBranch

	b, err := c.githubClient.GetBranch(ctx, event.Repository, branch)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get nightly branch",
			goerr.V("repo", event.Repository),
			goerr.V("branch", branch),
		)
	}

	now := c.now().UTC()
	age := now.Sub(b.LastCommit.Date)
	recent := age < c.cfg.RecencyThreshold

	decision := &model.ReleaseDecision{
		Rerender:      true,
		Release:       recent,
		CommitMessage: c.nightlyMessage(event.Repository, now),
		Branch:        branch,
		CommitSHA:     b.LastCommit.SHA,
	}

	logger.Info("Scheduled run classified",
		"branch", branch,
		"last_commit", b.LastCommit.Date.Format(time.RFC3339),
		"age", age.String(),
		"threshold", c.cfg.RecencyThreshold.String(),
		"release", decision.Release,
	)
	return &model.Classification{Decision: decision}, nil
}

func (c *Classifier) nightlyMessage(repo types.RepoName, now time.Time) string {
	return strings.NewReplacer(
		"{repo}", repo.String(),
		"{date}", now.Format("2006-01-02"),
	).Replace(c.cfg.NightlyMessage)
}

// ParseTagDirective extracts the first bracketed tag of message. When the tag
// is supported, the bracket is removed, whitespace collapsed and the
// uppercased tag prefixed: "fix bug [ci]" becomes "CI: fix bug".
func ParseTagDirective(message string, supported []string) model.TagDirective {
	m := bracketTag.FindStringSubmatch(message)
	if m == nil {
		return model.TagDirective{}
	}

	raw := m[1]
	directive := model.TagDirective{
		Tag:   strings.ToLower(raw),
		Found: true,
	}

	for _, s := range supported {
		if directive.Tag == strings.ToLower(s) {
			directive.Recognized = true
			break
		}
	}
	if !directive.Recognized {
		return directive
	}

	cleaned := strings.ReplaceAll(message, "["+raw+"]", "")
	cleaned = strings.TrimSpace(whitespace.ReplaceAllString(cleaned, " "))
	directive.CleanedMessage = strings.ToUpper(raw) + ": " + cleaned
	return directive
}
