package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
	"github.com/m-mizutani/herder/pkg/usecase"
)

var now = time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC)

func pushEvent(branch types.BranchName) *model.Event {
	return &model.Event{
		Kind:       model.EventPush,
		RefType:    model.RefTypeBranch,
		RefName:    branch,
		Repository: "owner/project",
		CommitSHA:  "0123456789abcdef",
	}
}

func scheduledEvent() *model.Event {
	return &model.Event{
		Kind:       model.EventScheduled,
		RefType:    model.RefTypeBranch,
		RefName:    "main",
		Repository: "owner/project",
	}
}

func commitWith(message string) *mockGitHubClient {
	return &mockGitHubClient{
		getCommitFunc: func(ctx context.Context, name types.RepoName, sha types.CommitSHA) (*model.Commit, error) {
			return &model.Commit{SHA: sha, Message: message}, nil
		},
	}
}

func branchCommittedAt(at time.Time) *mockGitHubClient {
	return &mockGitHubClient{
		getBranchFunc: func(ctx context.Context, name types.RepoName, branch types.BranchName) (*model.Branch, error) {
			return &model.Branch{
				Name:       branch,
				LastCommit: model.Commit{SHA: "feedface", Date: at},
			}, nil
		},
	}
}

func TestParseTagDirective(t *testing.T) {
	supported := []string{"ci", "rerender"}

	tests := []struct {
		name    string
		message string
		want    model.TagDirective
	}{
		{
			name:    "release tag",
			message: "fix bug [ci]",
			want: model.TagDirective{
				Tag:            "ci",
				Found:          true,
				Recognized:     true,
				CleanedMessage: "CI: fix bug",
			},
		},
		{
			name:    "tag case is preserved in the prefix",
			message: "[Rerender]   update   pins",
			want: model.TagDirective{
				Tag:            "rerender",
				Found:          true,
				Recognized:     true,
				CleanedMessage: "RERENDER: update pins",
			},
		},
		{
			name:    "whitespace is collapsed",
			message: "first line\n\nsecond\tline [ci]",
			want: model.TagDirective{
				Tag:            "ci",
				Found:          true,
				Recognized:     true,
				CleanedMessage: "CI: first line second line",
			},
		},
		{
			name:    "only the first bracket counts",
			message: "[wip] then [ci]",
			want: model.TagDirective{
				Tag:   "wip",
				Found: true,
			},
		},
		{
			name:    "no tag",
			message: "plain commit",
			want:    model.TagDirective{},
		},
		{
			name:    "empty brackets",
			message: "odd [] commit",
			want: model.TagDirective{
				Tag:   "",
				Found: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usecase.ParseTagDirective(tt.message, supported)
			gt.Value(t, got).Equal(tt.want)
		})
	}
}

func TestClassifier_Push(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		branch   types.BranchName
		wantSkip model.SkipReason
		want     *model.ReleaseDecision
	}{
		{
			name:    "ci tag releases",
			message: "fix bug [ci]",
			branch:  "develop",
			want: &model.ReleaseDecision{
				Rerender:      true,
				Release:       true,
				CommitMessage: "CI: fix bug",
				Branch:        "develop",
				CommitSHA:     "0123456789abcdef",
			},
		},
		{
			name:    "rerender tag only rerenders",
			message: "[rerender] bump pins",
			branch:  "feature",
			want: &model.ReleaseDecision{
				Rerender:      true,
				Release:       false,
				CommitMessage: "RERENDER: bump pins",
				Branch:        "feature",
				CommitSHA:     "0123456789abcdef",
			},
		},
		{
			name:     "no tag is skipped",
			message:  "refactor",
			branch:   "develop",
			wantSkip: model.SkipNoTag,
		},
		{
			name:     "unknown tag is skipped",
			message:  "[skip] refactor",
			branch:   "develop",
			wantSkip: model.SkipUnrecognizedTag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := usecase.NewClassifier(commitWith(tt.message), usecase.ClassifierConfig{})

			got, err := c.Classify(context.Background(), pushEvent(tt.branch))
			gt.NoError(t, err)
			gt.Value(t, got.Skip).Equal(tt.wantSkip)
			if tt.want == nil {
				gt.True(t, got.Noop())
				return
			}
			gt.Value(t, got.Decision).Equal(tt.want)
		})
	}
}

func TestClassifier_CustomTags(t *testing.T) {
	c := usecase.NewClassifier(commitWith("ship it [RELEASE]"), usecase.ClassifierConfig{
		ReleaseTag: "Release",
	})

	got, err := c.Classify(context.Background(), pushEvent("develop"))
	gt.NoError(t, err)
	gt.False(t, got.Noop())
	gt.True(t, got.Decision.Release)
	gt.Value(t, got.Decision.CommitMessage).Equal("RELEASE: ship it")
}

func TestClassifier_NotBranch(t *testing.T) {
	gh := &mockGitHubClient{
		getCommitFunc: func(ctx context.Context, name types.RepoName, sha types.CommitSHA) (*model.Commit, error) {
			t.Error("commit must not be fetched for tag events")
			return nil, errors.New("unexpected")
		},
	}
	c := usecase.NewClassifier(gh, usecase.ClassifierConfig{})

	event := pushEvent("v1.0.0")
	event.RefType = model.RefTypeTag

	got, err := c.Classify(context.Background(), event)
	gt.NoError(t, err)
	gt.True(t, got.Noop())
	gt.Value(t, got.Skip).Equal(model.SkipNotBranch)
}

func TestClassifier_Scheduled(t *testing.T) {
	tests := []struct {
		name        string
		threshold   time.Duration
		lastCommit  time.Time
		wantRelease bool
	}{
		{name: "recent commit releases", lastCommit: now.Add(-time.Hour), wantRelease: true},
		{name: "stale commit only rerenders", lastCommit: now.Add(-48 * time.Hour), wantRelease: false},
		{name: "exactly at threshold is stale", lastCommit: now.Add(-24 * time.Hour), wantRelease: false},
		{name: "22h threshold, commit 2h ago", threshold: 22 * time.Hour, lastCommit: now.Add(-2 * time.Hour), wantRelease: true},
		{name: "22h threshold, commit 30h ago", threshold: 22 * time.Hour, lastCommit: now.Add(-30 * time.Hour), wantRelease: false},
		{name: "22h threshold, commit 23h ago", threshold: 22 * time.Hour, lastCommit: now.Add(-23 * time.Hour), wantRelease: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := usecase.ClassifierConfig{RecencyThreshold: tt.threshold}
			c := usecase.NewClassifier(branchCommittedAt(tt.lastCommit), cfg,
				usecase.WithClassifierClock(func() time.Time { return now }),
			)

			got, err := c.Classify(context.Background(), scheduledEvent())
			gt.NoError(t, err)
			gt.False(t, got.Noop())
			gt.True(t, got.Decision.Rerender)
			gt.Value(t, got.Decision.Release).Equal(tt.wantRelease)
			gt.Value(t, got.Decision.Branch).Equal(usecase.DefaultReleaseBranch)
			gt.Value(t, got.Decision.CommitSHA).Equal(types.CommitSHA("feedface"))
			gt.Value(t, got.Decision.CommitMessage).Equal("NIGHTLY: automated nightly release of owner/project (2024-05-10)")
		})
	}
}

func TestClassifier_Dispatch(t *testing.T) {
	gh := branchCommittedAt(now.Add(-time.Minute))
	c := usecase.NewClassifier(gh, usecase.ClassifierConfig{ReleaseBranch: "main"},
		usecase.WithClassifierClock(func() time.Time { return now }),
	)

	t.Run("nightly action runs as scheduled", func(t *testing.T) {
		event := scheduledEvent()
		event.Kind = model.EventDispatch
		event.DispatchAction = usecase.NightlyDispatchAction

		got, err := c.Classify(context.Background(), event)
		gt.NoError(t, err)
		gt.True(t, got.Decision.Release)
		gt.Value(t, got.Decision.Branch).Equal(types.BranchName("main"))
	})

	t.Run("other actions are ignored", func(t *testing.T) {
		event := scheduledEvent()
		event.Kind = model.EventDispatch
		event.DispatchAction = "deploy"

		got, err := c.Classify(context.Background(), event)
		gt.NoError(t, err)
		gt.True(t, got.Noop())
		gt.Value(t, got.Skip).Equal(model.SkipUnsupportedKind)
	})
}

func TestClassifier_UnsupportedKind(t *testing.T) {
	c := usecase.NewClassifier(&mockGitHubClient{}, usecase.ClassifierConfig{})

	event := pushEvent("develop")
	event.Kind = "pull_request"

	got, err := c.Classify(context.Background(), event)
	gt.NoError(t, err)
	gt.True(t, got.Noop())
	gt.Value(t, got.Skip).Equal(model.SkipUnsupportedKind)
}

func TestClassifier_LookupError(t *testing.T) {
	gh := &mockGitHubClient{
		getCommitFunc: func(ctx context.Context, name types.RepoName, sha types.CommitSHA) (*model.Commit, error) {
			return nil, errors.New("api down")
		},
	}
	c := usecase.NewClassifier(gh, usecase.ClassifierConfig{})

	_, err := c.Classify(context.Background(), pushEvent("develop"))
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("failed to get pushed commit")
}
