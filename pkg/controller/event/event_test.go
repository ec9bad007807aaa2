package event_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/herder/pkg/controller/event"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

const pushPayload = `{
  "ref": "refs/heads/develop",
  "after": "0123456789abcdef0123456789abcdef01234567",
  "deleted": false,
  "repository": {"full_name": "owner/project"},
  "sender": {"login": "octocat"}
}`

func writePayload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		body      string
		env       event.Env
		want      *model.Event
	}{
		{
			name:      "push on branch",
			eventName: "push",
			body:      pushPayload,
			want: &model.Event{
				Kind:       model.EventPush,
				RefType:    model.RefTypeBranch,
				RefName:    "develop",
				Repository: "owner/project",
				CommitSHA:  "0123456789abcdef0123456789abcdef01234567",
				Actor:      "octocat",
			},
		},
		{
			name:      "push of a tag",
			eventName: "push",
			body:      `{"ref": "refs/tags/v1.0.0", "after": "abc", "repository": {"full_name": "owner/project"}}`,
			want: &model.Event{
				Kind:       model.EventPush,
				RefType:    model.RefTypeTag,
				RefName:    "v1.0.0",
				Repository: "owner/project",
				CommitSHA:  "abc",
			},
		},
		{
			name:      "deleted branch is not on a branch",
			eventName: "push",
			body:      `{"ref": "refs/heads/old", "deleted": true, "after": "0000000", "repository": {"full_name": "owner/project"}}`,
			want: &model.Event{
				Kind:       model.EventPush,
				RefName:    "old",
				Repository: "owner/project",
				CommitSHA:  "0000000",
			},
		},
		{
			name:      "nightly dispatch",
			eventName: "repository_dispatch",
			body:      `{"action": "nightly", "branch": "main", "repository": {"full_name": "owner/project"}, "sender": {"login": "scheduler"}}`,
			want: &model.Event{
				Kind:           model.EventDispatch,
				RefType:        model.RefTypeBranch,
				RefName:        "main",
				Repository:     "owner/project",
				Actor:          "scheduler",
				DispatchAction: "nightly",
			},
		},
		{
			name:      "dispatch forwarding a push",
			eventName: "repository_dispatch",
			body: `{
  "action": "forward",
  "branch": "main",
  "repository": {"full_name": "owner/project-feedstock"},
  "client_payload": {
    "event_name": "push",
    "ref_name": "refs/heads/develop",
    "repository": "owner/project",
    "sha": "cafebabe",
    "actor": "octocat"
  }
}`,
			want: &model.Event{
				Kind:       model.EventPush,
				RefType:    model.RefTypeBranch,
				RefName:    "develop",
				Repository: "owner/project",
				CommitSHA:  "cafebabe",
				Actor:      "octocat",
			},
		},
		{
			name:      "environment fills missing fields",
			eventName: "repository_dispatch",
			body:      `{"action": "nightly", "repository": {"full_name": "owner/project"}}`,
			env:       event.Env{RefName: "develop", SHA: "feedface", Actor: "bot"},
			want: &model.Event{
				Kind:           model.EventDispatch,
				RefType:        model.RefTypeBranch,
				RefName:        "develop",
				Repository:     "owner/project",
				CommitSHA:      "feedface",
				Actor:          "bot",
				DispatchAction: "nightly",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := event.Parse(tt.eventName, []byte(tt.body), tt.env)
			gt.NoError(t, err)
			gt.Value(t, got).Equal(tt.want)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Run("broken JSON", func(t *testing.T) {
		_, err := event.Parse("push", []byte(`{`), event.Env{})
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagPrecondition))
	})

	t.Run("client payload of wrong shape", func(t *testing.T) {
		_, err := event.Parse("repository_dispatch", []byte(`{"action": "x", "client_payload": {"event_name": 1}}`), event.Env{})
		gt.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("push payload from file", func(t *testing.T) {
		got, err := event.Load(ctx, event.Env{
			EventName: "push",
			EventPath: writePayload(t, pushPayload),
		})
		gt.NoError(t, err)
		gt.Value(t, got.Kind).Equal(model.EventPush)
		gt.Value(t, got.RefName).Equal(types.BranchName("develop"))
	})

	t.Run("schedule from environment", func(t *testing.T) {
		got, err := event.Load(ctx, event.Env{
			EventName:  "schedule",
			EventPath:  writePayload(t, `{"schedule": "0 3 * * *"}`),
			RefType:    "branch",
			RefName:    "main",
			Repository: "owner/project",
			SHA:        "feedface",
		})
		gt.NoError(t, err)
		gt.Value(t, got).Equal(&model.Event{
			Kind:       model.EventScheduled,
			RefType:    model.RefTypeBranch,
			RefName:    "main",
			Repository: "owner/project",
			CommitSHA:  "feedface",
		})
	})

	t.Run("missing event name", func(t *testing.T) {
		_, err := event.Load(ctx, event.Env{})
		gt.Error(t, err)
	})

	t.Run("missing payload file", func(t *testing.T) {
		_, err := event.Load(ctx, event.Env{
			EventName: "push",
			EventPath: filepath.Join(t.TempDir(), "absent.json"),
		})
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagPrecondition))
	})
}

func TestLoadTestEvent(t *testing.T) {
	path := writePayload(t, `{"kind": "push", "ref_name": "develop", "repository": "owner/project", "commit_sha": "abc"}`)

	got, err := event.LoadTestEvent(path)
	gt.NoError(t, err)
	gt.Value(t, got).Equal(&model.Event{
		Kind:       model.EventPush,
		RefType:    model.RefTypeBranch,
		RefName:    "develop",
		Repository: "owner/project",
		CommitSHA:  "abc",
	})

	_, err = event.LoadTestEvent(writePayload(t, `not json`))
	gt.Error(t, err)
}
