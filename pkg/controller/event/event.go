// Package event turns GitHub event payloads into workflow events.
package event

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

const (
	refHeads = "refs/heads/"
	refTags  = "refs/tags/"
)

// Env is the run environment GitHub Actions exports as GITHUB_* variables
type Env struct {
	EventName  string
	EventPath  string
	RefType    string
	RefName    string
	Repository string
	SHA        string
	Actor      string
}

// Load builds the event of the current Actions run. The payload at EventPath
// is preferred; fields it lacks are taken from the environment.
func Load(ctx context.Context, env Env) (*model.Event, error) {
	logger := ctxlog.From(ctx)

	if env.EventName == "" {
		return nil, goerr.New("event name is not set", goerr.T(types.ErrTagPrecondition))
	}

	// schedule and workflow_dispatch carry nothing the environment lacks
	if env.EventPath == "" || !hasPayloadType(env.EventName) {
		ev := fromEnv(model.EventKind(env.EventName), env)
		logger.Debug("Event loaded from environment", "event", ev)
		return ev, nil
	}

	body, err := os.ReadFile(env.EventPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read event payload",
			goerr.V("path", env.EventPath),
			goerr.T(types.ErrTagPrecondition),
		)
	}

	ev, err := Parse(env.EventName, body, env)
	if err != nil {
		return nil, err
	}
	logger.Debug("Event loaded from payload", "event", ev, "path", env.EventPath)
	return ev, nil
}

// LoadTestEvent reads a JSON encoded model.Event used instead of the
// platform-delivered payload
func LoadTestEvent(path string) (*model.Event, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read test event", goerr.V("path", path))
	}

	var ev model.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, goerr.Wrap(err, "invalid test event", goerr.V("path", path))
	}
	if ev.RefType == "" {
		ev.RefType = model.RefTypeBranch
	}
	return &ev, nil
}

// Parse decodes a webhook payload of eventName into an event
func Parse(eventName string, body []byte, env Env) (*model.Event, error) {
	payload, err := github.ParseWebHook(eventName, body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse event payload",
			goerr.V("event_name", eventName),
			goerr.T(types.ErrTagPrecondition),
		)
	}
	return FromPayload(payload, env)
}

// FromPayload converts a go-github event. Unsupported payload types are
// returned as events of their own kind so the classifier can skip them.
func FromPayload(payload any, env Env) (*model.Event, error) {
	switch e := payload.(type) {
	case *github.PushEvent:
		return fromPush(e, env), nil

	case *github.RepositoryDispatchEvent:
		return fromDispatch(e, env)

	default:
		return fromEnv(model.EventKind(env.EventName), env), nil
	}
}

func fromPush(e *github.PushEvent, env Env) *model.Event {
	refType, refName := splitRef(e.GetRef())

	ev := &model.Event{
		Kind:       model.EventPush,
		RefType:    refType,
		RefName:    types.BranchName(refName),
		Repository: types.RepoName(e.GetRepo().GetFullName()),
		CommitSHA:  types.CommitSHA(e.GetAfter()),
		Actor:      e.GetSender().GetLogin(),
	}

	// a deleted branch has no commit to look at
	if e.GetDeleted() {
		ev.RefType = ""
	}

	fillFromEnv(ev, env)
	return ev
}

// clientPayload is the inner event a repository_dispatch may carry
type clientPayload struct {
	EventName  string `json:"event_name"`
	RefType    string `json:"ref_type"`
	RefName    string `json:"ref_name"`
	Repository string `json:"repository"`
	SHA        string `json:"sha"`
	Actor      string `json:"actor"`
}

func fromDispatch(e *github.RepositoryDispatchEvent, env Env) (*model.Event, error) {
	var inner clientPayload
	if len(e.ClientPayload) > 0 && string(e.ClientPayload) != "null" {
		if err := json.Unmarshal(e.ClientPayload, &inner); err != nil {
			return nil, goerr.Wrap(err, "invalid repository_dispatch client_payload",
				goerr.V("action", e.GetAction()),
				goerr.T(types.ErrTagPrecondition),
			)
		}
	}

	// a dispatch forwarding another event is classified as that event
	if inner.EventName != "" {
		ev := &model.Event{
			Kind:       model.EventKind(inner.EventName),
			RefType:    model.RefType(inner.RefType),
			RefName:    types.BranchName(inner.RefName),
			Repository: types.RepoName(inner.Repository),
			CommitSHA:  types.CommitSHA(inner.SHA),
			Actor:      inner.Actor,
		}
		if strings.HasPrefix(inner.RefName, "refs/") {
			ev.RefType, inner.RefName = splitRef(inner.RefName)
			ev.RefName = types.BranchName(inner.RefName)
		}
		if ev.RefType == "" {
			ev.RefType = model.RefTypeBranch
		}
		if ev.Repository == "" {
			ev.Repository = types.RepoName(e.GetRepo().GetFullName())
		}
		fillFromEnv(ev, env)
		return ev, nil
	}

	ev := &model.Event{
		Kind:           model.EventDispatch,
		RefType:        model.RefTypeBranch,
		RefName:        types.BranchName(e.GetBranch()),
		Repository:     types.RepoName(e.GetRepo().GetFullName()),
		Actor:          e.GetSender().GetLogin(),
		DispatchAction: e.GetAction(),
	}
	fillFromEnv(ev, env)
	return ev, nil
}

func fromEnv(kind model.EventKind, env Env) *model.Event {
	ev := &model.Event{Kind: kind}
	fillFromEnv(ev, env)
	return ev
}

// fillFromEnv sets the fields the payload left empty
func fillFromEnv(ev *model.Event, env Env) {
	if ev.RefType == "" && ev.RefName == "" {
		ev.RefType = model.RefType(env.RefType)
	}
	if ev.RefName == "" {
		ev.RefName = types.BranchName(env.RefName)
	}
	if ev.Repository == "" {
		ev.Repository = types.RepoName(env.Repository)
	}
	if ev.CommitSHA == "" {
		ev.CommitSHA = types.CommitSHA(env.SHA)
	}
	if ev.Actor == "" {
		ev.Actor = env.Actor
	}
}

func splitRef(ref string) (model.RefType, string) {
	switch {
	case strings.HasPrefix(ref, refHeads):
		return model.RefTypeBranch, strings.TrimPrefix(ref, refHeads)
	case strings.HasPrefix(ref, refTags):
		return model.RefTypeTag, strings.TrimPrefix(ref, refTags)
	default:
		return "", ref
	}
}

func hasPayloadType(eventName string) bool {
	switch model.EventKind(eventName) {
	case model.EventPush, model.EventDispatch:
		return true
	default:
		return false
	}
}
