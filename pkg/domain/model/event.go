package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// EventKind is the kind of inbound event that started a run
type EventKind string

const (
	EventPush      EventKind = "push"
	EventScheduled EventKind = "schedule"
	EventDispatch  EventKind = "repository_dispatch"
)

// RefType is the kind of git ref the event was raised on
type RefType string

const (
	RefTypeBranch RefType = "branch"
	RefTypeTag    RefType = "tag"
)

// Event is the immutable input of a run
type Event struct {
	Kind       EventKind        `json:"kind"`
	RefType    RefType          `json:"ref_type"`
	RefName    types.BranchName `json:"ref_name"`
	Repository types.RepoName   `json:"repository"`
	CommitSHA  types.CommitSHA  `json:"commit_sha,omitempty"`
	Actor      string           `json:"actor,omitempty"`

	// DispatchAction is the repository_dispatch action ("nightly" turns a
	// dispatch into a scheduled run). Empty for other kinds.
	DispatchAction string `json:"dispatch_action,omitempty"`
}

// Validate checks the fields every event kind needs
func (x *Event) Validate() error {
	if x.Kind == "" {
		return goerr.New("event kind is required")
	}
	if !x.Repository.Valid() {
		return goerr.New("event repository must be 'owner/name'", goerr.V("repository", x.Repository))
	}
	if x.Kind == EventPush && x.CommitSHA == "" {
		return goerr.New("push event requires a commit sha", goerr.V("repository", x.Repository))
	}
	return nil
}

// OnBranch reports whether the event was raised on a branch ref
func (x *Event) OnBranch() bool {
	return x.RefType == RefTypeBranch && x.RefName != ""
}

// Commit is the subset of a commit the workflow reads from the hosting platform
type Commit struct {
	SHA     types.CommitSHA
	Message string
	Author  string
	Date    time.Time
}

// Branch is the subset of a branch the workflow reads from the hosting platform
type Branch struct {
	Name       types.BranchName
	LastCommit Commit
}
