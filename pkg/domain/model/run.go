package model

import (
	"time"

	"github.com/m-mizutani/herder/pkg/domain/types"
)

// RunState is a state of the release reconciler
type RunState string

const (
	StateIdle           RunState = "idle"
	StateClassified     RunState = "classified"
	StateRerenderOnly   RunState = "rerender_only"
	StateReleasePending RunState = "release_pending"
	StateReconciled     RunState = "reconciled"
	StatePublished      RunState = "published"
	StateDone           RunState = "done"
	StateAborted        RunState = "aborted"
)

// Terminal reports whether no transition leaves the state
func (x RunState) Terminal() bool {
	return x == StateDone || x == StateAborted
}

// RunReport records what a run did. It is logged at the end of every run and
// optionally archived.
type RunReport struct {
	ID        types.RunID      `json:"id"`
	Event     Event            `json:"event"`
	Decision  *ReleaseDecision `json:"decision,omitempty"`
	State     RunState         `json:"state"`
	History   []RunState       `json:"history"`
	Skip      SkipReason       `json:"skip,omitempty"`
	Error     string           `json:"error,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at"`

	PreviousVersion  string            `json:"previous_version,omitempty"`
	NewVersion       string            `json:"new_version,omitempty"`
	PreviousMetadata FeedstockMetadata `json:"previous_metadata,omitempty"`
	NewMetadata      FeedstockMetadata `json:"new_metadata,omitempty"`
	RerenderMessage  string            `json:"rerender_message,omitempty"`
	Published        []types.RepoName  `json:"published,omitempty"`
}

// NewRunReport starts a report in the idle state
func NewRunReport(id types.RunID, event Event, now time.Time) *RunReport {
	return &RunReport{
		ID:        id,
		Event:     event,
		State:     StateIdle,
		History:   []RunState{StateIdle},
		StartedAt: now,
	}
}

// Transit moves the report to state and records it
func (x *RunReport) Transit(state RunState) {
	x.State = state
	x.History = append(x.History, state)
}

// Skipped reports whether the run ended as a recognized no-op
func (x *RunReport) Skipped() bool {
	return x.State == StateDone && x.Skip != SkipNone
}
