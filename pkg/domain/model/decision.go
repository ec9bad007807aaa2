package model

import "github.com/m-mizutani/herder/pkg/domain/types"

// TagDirective is the bracketed tag found in a push commit message
type TagDirective struct {
	Tag            string // lowercased, empty if absent
	Found          bool
	Recognized     bool
	CleanedMessage string
}

// ReleaseDecision drives every branch of the reconciler. A nil decision is a no-op.
type ReleaseDecision struct {
	Rerender      bool             `json:"rerender"`
	Release       bool             `json:"release"`
	CommitMessage string           `json:"commit_message"`
	Branch        types.BranchName `json:"branch"`

	// CommitSHA is the commit the decision was made for: the pushed commit,
	// or the branch head for scheduled runs
	CommitSHA types.CommitSHA `json:"commit_sha,omitempty"`
}

// SkipReason explains why a run ended without side effects
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipNotBranch        SkipReason = "not_branch"
	SkipUnsupportedKind  SkipReason = "unsupported_event_kind"
	SkipNoTag            SkipReason = "no_tag"
	SkipUnrecognizedTag  SkipReason = "unrecognized_tag"
	SkipAlreadyProcessed SkipReason = "already_processed"
	SkipNotConfirmed     SkipReason = "not_confirmed"
)

// Classification is the outcome of the event classifier: either a decision or a skip reason
type Classification struct {
	Decision *ReleaseDecision
	Skip     SkipReason
}

// Noop reports whether the classification asks for nothing to be done
func (x *Classification) Noop() bool {
	return x == nil || x.Decision == nil
}
