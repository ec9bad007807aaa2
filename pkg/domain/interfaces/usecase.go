package interfaces

import (
	"context"

	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent processes a webhook event
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// ReleaseUseCase runs the release workflow for one event
type ReleaseUseCase interface {
	// Run classifies event and drives the reconciler to a terminal state.
	// The report is always returned; err is non-nil only for aborted runs.
	Run(ctx context.Context, event *model.Event) (*model.RunReport, error)
}

// PublishUseCase commits and pushes a working copy
type PublishUseCase interface {
	Publish(ctx context.Context, repo *model.RepositoryHandle, branch types.BranchName, commitMessage string) error
}
