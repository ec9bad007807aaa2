package interfaces

import (
	"context"

	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// GitClient drives a local working copy
type GitClient interface {
	Clone(ctx context.Context, remoteURL, localPath string, branch types.BranchName) error
	Checkout(ctx context.Context, localPath string, branch types.BranchName) error
	StageAll(ctx context.Context, localPath string) error
	// HasStagedChanges reports whether a commit would record anything
	HasStagedChanges(ctx context.Context, localPath string) (bool, error)
	Commit(ctx context.Context, localPath, message string, identity model.Identity) error
	Push(ctx context.Context, localPath, remoteURL string, opts model.PushOptions) error
}
