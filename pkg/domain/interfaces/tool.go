package interfaces

import (
	"context"

	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// RerenderResult is what the packaging tool reported. An empty CommitMessage
// means the feedstock was already up to date.
type RerenderResult struct {
	CommitMessage string
	Output        string
}

// Rerenderer regenerates packaging scaffolding in a feedstock working copy
type Rerenderer interface {
	Rerender(ctx context.Context, feedstockDir string) (*RerenderResult, error)
}

// VersionBumper mutates the version file of a project working copy in place
type VersionBumper interface {
	Bump(ctx context.Context, projectDir string, kind types.BumpKind) error
}

// MetadataStore reads and rewrites the metadata lines of a recipe file
type MetadataStore interface {
	Read(path string, keys []model.MetadataKey) (model.FeedstockMetadata, error)
	Write(ctx context.Context, path string, subs []model.Substitution) error
}

// VersionStore reads the version file of a project working copy
type VersionStore interface {
	Read(projectDir string) (model.SemanticVersion, error)
	Write(projectDir string, v model.SemanticVersion) error
}
