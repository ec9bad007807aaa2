package interfaces

import (
	"context"

	"github.com/m-mizutani/herder/pkg/domain/types"
)

// BranchLock serializes runs on the same repository branch
type BranchLock interface {
	// Acquire takes the lock for key on behalf of the run processing sha.
	// The returned function releases it and marks sha as processed when
	// succeeded is true. An error tagged types.ErrTagLocked means another run
	// holds the branch; a nil release with a nil error means sha was already
	// processed. An empty sha only serializes the run and is never recorded.
	Acquire(ctx context.Context, key string, sha types.CommitSHA) (release func(ctx context.Context, succeeded bool) error, err error)
}
