package lock_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/herder/pkg/domain/types"
	"github.com/m-mizutani/herder/pkg/infra/lock"
)

func newTestFirestore(t *testing.T) *lock.Firestore {
	t.Helper()
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID is not set")
	}

	f, err := lock.NewFirestore(context.Background(), projectID,
		os.Getenv("TEST_FIRESTORE_DATABASE_ID"), "",
		lock.WithCollection("herder_test_locks"),
		lock.WithTTL(time.Minute),
	)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFirestore_Acquire(t *testing.T) {
	ctx := context.Background()
	key := "owner/project:" + uuid.NewString()

	first := newTestFirestore(t)
	second := newTestFirestore(t)

	release, err := first.Acquire(ctx, key, "sha1")
	gt.NoError(t, err)
	gt.NotNil(t, release)

	_, err = second.Acquire(ctx, key, "sha2")
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagLocked))

	gt.NoError(t, release(ctx, true))

	again, err := second.Acquire(ctx, key, "sha1")
	gt.NoError(t, err)
	gt.True(t, again == nil)

	next, err := second.Acquire(ctx, key, "sha2")
	gt.NoError(t, err)
	gt.NotNil(t, next)
	gt.NoError(t, next(ctx, true))
}
