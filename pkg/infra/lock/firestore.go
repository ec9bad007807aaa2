package lock

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/types"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultCollection is the Firestore collection holding lock documents
const DefaultCollection = "herder_locks"

type lockDoc struct {
	Holder    string    `firestore:"holder"`
	SHA       string    `firestore:"sha"`
	LastSHA   string    `firestore:"last_sha"`
	ExpiresAt time.Time `firestore:"expires_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Firestore is a branch lock shared by every runner pointing at the same
// database. The lock document carries the last processed sha so a re-delivered
// event is recognized; a live lease held by another run fails fast.
type Firestore struct {
	client     *firestore.Client
	collection string
	ttl        time.Duration
	holder     string
	now        func() time.Time
}

var _ interfaces.BranchLock = (*Firestore)(nil)

// FirestoreOption configures Firestore
type FirestoreOption func(*Firestore)

// WithCollection sets the collection name
func WithCollection(name string) FirestoreOption {
	return func(f *Firestore) {
		f.collection = name
	}
}

// WithTTL sets how long a lease lives without release
func WithTTL(ttl time.Duration) FirestoreOption {
	return func(f *Firestore) {
		f.ttl = ttl
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) FirestoreOption {
	return func(f *Firestore) {
		f.now = now
	}
}

// NewFirestore connects to the database
func NewFirestore(ctx context.Context, projectID, databaseID, credentialsFile string, opts ...FirestoreOption) (*Firestore, error) {
	var clientOpts []option.ClientOption
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
		)
	}

	f := &Firestore{
		client:     client,
		collection: DefaultCollection,
		ttl:        time.Hour,
		holder:     uuid.NewString(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Close closes the underlying client
func (f *Firestore) Close() error {
	return f.client.Close()
}

func docID(key string) string {
	return strings.NewReplacer("/", "__", ".", "_").Replace(key)
}

// Acquire implements interfaces.BranchLock
func (f *Firestore) Acquire(ctx context.Context, key string, sha types.CommitSHA) (func(context.Context, bool) error, error) {
	ref := f.client.Collection(f.collection).Doc(docID(key))
	processed := false

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		processed = false
		current, err := getLock(tx, ref)
		if err != nil {
			return err
		}

		now := f.now()
		if sha != "" && current.LastSHA == string(sha) {
			processed = true
			return nil
		}
		if current.Holder != "" && current.Holder != f.holder && current.ExpiresAt.After(now) {
			return goerr.New("branch is locked by another run",
				goerr.V("key", key),
				goerr.V("holder_sha", current.SHA),
				goerr.V("expires_at", current.ExpiresAt),
				goerr.T(types.ErrTagLocked),
			)
		}

		return tx.Set(ref, &lockDoc{
			Holder:    f.holder,
			SHA:       string(sha),
			LastSHA:   current.LastSHA,
			ExpiresAt: now.Add(f.ttl),
			UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to acquire branch lock", goerr.V("key", key))
	}
	if processed {
		return nil, nil
	}

	release := func(ctx context.Context, succeeded bool) error {
		return f.release(ctx, ref, key, sha, succeeded)
	}
	return release, nil
}

func (f *Firestore) release(ctx context.Context, ref *firestore.DocumentRef, key string, sha types.CommitSHA, succeeded bool) error {
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := getLock(tx, ref)
		if err != nil {
			return err
		}
		if current.Holder != f.holder {
			ctxlog.From(ctx).Warn("Branch lock lease was lost before release",
				"key", key,
				"holder", current.Holder,
			)
			return nil
		}

		next := &lockDoc{
			LastSHA:   current.LastSHA,
			UpdatedAt: f.now(),
		}
		if succeeded && sha != "" {
			next.LastSHA = string(sha)
		}
		return tx.Set(ref, next)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to release branch lock", goerr.V("key", key))
	}
	return nil
}

func getLock(tx *firestore.Transaction, ref *firestore.DocumentRef) (*lockDoc, error) {
	var current lockDoc
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &current, nil
		}
		return nil, goerr.Wrap(err, "failed to read lock document", goerr.V("path", ref.Path))
	}
	if err := snap.DataTo(&current); err != nil {
		return nil, goerr.Wrap(err, "failed to decode lock document", goerr.V("path", ref.Path))
	}
	return &current, nil
}
