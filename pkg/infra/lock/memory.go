package lock

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// Memory is a process-local branch lock. Acquire waits for the holder to
// release the branch or for ctx to end.
type Memory struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	last  map[string]types.CommitSHA
}

var _ interfaces.BranchLock = (*Memory)(nil)

// NewMemory creates an empty in-memory lock
func NewMemory() *Memory {
	return &Memory{
		slots: make(map[string]chan struct{}),
		last:  make(map[string]types.CommitSHA),
	}
}

// Acquire implements interfaces.BranchLock
func (m *Memory) Acquire(ctx context.Context, key string, sha types.CommitSHA) (func(context.Context, bool) error, error) {
	m.mu.Lock()
	slot, ok := m.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		m.slots[key] = slot
	}
	m.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "gave up waiting for branch lock",
			goerr.V("key", key),
			goerr.T(types.ErrTagLocked),
		)
	}

	m.mu.Lock()
	processed := sha != "" && m.last[key] == sha
	m.mu.Unlock()
	if processed {
		<-slot
		return nil, nil
	}

	var once sync.Once
	release := func(_ context.Context, succeeded bool) error {
		once.Do(func() {
			if succeeded && sha != "" {
				m.mu.Lock()
				m.last[key] = sha
				m.mu.Unlock()
			}
			<-slot
		})
		return nil
	}
	return release, nil
}
