package async

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Group tracks handlers started by Dispatch so a server can drain in-flight
// release runs before it exits.
type Group struct {
	wg sync.WaitGroup
}

// Dispatch runs handler in a new goroutine on a context that keeps the logger
// of ctx but not its cancellation. Panics and returned errors are logged.
func (g *Group) Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	newCtx := newBackgroundContext(ctx)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				ctxlog.From(newCtx).Error("panic in async handler",
					"recover", r,
					"stack", string(debug.Stack()))
			}
		}()

		if err := handler(newCtx); err != nil {
			ctxlog.From(newCtx).Error("error in async handler", "error", err)
		}
	}()
}

// Wait blocks until every dispatched handler returned or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "handlers still running")
	}
}

// Dispatch runs handler without tracking it.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	var g Group
	g.Dispatch(ctx, handler)
}

func newBackgroundContext(ctx context.Context) context.Context {
	return ctxlog.With(context.Background(), ctxlog.From(ctx))
}
