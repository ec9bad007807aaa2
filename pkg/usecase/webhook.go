package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/utils/async"
)

type webhookUseCase struct {
	releaseUC interfaces.ReleaseUseCase
	timeout   time.Duration
	dispatch  func(ctx context.Context, handler func(ctx context.Context) error)
}

// WebhookOption configures the webhook use case
type WebhookOption func(*webhookUseCase)

// WithRunTimeout bounds each run started by a webhook
func WithRunTimeout(timeout time.Duration) WebhookOption {
	return func(uc *webhookUseCase) {
		uc.timeout = timeout
	}
}

// WithDispatcher replaces async.Dispatch, mainly for tests
func WithDispatcher(dispatch func(ctx context.Context, handler func(ctx context.Context) error)) WebhookOption {
	return func(uc *webhookUseCase) {
		uc.dispatch = dispatch
	}
}

// NewWebhook creates a new instance of WebhookUseCase
func NewWebhook(releaseUC interfaces.ReleaseUseCase, opts ...WebhookOption) *webhookUseCase {
	uc := &webhookUseCase{
		releaseUC: releaseUC,
		dispatch:  async.Dispatch,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ProcessEvent starts a release run for a supported webhook event. The run is
// detached from the request; its outcome is only logged.
func (uc *webhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	logger := ctxlog.From(ctx)

	logger.Info("Processing webhook event",
		"id", event.ID,
		"type", event.Type,
		"action", event.Action,
		"repository", event.Repository,
		"sender", event.Sender,
		"supported", event.IsSupportedEvent(),
	)

	if !event.IsSupportedEvent() {
		logger.Warn("Unsupported event received",
			"type", event.Type,
			"action", event.Action,
		)
		return nil
	}

	ctx = ctxlog.With(ctx, logger.With("delivery_id", event.ID))
	runEvent := *event.Event
	uc.dispatch(ctx, func(ctx context.Context) error {
		if uc.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, uc.timeout)
			defer cancel()
		}
		_, err := uc.releaseUC.Run(ctx, &runEvent)
		return err
	})

	return nil
}
