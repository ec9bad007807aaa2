package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/usecase"
)

// syncDispatch runs the handler inline
func syncDispatch(ctx context.Context, handler func(ctx context.Context) error) {
	_ = handler(ctx)
}

func TestWebhookUseCase_ProcessEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    *model.WebhookEvent
		wantRuns int
	}{
		{
			name: "push starts a run",
			event: &model.WebhookEvent{
				ID:         "test-delivery-1",
				Type:       model.WebhookTypePush,
				Repository: "owner/project",
				Sender:     "testuser",
				ReceivedAt: time.Now(),
				Event:      pushEvent("develop"),
			},
			wantRuns: 1,
		},
		{
			name: "nightly dispatch starts a run",
			event: &model.WebhookEvent{
				ID:         "test-delivery-2",
				Type:       model.WebhookTypeRepositoryDispatch,
				Action:     "nightly",
				Repository: "owner/project",
				Sender:     "testuser",
				ReceivedAt: time.Now(),
				Event: &model.Event{
					Kind:           model.EventDispatch,
					RefType:        model.RefTypeBranch,
					RefName:        "main",
					Repository:     "owner/project",
					DispatchAction: "nightly",
				},
			},
			wantRuns: 1,
		},
		{
			name: "ping is ignored",
			event: &model.WebhookEvent{
				ID:         "test-delivery-3",
				Type:       model.WebhookTypePing,
				Repository: "owner/project",
				ReceivedAt: time.Now(),
			},
			wantRuns: 0,
		},
		{
			name: "push without workflow event is ignored",
			event: &model.WebhookEvent{
				ID:         "test-delivery-4",
				Type:       model.WebhookTypePush,
				Repository: "owner/project",
				ReceivedAt: time.Now(),
			},
			wantRuns: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := &mockReleaseUseCase{}
			uc := usecase.NewWebhook(release, usecase.WithDispatcher(syncDispatch))

			gt.NoError(t, uc.ProcessEvent(context.Background(), tt.event))
			gt.Number(t, len(release.events)).Equal(tt.wantRuns)
			if tt.wantRuns > 0 {
				gt.Value(t, release.events[0]).Equal(*tt.event.Event)
			}
		})
	}
}

func TestWebhookUseCase_RunFailureIsNotReturned(t *testing.T) {
	release := &mockReleaseUseCase{
		runFunc: func(ctx context.Context, event *model.Event) (*model.RunReport, error) {
			return &model.RunReport{State: model.StateAborted}, errors.New("aborted")
		},
	}
	uc := usecase.NewWebhook(release, usecase.WithDispatcher(syncDispatch))

	err := uc.ProcessEvent(context.Background(), &model.WebhookEvent{
		ID:    "test-delivery-5",
		Type:  model.WebhookTypePush,
		Event: pushEvent("develop"),
	})
	gt.NoError(t, err)
	gt.Number(t, len(release.events)).Equal(1)
}

func TestWebhookUseCase_RunTimeout(t *testing.T) {
	var deadline time.Time
	release := &mockReleaseUseCase{
		runFunc: func(ctx context.Context, event *model.Event) (*model.RunReport, error) {
			deadline, _ = ctx.Deadline()
			return &model.RunReport{}, nil
		},
	}
	uc := usecase.NewWebhook(release,
		usecase.WithDispatcher(syncDispatch),
		usecase.WithRunTimeout(time.Minute),
	)

	gt.NoError(t, uc.ProcessEvent(context.Background(), &model.WebhookEvent{
		Type:  model.WebhookTypePush,
		Event: pushEvent("develop"),
	}))
	gt.False(t, deadline.IsZero())
}

func TestWebhookUseCase_AsyncDispatch(t *testing.T) {
	done := make(chan model.Event, 1)
	release := &mockReleaseUseCase{
		runFunc: func(ctx context.Context, event *model.Event) (*model.RunReport, error) {
			done <- *event
			return &model.RunReport{}, nil
		},
	}
	uc := usecase.NewWebhook(release)

	gt.NoError(t, uc.ProcessEvent(context.Background(), &model.WebhookEvent{
		Type:  model.WebhookTypePush,
		Event: pushEvent("develop"),
	}))

	select {
	case ev := <-done:
		gt.Value(t, ev.RefName).Equal(pushEvent("develop").RefName)
	case <-time.After(5 * time.Second):
		t.Fatal("run was not dispatched")
	}
}
