package http

import (
	"net/http"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	eventctrl "github.com/m-mizutani/herder/pkg/controller/event"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
)

// WebhookHandler turns signed GitHub deliveries into workflow events
type WebhookHandler struct {
	secret    []byte
	webhookUC interfaces.WebhookUseCase
}

func NewWebhookHandler(secret string, webhookUC interfaces.WebhookUseCase) *WebhookHandler {
	return &WebhookHandler{
		secret:    []byte(secret),
		webhookUC: webhookUC,
	}
}

// Handle verifies X-Hub-Signature-256, converts the payload and hands it to
// the use case. Unsupported event types are acknowledged with 200 so GitHub
// does not retry them.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	if len(h.secret) == 0 {
		writeError(w, r, goerr.New("webhook secret is not configured"), http.StatusUnauthorized)
		return
	}

	body, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		logger.Warn("Rejected webhook delivery", "error", err)
		writeError(w, r, goerr.Wrap(err, "invalid signature"), http.StatusUnauthorized)
		return
	}

	eventType := github.WebHookType(r)
	payload, err := github.ParseWebHook(eventType, body)
	if err != nil {
		logger.Warn("Failed to parse webhook payload", "error", err, "event", eventType)
		writeError(w, r, goerr.Wrap(err, "invalid JSON payload"), http.StatusBadRequest)
		return
	}

	event, err := toWebhookEvent(r, eventType, payload)
	if err != nil {
		logger.Warn("Failed to convert webhook payload", "error", err, "event", eventType)
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := h.webhookUC.ProcessEvent(ctx, event); err != nil {
		logger.Error("Failed to process webhook event", "error", err)
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "success"})
}

func toWebhookEvent(r *http.Request, eventType string, payload any) (*model.WebhookEvent, error) {
	event := &model.WebhookEvent{
		ID:         github.DeliveryID(r),
		Type:       model.WebhookEventType(eventType),
		ReceivedAt: time.Now(),
	}

	switch e := payload.(type) {
	case *github.PushEvent:
		event.Repository = e.GetRepo().GetFullName()
		event.Sender = e.GetSender().GetLogin()
	case *github.RepositoryDispatchEvent:
		event.Action = e.GetAction()
		event.Repository = e.GetRepo().GetFullName()
		event.Sender = e.GetSender().GetLogin()
	case *github.PingEvent:
		event.Type = model.WebhookTypePing
		return event, nil
	default:
		event.Type = model.WebhookTypeUnknown
		return event, nil
	}

	ev, err := eventctrl.FromPayload(payload, eventctrl.Env{EventName: eventType})
	if err != nil {
		return nil, err
	}
	event.Event = ev
	return event, nil
}
