package model

import "time"

// WebhookEventType represents the type of webhook event received
type WebhookEventType string

const (
	WebhookTypePush               WebhookEventType = "push"
	WebhookTypeRepositoryDispatch WebhookEventType = "repository_dispatch"
	WebhookTypePing               WebhookEventType = "ping"
	WebhookTypeUnknown            WebhookEventType = "unknown"
)

// WebhookEvent represents a webhook event received from GitHub
type WebhookEvent struct {
	ID         string           // Retrieved from X-GitHub-Delivery header
	Type       WebhookEventType // Retrieved from X-GitHub-Event header
	Action     string           // repository_dispatch action
	Repository string           // Repository full name
	Sender     string           // Sender username
	ReceivedAt time.Time        // Time when the event was received
	Event      *Event           // Converted workflow event, nil if unsupported
}

// IsSupportedEvent checks if the event can start a run
func (e *WebhookEvent) IsSupportedEvent() bool {
	switch e.Type {
	case WebhookTypePush, WebhookTypeRepositoryDispatch:
		return e.Event != nil
	default:
		return false
	}
}

// HealthStatus is the body of GET /health on the webhook server
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
