package notify

import (
	"context"

	"github.com/slack-go/slack"
)

// SetPost replaces the webhook poster
func (x *Slack) SetPost(post func(ctx context.Context, url string, msg *slack.WebhookMessage) error) {
	x.post = post
}
