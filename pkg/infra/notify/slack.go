package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/slack-go/slack"
)

// Slack posts run results to an incoming webhook. Skipped runs are not posted.
type Slack struct {
	webhookURL string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

var _ interfaces.Notifier = (*Slack)(nil)

// NewSlack creates a notifier for webhookURL
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		post:       slack.PostWebhookContext,
	}
}

// Notify implements interfaces.Notifier
func (x *Slack) Notify(ctx context.Context, report *model.RunReport) error {
	msg := BuildMessage(report)
	if msg == nil {
		return nil
	}

	if err := x.post(ctx, x.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post Slack message", goerr.V("run_id", report.ID))
	}
	return nil
}

// BuildMessage renders report as a Slack message. It returns nil for runs
// that are not worth a notification.
func BuildMessage(report *model.RunReport) *slack.WebhookMessage {
	var (
		title string
		color string
	)
	switch {
	case report.State == model.StateAborted:
		title = fmt.Sprintf(":x: Release run aborted on %s@%s", report.Event.Repository, branchOf(report))
		color = "danger"
	case report.State == model.StateDone && len(report.Published) > 0:
		title = fmt.Sprintf(":rocket: Published %s@%s", report.Event.Repository, branchOf(report))
		color = "good"
	default:
		return nil
	}

	var fields []slack.AttachmentField
	if report.PreviousVersion != "" || report.NewVersion != "" {
		fields = append(fields, slack.AttachmentField{
			Title: "Version",
			Value: fmt.Sprintf("%s → %s", orDash(report.PreviousVersion), orDash(report.NewVersion)),
			Short: true,
		})
	}
	if len(report.Published) > 0 {
		names := make([]string, len(report.Published))
		for i, p := range report.Published {
			names[i] = p.String()
		}
		fields = append(fields, slack.AttachmentField{
			Title: "Pushed",
			Value: strings.Join(names, ", "),
			Short: true,
		})
	}
	if report.Error != "" {
		fields = append(fields, slack.AttachmentField{
			Title: "Reason",
			Value: report.Error,
		})
	}

	return &slack.WebhookMessage{
		Text: title,
		Attachments: []slack.Attachment{
			{
				Color:  color,
				Fields: fields,
				Footer: fmt.Sprintf("run %s (%s)", report.ID, report.Event.Kind),
			},
		},
	}
}

func branchOf(report *model.RunReport) string {
	if report.Decision != nil && report.Decision.Branch != "" {
		return report.Decision.Branch.String()
	}
	return report.Event.RefName.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
