// Package slack posts notifications to a Slack incoming webhook.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	interfaces "github.com/sheikh-saqib/payments-reconciler/internal/interfaces"
	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

// Slack rejects section blocks with more fields than this.
const maxSectionFields = 10

type Notifier struct {
	webhookURL string
	client     *http.Client
}

func New(webhookURL string, timeout time.Duration) *Notifier {
	return &Notifier{webhookURL: webhookURL, client: &http.Client{Timeout: timeout}}
}

func (n *Notifier) Notify(ctx context.Context, msg models.Notification) error {
	if n.webhookURL == "" {
		return errors.New("SLACK_WEBHOOK_URL not set")
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.client, buildMessage(msg)); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

// buildMessage renders a header block followed by one section of
// "*key:*\nvalue" fields.
func buildMessage(msg models.Notification) *slack.WebhookMessage {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, msg.Title, false, false)),
	}

	fields := msg.Fields
	if len(fields) > maxSectionFields {
		rest := len(fields) - (maxSectionFields - 1)
		fields = append(fields[:maxSectionFields-1:maxSectionFields-1],
			models.Field{Key: "More", Value: fmt.Sprintf("%d more not shown", rest)})
	}
	if len(fields) > 0 {
		texts := make([]*slack.TextBlockObject, 0, len(fields))
		for _, f := range fields {
			texts = append(texts, slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*%s:*\n%s", f.Key, f.Value), false, false))
		}
		blocks = append(blocks, slack.NewSectionBlock(nil, texts, nil))
	}

	return &slack.WebhookMessage{
		Text:   msg.Title,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}

var _ interfaces.Notifier = (*Notifier)(nil)
