package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modbot-dev/modbot/pkg/robusthttp"

	"github.com/slack-go/slack"
)

// Posts escalation notices to a Slack "incoming webhook". The webhook must already be configured in the Slack workspace.
type SlackNotifier struct {
	SlackWebhookURL string
	Client          *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

// Webhook posts are not wrapped by the retry package, so transient 5xx responses are retried by the HTTP client itself.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	client := robusthttp.NewClient(
		robusthttp.WithMaxRetries(2),
		robusthttp.WithRetryWaitMin(500*time.Millisecond),
		robusthttp.WithRetryWaitMax(5*time.Second),
	)
	return &SlackNotifier{
		SlackWebhookURL: webhookURL,
		Client:          client,
	}
}

func (n *SlackNotifier) SendEscalation(ctx context.Context, msg *Message, label, reason string) error {
	return slack.PostWebhookCustomHTTPContext(ctx, n.SlackWebhookURL, n.Client, &slack.WebhookMessage{
		Text: slackBody(msg, label, reason),
	})
}

func slackBody(msg *Message, label, reason string) string {
	out := fmt.Sprintf("⚠️ Modbot Escalation: `%s` ⚠️\n", label)
	out += fmt.Sprintf("guild `%s` (%s) / channel `%s` / message `%s`\n", msg.GuildID, orDefault(msg.GuildName, "?"), msg.ChannelID, msg.ID)
	out += fmt.Sprintf("user `%s` (%s)\n", msg.AuthorID, orDefault(msg.AuthorName, "?"))
	out += fmt.Sprintf("Reason: %s\n", reason)
	out += fmt.Sprintf("> %s\n", truncate(msg.Content, 180))
	return out
}
