package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/KafClaw/monitor/internal/channel"
	"github.com/slack-go/slack"
)

// SlackNotifier posts escalations to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Channel    string
}

// NewSlackNotifier returns nil when url is empty.
func NewSlackNotifier(url, slackChannel string) *SlackNotifier {
	if url == "" {
		return nil
	}
	return &SlackNotifier{WebhookURL: url, Channel: slackChannel}
}

// Escalated posts a notice that agent left a hub message unanswered for
// waiting.
func (s *SlackNotifier) Escalated(ctx context.Context, agent string, waiting time.Duration) error {
	msg := &slack.WebhookMessage{
		Channel: s.Channel,
		Text:    fmt.Sprintf(":hourglass: *%s* has not replied to %s for %s. Check-in sent.", agent, channel.Hub, formatWait(waiting)),
	}
	if err := slack.PostWebhookContext(ctx, s.WebhookURL, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
