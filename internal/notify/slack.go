// Package notify posts run summaries to Slack. The notifier is optional:
// with no token configured every method is a no-op.
package notify

import (
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"

	"lootcouncil/internal/config"
	"lootcouncil/internal/domain"
)

// poster is the slice of the Slack API the notifier uses; a seam for tests.
type poster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts plain-text summaries to one channel. A nil Notifier is
// valid and posts nothing.
type Notifier struct {
	api       poster
	channelID string
}

// New builds a notifier from configuration, or nil when Slack is not
// configured.
func New(cfg config.Config) *Notifier {
	if !cfg.SlackConfigured() {
		log.Println("Slack summaries disabled (slack_bot_token/slack_channel_id not set)")
		return nil
	}
	return &Notifier{
		api:       slack.New(cfg.SlackBotToken),
		channelID: cfg.SlackChannelID,
	}
}

// PostBatchSummary posts the outcome of one zone run.
func (n *Notifier) PostBatchSummary(zone string, decisions []domain.LootDecision, exportPath string) error {
	if n == nil {
		return nil
	}
	msg := FormatBatchSummary(zone, decisions, exportPath)
	if _, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(msg, false)); err != nil {
		return fmt.Errorf("posting batch summary: %w", err)
	}
	return nil
}

// PostText posts an arbitrary one-line notice (used by the refresh
// scheduler).
func (n *Notifier) PostText(msg string) error {
	if n == nil {
		return nil
	}
	if _, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(msg, false)); err != nil {
		return fmt.Errorf("posting notice: %w", err)
	}
	return nil
}

// FormatBatchSummary renders the run outcome: counts, the top suggestion
// per item, and where the CSV landed. Failed items are listed with their
// errors so officers see what needs a manual call.
func FormatBatchSummary(zone string, decisions []domain.LootDecision, exportPath string) string {
	okCount := 0
	var failed []string
	var lines []string
	for _, d := range decisions {
		if d.Success {
			okCount++
			suggestion := d.Suggestion1
			if suggestion == "" {
				suggestion = "None"
			}
			lines = append(lines, fmt.Sprintf("• %s → %s", d.ItemName, suggestion))
		} else {
			failed = append(failed, fmt.Sprintf("• %s: %s", d.ItemName, d.Err))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Loot council run for *%s*: %d items, %d suggested, %d failed\n",
		zone, len(decisions), okCount, len(failed))
	if len(lines) > 0 {
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}
	if len(failed) > 0 {
		b.WriteString("Needs a manual call:\n")
		b.WriteString(strings.Join(failed, "\n"))
		b.WriteString("\n")
	}
	if exportPath != "" {
		fmt.Fprintf(&b, "CSV: %s", exportPath)
	}
	return strings.TrimRight(b.String(), "\n")
}
