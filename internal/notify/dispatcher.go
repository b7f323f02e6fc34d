// Package notify fans a due alert out to an account's configured contact
// channels. Channels fail independently; one bad recipient never blocks the
// rest of the batch.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/exiscale/urlhealth/internal/models"
)

// EmailSender delivers one email. Implemented by SMTPSender.
type EmailSender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// ChatSender delivers one chat message. Implemented by TelegramSender.
type ChatSender interface {
	Send(ctx context.Context, chatID, text string) error
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Channel   string // "email" or "telegram"
	Recipient string
	Err       error
}

// OK reports whether the delivery succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Dispatcher sends alert notifications. A nil sender disables that channel
// (unconfigured transport), which is logged per attempt group, not an error.
type Dispatcher struct {
	Email EmailSender
	Chat  ChatSender
}

func NewDispatcher(email EmailSender, chat ChatSender) *Dispatcher {
	return &Dispatcher{Email: email, Chat: chat}
}

// Notify attempts delivery to every configured address and chat id of the
// account, independently, and returns all per-channel outcomes. Delivery is
// never retried within a tick; failures surface in the outcomes and logs
// only. No configured contacts is a logged no-op.
func (d *Dispatcher) Notify(ctx context.Context, acct models.Account, url string, engines []string) []Outcome {
	if len(acct.AlertEmails) == 0 && len(acct.TelegramChatIDs) == 0 {
		slog.Info("no alert contacts configured", "account_id", acct.ID, "url", url)
		return nil
	}

	subject := fmt.Sprintf("Security Alert: %s", url)
	text := alertText(url, engines)
	html := alertHTML(url, engines)

	var outcomes []Outcome

	for _, to := range acct.AlertEmails {
		out := Outcome{Channel: "email", Recipient: to}
		if d.Email == nil {
			out.Err = fmt.Errorf("email transport not configured")
		} else {
			out.Err = d.Email.Send(ctx, to, subject, text, html)
		}
		if out.Err != nil {
			slog.Warn("email alert failed", "to", to, "url", url, "err", out.Err)
		} else {
			slog.Info("email alert sent", "to", to, "url", url)
		}
		outcomes = append(outcomes, out)
	}

	for _, chatID := range acct.TelegramChatIDs {
		out := Outcome{Channel: "telegram", Recipient: chatID}
		if d.Chat == nil {
			out.Err = fmt.Errorf("telegram transport not configured")
		} else {
			out.Err = d.Chat.Send(ctx, chatID, text)
		}
		if out.Err != nil {
			slog.Warn("telegram alert failed", "chat_id", chatID, "url", url, "err", out.Err)
		} else {
			slog.Info("telegram alert sent", "chat_id", chatID, "url", url)
		}
		outcomes = append(outcomes, out)
	}

	return outcomes
}

func alertText(url string, engines []string) string {
	return fmt.Sprintf("Security Alert!\n\nURL: %s\nFlagged by: %s\n\nPlease review immediately.",
		url, strings.Join(engines, ", "))
}

func alertHTML(url string, engines []string) string {
	return fmt.Sprintf(`<h2>Security Alert Detected</h2>
<p><strong>URL:</strong> %s</p>
<p><strong>Flagged by:</strong> %s</p>
<p>Please review immediately.</p>
<hr>
<p style="color: #888; font-size: 12px;">URL Health Monitor</p>`,
		url, strings.Join(engines, ", "))
}
