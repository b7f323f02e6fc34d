package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPSender delivers alert emails over authenticated SMTP.
type SMTPSender struct {
	client *mail.Client
	from   string
}

// NewSMTPSender builds an email sender. from doubles as the SMTP username,
// matching app-password style providers.
func NewSMTPSender(host string, port int, user, pass string) (*SMTPSender, error) {
	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(user),
		mail.WithPassword(pass),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: user}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	if htmlBody != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	}
	return s.client.DialAndSendWithContext(ctx, msg)
}
