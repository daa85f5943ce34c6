package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
	"github.com/rs/zerolog"
)

// MailerSendMailer sends transactional email through MailerSend
type MailerSendMailer struct {
	client    *mailersend.Mailersend
	fromEmail string
	fromName  string
	timeout   time.Duration
	log       zerolog.Logger
}

// NewMailerSendMailer creates a MailerSend backed mailer
func NewMailerSendMailer(apiKey, fromEmail, fromName string, log zerolog.Logger) *MailerSendMailer {
	return &MailerSendMailer{
		client:    mailersend.NewMailersend(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		timeout:   5 * time.Second,
		log:       log.With().Str("component", "mailersend").Logger(),
	}
}

func (m *MailerSendMailer) Send(ctx context.Context, msg EmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	message := m.client.Email.NewMessage()
	message.SetFrom(mailersend.From{Name: m.fromName, Email: m.fromEmail})
	message.SetRecipients([]mailersend.Recipient{{Name: msg.ToName, Email: msg.To}})
	message.SetSubject(msg.Subject)
	message.SetHTML(msg.HTML)
	message.SetText(msg.Text)

	res, err := m.client.Email.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.log.Debug().Str("message_id", res.Header.Get("X-Message-Id")).Str("to", msg.To).Msg("email accepted")
	return nil
}
