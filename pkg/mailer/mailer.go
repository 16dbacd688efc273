package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/mlehner/gymclub-api/pkg/config"
)

// Message describes a single transactional email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender dispatches transactional email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResendSender delivers mail through the Resend API.
type ResendSender struct {
	client  *resend.Client
	from    string
	replyTo string
	logger  *zap.Logger
}

// NewResendSender builds a sender from mail configuration.
func NewResendSender(cfg config.MailConfig, logger *zap.Logger) *ResendSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResendSender{
		client:  resend.NewClient(cfg.APIKey),
		from:    cfg.FromAddress,
		replyTo: cfg.ReplyTo,
		logger:  logger,
	}
}

// Send dispatches a single email.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if s.replyTo != "" {
		params.ReplyTo = s.replyTo
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	s.logger.Debug("mail sent", zap.String("message_id", sent.Id), zap.String("subject", msg.Subject))
	return nil
}

// NopSender discards all mail. Used when mail delivery is disabled.
type NopSender struct{}

// Send implements Sender.
func (NopSender) Send(ctx context.Context, msg Message) error {
	return nil
}
