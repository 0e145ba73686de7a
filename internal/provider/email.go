package provider

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/mcnijman/go-emailaddress"
	"gopkg.in/gomail.v2"
)

// MailDialer is the part of *gomail.Dialer the email sender depends on.
type MailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailSender delivers email through an SMTP relay. Success means the relay
// accepted the message.
type EmailSender struct {
	dialer MailDialer
	from   string
	domain string
}

func NewEmailSender(cfg EmailConfig) (*EmailSender, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp port must be positive")
	}

	dialer := gomail.NewDialer(host, cfg.Port, cfg.Username, cfg.Password)
	return NewEmailSenderWithDialer(cfg.From, dialer)
}

func NewEmailSenderWithDialer(from string, dialer MailDialer) (*EmailSender, error) {
	if dialer == nil {
		return nil, fmt.Errorf("mail dialer is required")
	}

	addr, err := emailaddress.Parse(strings.TrimSpace(from))
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", from, err)
	}

	return &EmailSender{
		dialer: dialer,
		from:   addr.String(),
		domain: addr.Domain,
	}, nil
}

func (s *EmailSender) Channel() domain.Channel { return domain.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, recipient string, msg domain.RenderedMessage) Outcome {
	if s == nil || s.dialer == nil {
		return Failed(fmt.Errorf("email sender is not initialized"))
	}
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}

	to, err := emailaddress.Parse(strings.TrimSpace(recipient))
	if err != nil {
		return Failed(fmt.Errorf("%w: invalid email recipient %q", domain.ErrValidation, recipient))
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.domain)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to.String())
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return Failed(&ProviderError{
			Channel:   domain.ChannelEmail,
			Message:   "smtp send failed",
			Transient: isTransientSMTP(err),
			Cause:     err,
		})
	}

	return Delivered(&ProviderResponse{MessageID: messageID})
}

// 4xx SMTP replies are temporary by definition.
func isTransientSMTP(err error) bool {
	var replyErr *textproto.Error
	if errors.As(err, &replyErr) {
		return replyErr.Code >= 400 && replyErr.Code < 500
	}
	return IsTransient(err)
}
