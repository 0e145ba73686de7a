package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"go.uber.org/zap"
)

const (
	SkipReasonNoSender    = "whatsapp sender number not configured"
	SkipReasonNoRecipient = "whatsapp recipient missing"
)

type WhatsAppConfig struct {
	Endpoint           string
	Token              string
	SenderNumber       string
	DefaultCountryCode string
	Timeout            time.Duration
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppRequest struct {
	From string       `json:"from"`
	To   string       `json:"to"`
	Type string       `json:"type"`
	Text whatsAppText `json:"text"`
}

// WhatsAppSender is a best-effort channel: an unconfigured sender or missing
// recipient is skipped, and remote failures are logged and reported as soft
// failures.
type WhatsAppSender struct {
	client       *resty.Client
	endpoint     string
	token        string
	senderNumber string
	countryCode  string
	logger       *zap.Logger
}

func NewWhatsAppSender(cfg WhatsAppConfig, logger *zap.Logger) (*WhatsAppSender, error) {
	return NewWhatsAppSenderWithClient(cfg, newRestyClient(cfg.Timeout), logger)
}

func NewWhatsAppSenderWithClient(cfg WhatsAppConfig, client *resty.Client, logger *zap.Logger) (*WhatsAppSender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sender := &WhatsAppSender{
		token:        strings.TrimSpace(cfg.Token),
		senderNumber: strings.TrimSpace(cfg.SenderNumber),
		countryCode:  cfg.DefaultCountryCode,
		logger:       logger,
	}

	// Without a sender number every send is skipped, so the endpoint is
	// not needed.
	if sender.senderNumber == "" {
		return sender, nil
	}

	endpoint, err := parseEndpoint("whatsapp", cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	client, err = prepareClient(client)
	if err != nil {
		return nil, err
	}
	sender.endpoint = endpoint
	sender.client = client

	return sender, nil
}

func (s *WhatsAppSender) Channel() domain.Channel { return domain.ChannelWhatsApp }

func (s *WhatsAppSender) Send(ctx context.Context, recipient string, msg domain.RenderedMessage) Outcome {
	if s == nil || s.senderNumber == "" {
		return Skipped(SkipReasonNoSender)
	}
	if strings.TrimSpace(recipient) == "" {
		return Skipped(SkipReasonNoRecipient)
	}
	if s.client == nil {
		return SoftFailed(fmt.Errorf("whatsapp sender is not initialized"))
	}

	to, err := NormalizePhone(recipient, s.countryCode)
	if err != nil {
		s.logger.Warn("whatsapp recipient rejected", zap.String("recipient", recipient), zap.Error(err))
		return SoftFailed(err)
	}

	req := s.client.R()
	if s.token != "" {
		req.SetAuthToken(s.token)
	}

	resp, err := postJSON(ctx, req, domain.ChannelWhatsApp, s.endpoint, whatsAppRequest{
		From: s.senderNumber,
		To:   to,
		Type: "text",
		Text: whatsAppText{Body: msg.Body},
	})
	if err != nil {
		s.logger.Warn("whatsapp send failed",
			zap.String("recipient", to),
			zap.Bool("transient", IsTransient(err)),
			zap.Error(err),
		)
		return SoftFailed(err)
	}

	return Delivered(resp)
}
