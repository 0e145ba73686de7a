package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
)

type SMSConfig struct {
	Endpoint           string
	APIKey             string
	SenderID           string
	DefaultCountryCode string
	Timeout            time.Duration
}

type smsRequest struct {
	To     string `json:"to"`
	Body   string `json:"body"`
	Sender string `json:"sender,omitempty"`
}

// SMSSender posts messages to an HTTP SMS gateway. Provider errors are hard
// failures.
type SMSSender struct {
	client      *resty.Client
	endpoint    string
	apiKey      string
	senderID    string
	countryCode string
}

func NewSMSSender(cfg SMSConfig) (*SMSSender, error) {
	return NewSMSSenderWithClient(cfg, newRestyClient(cfg.Timeout))
}

func NewSMSSenderWithClient(cfg SMSConfig, client *resty.Client) (*SMSSender, error) {
	endpoint, err := parseEndpoint("sms", cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	client, err = prepareClient(client)
	if err != nil {
		return nil, err
	}

	return &SMSSender{
		client:      client,
		endpoint:    endpoint,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		senderID:    strings.TrimSpace(cfg.SenderID),
		countryCode: cfg.DefaultCountryCode,
	}, nil
}

func (s *SMSSender) Channel() domain.Channel { return domain.ChannelSMS }

func (s *SMSSender) Send(ctx context.Context, recipient string, msg domain.RenderedMessage) Outcome {
	if s == nil || s.client == nil {
		return Failed(fmt.Errorf("sms sender is not initialized"))
	}

	to, err := NormalizePhone(recipient, s.countryCode)
	if err != nil {
		return Failed(err)
	}

	req := s.client.R()
	if s.apiKey != "" {
		req.SetAuthToken(s.apiKey)
	}

	resp, err := postJSON(ctx, req, domain.ChannelSMS, s.endpoint, smsRequest{
		To:     to,
		Body:   msg.Body,
		Sender: s.senderID,
	})
	if err != nil {
		return Failed(err)
	}

	return Delivered(resp)
}
