package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the delivery state of a notification record.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel represents the delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Channels lists every supported delivery channel.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp}

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp:
		return true
	}
	return false
}

// UsesPhone reports whether the channel addresses a mobile number.
func (c Channel) UsesPhone() bool {
	return c == ChannelSMS || c == ChannelWhatsApp
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Content limits per channel (in characters).
const (
	MaxSMSContent      = 1000
	MaxWhatsAppContent = 4096
	MaxEmailContent    = 100000
)

// RenderedMessage is the fully rendered body of a notification. Subject is
// only populated for email.
type RenderedMessage struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Notification is a persisted notification record. Content is rendered once,
// before the first send attempt, and is never re-rendered.
type Notification struct {
	ID           string
	UserID       *string
	Channel      Channel
	TemplateName string
	Recipient    string
	Content      RenderedMessage
	Status       Status
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrNoRecipient)
	}
	if !n.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, n.Channel)
	}
	if strings.TrimSpace(n.TemplateName) == "" {
		return fmt.Errorf("%w: template name is required", ErrValidation)
	}
	if strings.TrimSpace(n.Content.Body) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}

	contentLen := len([]rune(n.Content.Body))
	switch n.Channel {
	case ChannelSMS:
		if contentLen > MaxSMSContent {
			return fmt.Errorf("%w: SMS content exceeds %d characters (got %d)", ErrValidation, MaxSMSContent, contentLen)
		}
	case ChannelWhatsApp:
		if contentLen > MaxWhatsAppContent {
			return fmt.Errorf("%w: WhatsApp content exceeds %d characters (got %d)", ErrValidation, MaxWhatsAppContent, contentLen)
		}
	case ChannelEmail:
		if contentLen > MaxEmailContent {
			return fmt.Errorf("%w: email content exceeds %d characters (got %d)", ErrValidation, MaxEmailContent, contentLen)
		}
		if strings.TrimSpace(n.Content.Subject) == "" {
			return fmt.Errorf("%w: email subject is required", ErrValidation)
		}
	}

	return nil
}
