package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
)

// DispatchMessage is the broker payload for an asynchronous dispatch request.
// Rendering and persistence happen in the consumer.
type DispatchMessage struct {
	MessageID     string         `json:"messageId"`
	CorrelationID string         `json:"correlationId,omitempty"`
	UserID        *string        `json:"userId,omitempty"`
	Channel       domain.Channel `json:"channel"`
	TemplateName  string         `json:"templateName"`
	Recipient     string         `json:"recipient,omitempty"`
	Params        map[string]any `json:"params,omitempty"`
	EnqueuedAt    time.Time      `json:"enqueuedAt"`
}

func (m DispatchMessage) Validate() error {
	if strings.TrimSpace(m.MessageID) == "" {
		return fmt.Errorf("messageId is required")
	}
	if !m.Channel.IsValid() {
		return fmt.Errorf("invalid channel %q", m.Channel)
	}
	if strings.TrimSpace(m.TemplateName) == "" {
		return fmt.Errorf("templateName is required")
	}
	if strings.TrimSpace(m.Recipient) == "" && (m.UserID == nil || strings.TrimSpace(*m.UserID) == "") {
		return fmt.Errorf("recipient or userId is required")
	}
	return nil
}
