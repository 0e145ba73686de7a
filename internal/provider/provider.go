package provider

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
)

// Sender is the outbound delivery port for one channel.
type Sender interface {
	Channel() domain.Channel
	Send(ctx context.Context, recipient string, msg domain.RenderedMessage) Outcome
}

// ProviderResponse stores provider call metadata for audit and persistence.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}

// OutcomeKind enumerates the results of a send.
type OutcomeKind string

const (
	OutcomeDelivered OutcomeKind = "delivered"
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the result of a send attempt. A soft failure is a failure the
// channel policy does not propagate to callers.
type Outcome struct {
	kind     OutcomeKind
	reason   string
	err      error
	soft     bool
	response *ProviderResponse
}

// Delivered means the provider accepted the message.
func Delivered(resp *ProviderResponse) Outcome {
	return Outcome{kind: OutcomeDelivered, response: resp}
}

// Skipped means no transmission was attempted and none is needed.
func Skipped(reason string) Outcome {
	return Outcome{kind: OutcomeSkipped, reason: reason}
}

// Failed is a hard failure that callers must observe.
func Failed(err error) Outcome {
	if err == nil {
		err = fmt.Errorf("send failed")
	}
	return Outcome{kind: OutcomeFailed, err: err}
}

// SoftFailed is a failure that is recorded and logged but not propagated.
func SoftFailed(err error) Outcome {
	out := Failed(err)
	out.soft = true
	return out
}

func (o Outcome) Kind() OutcomeKind { return o.kind }
func (o Outcome) Reason() string { return o.reason }
func (o Outcome) Err() error { return o.err }
func (o Outcome) IsSoft() bool { return o.soft }
func (o Outcome) Response() *ProviderResponse { return o.response }
func (o Outcome) IsDelivered() bool { return o.kind == OutcomeDelivered }
func (o Outcome) IsSkipped() bool { return o.kind == OutcomeSkipped }
func (o Outcome) IsFailed() bool { return o.kind == OutcomeFailed }

// Completed reports whether the record can be marked sent.
func (o Outcome) Completed() bool {
	return o.kind == OutcomeDelivered || o.kind == OutcomeSkipped
}

// Senders routes a channel to its Sender.
type Senders map[domain.Channel]Sender

func NewSenders(senders ...Sender) (Senders, error) {
	out := make(Senders, len(senders))
	for _, s := range senders {
		if s == nil {
			return nil, fmt.Errorf("sender is required")
		}
		channel := s.Channel()
		if !channel.IsValid() {
			return nil, fmt.Errorf("sender has invalid channel %q", channel)
		}
		if _, exists := out[channel]; exists {
			return nil, fmt.Errorf("duplicate sender for %s", channel)
		}
		out[channel] = s
	}
	return out, nil
}

func (s Senders) For(channel domain.Channel) (Sender, error) {
	sender, ok := s[channel]
	if !ok || sender == nil {
		return nil, fmt.Errorf("%w: no sender for %s", domain.ErrUnsupportedChannel, channel)
	}
	return sender, nil
}
