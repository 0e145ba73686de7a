package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
)

type stubSender struct {
	channel domain.Channel
}

func (s stubSender) Channel() domain.Channel { return s.channel }

func (s stubSender) Send(context.Context, string, domain.RenderedMessage) Outcome {
	return Delivered(nil)
}

func TestNewSenders(t *testing.T) {
	t.Parallel()

	senders, err := NewSenders(stubSender{channel: domain.ChannelEmail}, stubSender{channel: domain.ChannelSMS})
	if err != nil {
		t.Fatalf("NewSenders() error = %v", err)
	}

	got, err := senders.For(domain.ChannelSMS)
	if err != nil {
		t.Fatalf("For(sms) error = %v", err)
	}
	if got.Channel() != domain.ChannelSMS {
		t.Fatalf("For(sms) channel = %s", got.Channel())
	}

	if _, err := senders.For(domain.ChannelWhatsApp); !errors.Is(err, domain.ErrUnsupportedChannel) {
		t.Fatalf("For(whatsapp) error = %v, want ErrUnsupportedChannel", err)
	}

	if _, err := NewSenders(stubSender{channel: domain.ChannelSMS}, stubSender{channel: domain.ChannelSMS}); err == nil {
		t.Fatal("expected duplicate sender error")
	}
	if _, err := NewSenders(stubSender{channel: "push"}); err == nil {
		t.Fatal("expected invalid channel error")
	}
}

func TestOutcomeConstructors(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	testCases := []struct {
		name          string
		outcome       Outcome
		wantKind      OutcomeKind
		wantSoft      bool
		wantCompleted bool
	}{
		{name: "delivered", outcome: Delivered(&ProviderResponse{StatusCode: 200}), wantKind: OutcomeDelivered, wantCompleted: true},
		{name: "skipped", outcome: Skipped("no sender"), wantKind: OutcomeSkipped, wantCompleted: true},
		{name: "failed", outcome: Failed(cause), wantKind: OutcomeFailed},
		{name: "soft failed", outcome: SoftFailed(cause), wantKind: OutcomeFailed, wantSoft: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if tc.outcome.Kind() != tc.wantKind {
				t.Fatalf("Kind() = %s, want %s", tc.outcome.Kind(), tc.wantKind)
			}
			if tc.outcome.IsSoft() != tc.wantSoft {
				t.Fatalf("IsSoft() = %v, want %v", tc.outcome.IsSoft(), tc.wantSoft)
			}
			if tc.outcome.Completed() != tc.wantCompleted {
				t.Fatalf("Completed() = %v, want %v", tc.outcome.Completed(), tc.wantCompleted)
			}
			if tc.wantKind == OutcomeFailed && !errors.Is(tc.outcome.Err(), cause) {
				t.Fatalf("Err() = %v, want cause", tc.outcome.Err())
			}
		})
	}

	if Failed(nil).Err() == nil {
		t.Fatal("Failed(nil) should carry a default error")
	}
}

func TestFailureReason(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "none"},
		{name: "validation", err: domain.ErrValidation, want: "invalid_recipient"},
		{name: "transient", err: &ProviderError{StatusCode: 503, Transient: true}, want: "transient_error"},
		{name: "permanent", err: &ProviderError{StatusCode: 400}, want: "permanent_error"},
		{name: "deadline", err: context.DeadlineExceeded, want: "transient_error"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := FailureReason(tc.err); got != tc.want {
				t.Fatalf("FailureReason() = %q, want %q", got, tc.want)
			}
		})
	}
}
