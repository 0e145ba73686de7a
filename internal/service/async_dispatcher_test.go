package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/observability"
	"github.com/kursadbilgin/tutor-notifier/internal/queue"
	"github.com/kursadbilgin/tutor-notifier/internal/template"
)

func TestAsyncDispatcherEnqueue(t *testing.T) {
	t.Parallel()

	var published queue.DispatchMessage
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, msg queue.DispatchMessage) error {
			published = msg
			return nil
		},
	}

	async, err := NewAsyncDispatcher(publisher, nil)
	if err != nil {
		t.Fatalf("NewAsyncDispatcher() error = %v", err)
	}

	ctx := observability.WithCorrelationID(context.Background(), "req-1")
	msg, err := async.Enqueue(ctx, Request{
		UserID:       strPtr(" u1 "),
		Channel:      domain.ChannelSMS,
		TemplateName: template.OTPLogin,
		Params:       template.Params{"otp": "123456"},
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if msg.MessageID == "" || published.MessageID != msg.MessageID {
		t.Fatalf("message id = %q, published %q", msg.MessageID, published.MessageID)
	}
	if published.CorrelationID != "req-1" {
		t.Fatalf("CorrelationID = %q, want req-1", published.CorrelationID)
	}
	if published.UserID == nil || *published.UserID != "u1" {
		t.Fatalf("UserID = %v, want u1", published.UserID)
	}
	if published.Params["otp"] != "123456" {
		t.Fatalf("Params = %v", published.Params)
	}
}

func TestAsyncDispatcherEnqueueGeneratesCorrelationID(t *testing.T) {
	t.Parallel()

	async, err := NewAsyncDispatcher(&fakePublisher{}, nil)
	if err != nil {
		t.Fatalf("NewAsyncDispatcher() error = %v", err)
	}

	msg, err := async.Enqueue(context.Background(), Request{
		Channel:      domain.ChannelEmail,
		TemplateName: template.Welcome,
		Recipient:    "asha@example.com",
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if msg.CorrelationID == "" {
		t.Fatal("correlation id should be generated")
	}
}

func TestAsyncDispatcherEnqueueErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		req        Request
		publishErr error
		wantErr    error
	}{
		{
			name:    "invalid channel",
			req:     Request{Channel: "fax", TemplateName: template.Welcome, Recipient: "x"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "no recipient and no user",
			req:     Request{Channel: domain.ChannelSMS, TemplateName: template.Welcome},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "missing template",
			req:     Request{Channel: domain.ChannelSMS, Recipient: "9876543210"},
			wantErr: domain.ErrValidation,
		},
		{
			name:       "broker failure",
			req:        Request{Channel: domain.ChannelSMS, TemplateName: template.Welcome, Recipient: "9876543210"},
			publishErr: errors.New("channel closed"),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			published := false
			async, err := NewAsyncDispatcher(&fakePublisher{
				publishFn: func(ctx context.Context, msg queue.DispatchMessage) error {
					published = true
					return tt.publishErr
				},
			}, nil)
			if err != nil {
				t.Fatalf("NewAsyncDispatcher() error = %v", err)
			}

			_, err = async.Enqueue(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Enqueue() error = %v, want %v", err, tt.wantErr)
				}
				if published {
					t.Fatal("invalid request should not be published")
				}
				return
			}
			if !errors.Is(err, tt.publishErr) {
				t.Fatalf("Enqueue() error = %v, want broker error", err)
			}
		})
	}
}
