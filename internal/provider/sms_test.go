package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
)

func TestSMSSenderSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody smsRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message_id":"sms-1"}`))
	}))
	defer server.Close()

	sender, err := NewSMSSender(SMSConfig{Endpoint: server.URL, APIKey: "secret", SenderID: "TUTORS"})
	if err != nil {
		t.Fatalf("NewSMSSender() error = %v", err)
	}

	out := sender.Send(context.Background(), "98765 43210", domain.RenderedMessage{Body: "123456 is your code"})
	if !out.IsDelivered() {
		t.Fatalf("Send() kind = %s, err = %v, want delivered", out.Kind(), out.Err())
	}

	resp := out.Response()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("StatusCode = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	if resp.MessageID != "sms-1" {
		t.Fatalf("MessageID = %q, want %q", resp.MessageID, "sms-1")
	}

	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotBody.To != "+919876543210" {
		t.Fatalf("request.to = %q, want normalized number", gotBody.To)
	}
	if gotBody.Sender != "TUTORS" {
		t.Fatalf("request.sender = %q", gotBody.Sender)
	}
	if gotBody.Body != "123456 is your code" {
		t.Fatalf("request.body = %q", gotBody.Body)
	}
}

func TestSMSSenderSendStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "bad gateway is transient", statusCode: http.StatusBadGateway, wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("provider failed"))
			}))
			defer server.Close()

			sender, err := NewSMSSender(SMSConfig{Endpoint: server.URL})
			if err != nil {
				t.Fatalf("NewSMSSender() error = %v", err)
			}

			out := sender.Send(context.Background(), "+919876543210", domain.RenderedMessage{Body: "hello"})
			if !out.IsFailed() || out.IsSoft() {
				t.Fatalf("Send() kind = %s soft = %v, want hard failure", out.Kind(), out.IsSoft())
			}

			if got := IsTransient(out.Err()); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}

			var providerErr *ProviderError
			if !errors.As(out.Err(), &providerErr) {
				t.Fatalf("expected ProviderError, got %T", out.Err())
			}
			if providerErr.StatusCode != tc.statusCode {
				t.Fatalf("ProviderError.StatusCode = %d, want %d", providerErr.StatusCode, tc.statusCode)
			}
			if got := StatusCode(out.Err()); got != tc.statusCode {
				t.Fatalf("StatusCode() = %d, want %d", got, tc.statusCode)
			}
		})
	}
}

func TestSMSSenderInvalidNumberSkipsNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender, err := NewSMSSender(SMSConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewSMSSender() error = %v", err)
	}

	out := sender.Send(context.Background(), "call me", domain.RenderedMessage{Body: "hello"})
	if !out.IsFailed() {
		t.Fatalf("Send() kind = %s, want failed", out.Kind())
	}
	if !errors.Is(out.Err(), domain.ErrValidation) {
		t.Fatalf("Send() error = %v, want ErrValidation", out.Err())
	}
	if FailureReason(out.Err()) != "invalid_recipient" {
		t.Fatalf("FailureReason() = %q", FailureReason(out.Err()))
	}
	if calls.Load() != 0 {
		t.Fatalf("provider calls = %d, want 0", calls.Load())
	}
}

func TestNewSMSSenderValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewSMSSender(SMSConfig{}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
	if _, err := NewSMSSender(SMSConfig{Endpoint: "not a url"}); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
	if _, err := NewSMSSenderWithClient(SMSConfig{Endpoint: "http://sms.example"}, nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
