package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/provider"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: fmt.Errorf("%w: bad channel", domain.ErrValidation), want: fiber.StatusBadRequest},
		{name: "no recipient", err: domain.ErrNoRecipient, want: fiber.StatusUnprocessableEntity},
		{name: "missing template", err: domain.ErrMissingTemplate, want: fiber.StatusUnprocessableEntity},
		{name: "unsupported channel", err: fmt.Errorf("%w: %w", domain.ErrMissingTemplate, domain.ErrUnsupportedChannel), want: fiber.StatusUnprocessableEntity},
		{name: "unconfigured sender", err: unconfiguredSenderErr(), want: fiber.StatusUnprocessableEntity},
		{name: "not found", err: domain.ErrNotFound, want: fiber.StatusNotFound},
		{name: "conflict", err: fmt.Errorf("%w: job already running", domain.ErrConflict), want: fiber.StatusConflict},
		{name: "fiber error", err: fiber.NewError(fiber.StatusBadGateway, "upstream"), want: fiber.StatusBadGateway},
		{name: "unknown", err: errors.New("boom"), want: fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := StatusCode(tt.err); got != tt.want {
				t.Fatalf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func unconfiguredSenderErr() error {
	_, err := provider.Senders{}.For(domain.ChannelSMS)
	return err
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core))})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("pq: password authentication failed")
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return fmt.Errorf("%w: notification n1", domain.ErrNotFound)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var parsed map[string]string
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["error"] != internalErrorMessage {
		t.Fatalf("error = %q, want generic message", parsed["error"])
	}
	if logs.FilterMessage("request error").Len() != 1 {
		t.Fatal("server error should be logged at error level")
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if logs.FilterMessage("request rejected").Len() != 1 {
		t.Fatal("client error should be logged at warn level")
	}
}
