package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
)

const defaultProviderTimeout = 10 * time.Second

// messageResponse covers the id fields returned by the SMS and WhatsApp APIs.
type messageResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	Messages  []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (r *messageResponse) messageID() string {
	if r == nil {
		return ""
	}
	if id := strings.TrimSpace(r.MessageID); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	for _, m := range r.Messages {
		if id := strings.TrimSpace(m.ID); id != "" {
			return id
		}
	}
	return ""
}

func newRestyClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	return client
}

func prepareClient(client *resty.Client) (*resty.Client, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultProviderTimeout)
	}
	client.SetRetryCount(0)
	return client, nil
}

func parseEndpoint(name, endpoint string) (string, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return "", fmt.Errorf("%s endpoint is required", name)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return "", fmt.Errorf("invalid %s endpoint: %w", name, err)
	}
	return trimmed, nil
}

// postJSON performs the provider call and classifies the response the same
// way for every HTTP-backed channel.
func postJSON(ctx context.Context, req *resty.Request, channel domain.Channel, endpoint string, body any) (*ProviderResponse, error) {
	result := &messageResponse{}

	response, err := req.
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(result).
		Post(endpoint)
	if err != nil {
		return nil, &ProviderError{
			Channel:   channel,
			Message:   "provider request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Channel:   channel,
			Message:   "provider returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		messageID := result.messageID()
		if messageID == "" {
			messageID = headerMessageID(response)
		}
		return &ProviderResponse{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  messageID,
		}, nil
	}

	return nil, &ProviderError{
		Channel:    channel,
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func headerMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Request-ID", "X-Correlation-ID"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
