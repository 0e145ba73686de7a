package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/observability"
	"github.com/kursadbilgin/tutor-notifier/internal/queue"
	"go.uber.org/zap"
)

// AsyncDispatcher hands requests to the broker. Callers never observe the
// delivery outcome; WorkerService performs the dispatch.
type AsyncDispatcher struct {
	publisher queue.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewAsyncDispatcher(publisher queue.Publisher, logger *zap.Logger) (*AsyncDispatcher, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AsyncDispatcher{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (a *AsyncDispatcher) SetMetrics(metrics *observability.Metrics) {
	if a == nil {
		return
	}
	a.metrics = metrics
}

// Enqueue validates the request shape and publishes it to the channel queue.
func (a *AsyncDispatcher) Enqueue(ctx context.Context, req Request) (*queue.DispatchMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !req.Channel.IsValid() {
		return nil, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, req.Channel)
	}

	ctx, correlationID := observability.EnsureCorrelationID(ctx)
	msg := queue.DispatchMessage{
		MessageID:     uuid.NewString(),
		CorrelationID: correlationID,
		UserID:        normalizeOptionalString(req.UserID),
		Channel:       req.Channel,
		TemplateName:  strings.TrimSpace(req.TemplateName),
		Recipient:     strings.TrimSpace(req.Recipient),
		Params:        req.Params,
		EnqueuedAt:    a.now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := a.publisher.Publish(ctx, msg); err != nil {
		observability.WithContextLogger(a.logger, ctx).Error("failed to publish dispatch request",
			zap.String("messageId", msg.MessageID),
			zap.String("channel", msg.Channel.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to publish dispatch request: %w", err)
	}
	a.metrics.IncEnqueued(msg.Channel)

	return &msg, nil
}
