package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/observability"
	"github.com/kursadbilgin/tutor-notifier/internal/queue"
	"github.com/kursadbilgin/tutor-notifier/internal/template"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// NotificationDispatcher is the synchronous dispatch entry point used by
// the worker.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, req Request) (*domain.Notification, error)
}

// WorkerService consumes the channel work queues and dispatches each message.
type WorkerService struct {
	consumer    queue.Consumer
	dispatcher  NotificationDispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
}

func NewWorkerService(
	consumer queue.Consumer,
	dispatcher NotificationDispatcher,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer:    consumer,
		dispatcher:  dispatcher,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes channel queues until context cancellation. Every work queue
// gets at least one consumer regardless of the configured concurrency.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	workers := max(s.concurrency, len(queueNames))
	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			if err := s.consumer.Consume(groupCtx, queueName, s.processMessage); err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

// processMessage settles a message as follows: pre-flight rejections are
// permanent, anything that created a record is acked (the record carries the
// outcome), and errors before persistence are retried by the broker.
func (s *WorkerService) processMessage(ctx context.Context, msg queue.DispatchMessage) error {
	if id := strings.TrimSpace(msg.CorrelationID); id != "" {
		ctx = observability.WithCorrelationID(ctx, id)
	}
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("messageId", msg.MessageID),
		zap.String("channel", msg.Channel.String()),
	)

	s.metrics.IncWorkerInFlight(msg.Channel)
	defer s.metrics.DecWorkerInFlight(msg.Channel)

	n, err := s.dispatcher.Dispatch(ctx, Request{
		UserID:       msg.UserID,
		Channel:      msg.Channel,
		TemplateName: msg.TemplateName,
		Recipient:    msg.Recipient,
		Params:       template.Params(msg.Params),
	})
	if err == nil {
		return nil
	}

	var deliveryErr *DeliveryError
	switch {
	case errors.As(err, &deliveryErr):
		logger.Warn("async dispatch failed at provider",
			zap.String("notificationId", deliveryErr.Notification.ID),
			zap.Error(err),
		)
		return nil
	case isPreflightError(err):
		logger.Warn("async dispatch rejected", zap.Error(err))
		return queue.Permanent(err)
	case n != nil:
		// Redelivery would create a second record; the reconciler owns it now.
		logger.Error("async dispatch left notification pending",
			zap.String("notificationId", n.ID),
			zap.Error(err),
		)
		return nil
	default:
		return err
	}
}

func isPreflightError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNoRecipient) ||
		errors.Is(err, domain.ErrMissingTemplate) ||
		errors.Is(err, domain.ErrUnsupportedChannel)
}
