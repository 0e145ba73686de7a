package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/observability"
	"github.com/kursadbilgin/tutor-notifier/internal/provider"
	"github.com/kursadbilgin/tutor-notifier/internal/ratelimit"
	"github.com/kursadbilgin/tutor-notifier/internal/repository"
	"go.uber.org/zap"
)

// deliverer performs one provider call for a persisted notification and
// audits it. It never changes the notification status.
type deliverer struct {
	senders     provider.Senders
	attempts    repository.AttemptRepository
	rateLimiter ratelimit.RateLimiter
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

func (d *deliverer) send(
	ctx context.Context,
	n *domain.Notification,
	source domain.AttemptSource,
) (provider.Outcome, error) {
	sender, err := d.senders.For(n.Channel)
	if err != nil {
		return provider.Outcome{}, err
	}

	if d.rateLimiter != nil {
		if err := d.rateLimiter.Wait(ctx, n.Channel); err != nil {
			if ctx.Err() != nil {
				return provider.Outcome{}, fmt.Errorf("rate limiter wait failed: %w", err)
			}
			// Limiter outages must not block delivery.
			d.logger.Warn("rate limiter unavailable, sending without throttling",
				zap.String("notificationId", n.ID),
				zap.String("channel", n.Channel.String()),
				zap.Error(err),
			)
		}
	}

	start := d.now()
	outcome := sender.Send(ctx, n.Recipient, n.Content)
	d.metrics.ObserveSend(n.Channel, outcomeLabel(outcome), d.now().Sub(start))

	d.recordAttempt(ctx, n, source, outcome)

	return outcome, nil
}

func (d *deliverer) recordAttempt(
	ctx context.Context,
	n *domain.Notification,
	source domain.AttemptSource,
	outcome provider.Outcome,
) {
	attemptNumber := 1
	if source != domain.AttemptSourceDispatch {
		count, err := d.attempts.CountByNotificationID(ctx, n.ID)
		if err != nil {
			d.logger.Warn("failed to count previous attempts",
				zap.String("notificationId", n.ID),
				zap.Error(err),
			)
		}
		attemptNumber = int(count) + 1
	}

	attempt := &domain.NotificationAttempt{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		AttemptNumber:  attemptNumber,
		Source:         source,
		Outcome:        domain.AttemptOutcome(outcome.Kind()),
		CreatedAt:      d.now().UTC(),
	}

	if resp := outcome.Response(); resp != nil {
		if resp.StatusCode > 0 {
			value := resp.StatusCode
			attempt.StatusCode = &value
		}
		if resp.MessageID != "" {
			value := resp.MessageID
			attempt.ProviderMessageID = &value
		}
	}

	switch {
	case outcome.Err() != nil:
		value := outcome.Err().Error()
		attempt.Error = &value

		var providerErr *provider.ProviderError
		if attempt.StatusCode == nil && errors.As(outcome.Err(), &providerErr) && providerErr.StatusCode > 0 {
			value := providerErr.StatusCode
			attempt.StatusCode = &value
		}
	case outcome.Reason() != "":
		value := outcome.Reason()
		attempt.Error = &value
	}

	// The notification status is authoritative; a lost audit row is logged only.
	if err := d.attempts.Create(ctx, attempt); err != nil {
		d.logger.Error("failed to record delivery attempt",
			zap.String("notificationId", n.ID),
			zap.Int("attemptNumber", attemptNumber),
			zap.Error(err),
		)
	}
}

func outcomeLabel(o provider.Outcome) string {
	switch {
	case o.IsDelivered():
		return observability.OutcomeDelivered
	case o.IsSkipped():
		return observability.OutcomeSkipped
	case o.IsSoft():
		return observability.OutcomeSoftFailed
	default:
		return observability.OutcomeFailed
	}
}
