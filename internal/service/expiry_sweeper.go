package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/observability"
	"github.com/kursadbilgin/tutor-notifier/internal/repository"
	"github.com/kursadbilgin/tutor-notifier/internal/template"
	"go.uber.org/zap"
)

const (
	defaultExpiryLookahead = 72 * time.Hour

	// ExpiryNoticeTemplate is not registered, so notices render through the
	// generic message formatter.
	ExpiryNoticeTemplate = "subscription.expiry_notice"

	expiryNoticeSubject = "Your subscription is about to expire"
	expiryDateLayout    = "02 Jan 2006"
)

var expiryNoticeChannels = []domain.Channel{domain.ChannelEmail, domain.ChannelSMS}

// SweepReport summarizes one expiry sweep.
type SweepReport struct {
	Deactivated int64
	Expiring    int
	Notified    int
	Failed      int
}

// ExpirySweeper deactivates lapsed subscriptions and warns users whose
// subscription ends within the lookahead window.
type ExpirySweeper struct {
	subscriptions repository.SubscriptionRepository
	dispatcher    *Dispatcher
	audit         *jobAudit
	logger        *zap.Logger
	lookahead     time.Duration
	now           func() time.Time
}

func NewExpirySweeper(
	subscriptions repository.SubscriptionRepository,
	jobRuns repository.JobRunRepository,
	dispatcher *Dispatcher,
	lookahead time.Duration,
	logger *zap.Logger,
) (*ExpirySweeper, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if jobRuns == nil {
		return nil, fmt.Errorf("job run repository is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if lookahead <= 0 {
		lookahead = defaultExpiryLookahead
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ExpirySweeper{
		subscriptions: subscriptions,
		dispatcher:    dispatcher,
		audit: &jobAudit{
			runs:   jobRuns,
			logger: logger,
			now:    time.Now,
		},
		logger:    logger,
		lookahead: lookahead,
		now:       time.Now,
	}, nil
}

// SetMetrics records deactivations and sweep job runs on metrics.
func (s *ExpirySweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.audit.metrics = metrics
}

// SweepExpiring runs one sweep. A failure to notify one user never stops the
// remaining users from being processed.
func (s *ExpirySweeper) SweepExpiring(ctx context.Context) (SweepReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var report SweepReport
	now := s.now().UTC()

	deactivated, err := s.subscriptions.DeactivateExpired(ctx, now)
	if err != nil {
		return report, fmt.Errorf("failed to deactivate expired subscriptions: %w", err)
	}
	report.Deactivated = deactivated
	s.audit.metrics.AddSubscriptionsDeactivated(deactivated)

	expiring, err := s.subscriptions.ListExpiringWithin(ctx, now, s.lookahead)
	if err != nil {
		return report, fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}
	report.Expiring = len(expiring)

	if report.Deactivated == 0 && report.Expiring == 0 {
		return report, nil
	}

	run := s.audit.start(ctx, domain.JobExpirySweep)

	reqs := make([]Request, 0, len(expiring)*len(expiryNoticeChannels))
	for i := range expiring {
		reqs = append(reqs, expiryNoticeRequests(expiring[i])...)
	}

	for _, result := range s.dispatcher.DispatchAll(ctx, reqs) {
		if result.Err != nil {
			report.Failed++
			s.logger.Warn("failed to send expiry notice",
				zap.Stringp("userId", result.Request.UserID),
				zap.String("channel", result.Request.Channel.String()),
				zap.Error(result.Err),
			)
			continue
		}
		report.Notified++
	}

	run.Total = len(reqs)
	run.Succeeded = report.Notified
	run.Failed = report.Failed

	finishCtx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	s.audit.finish(finishCtx, run)

	s.logger.Info("expiry sweep completed",
		zap.Int64("deactivated", report.Deactivated),
		zap.Int("expiring", report.Expiring),
		zap.Int("notified", report.Notified),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func expiryNoticeRequests(sub domain.ExpiringSubscription) []Request {
	message := fmt.Sprintf("Your %s subscription expires on %s. Renew now to keep uninterrupted access.",
		sub.PlanName, sub.EndDate.UTC().Format(expiryDateLayout))

	reqs := make([]Request, 0, len(expiryNoticeChannels))
	for _, channel := range expiryNoticeChannels {
		userID := sub.UserID
		reqs = append(reqs, Request{
			UserID:       &userID,
			Channel:      channel,
			TemplateName: ExpiryNoticeTemplate,
			Recipient:    sub.Contact.AddressFor(channel),
			Params: template.Params{
				template.MessageParam: message,
				template.SubjectParam: expiryNoticeSubject,
				"userName":            sub.Contact.Name,
			},
		})
	}
	return reqs
}
