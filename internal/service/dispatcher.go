package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/observability"
	"github.com/kursadbilgin/tutor-notifier/internal/provider"
	"github.com/kursadbilgin/tutor-notifier/internal/ratelimit"
	"github.com/kursadbilgin/tutor-notifier/internal/repository"
	"github.com/kursadbilgin/tutor-notifier/internal/template"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultFanOut = 8

// Request asks for one notification to be rendered, persisted and sent.
type Request struct {
	UserID       *string
	Channel      domain.Channel
	TemplateName string
	Recipient    string
	Params       template.Params
}

// Result is the outcome of one request in a fan-out.
type Result struct {
	Request      Request
	Notification *domain.Notification
	Err          error
}

// DeliveryError is returned when the provider rejected a message. The record
// has already been marked failed.
type DeliveryError struct {
	Notification *domain.Notification
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed for notification %s: %v", e.Notification.ID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Stats is a status histogram of stored notifications.
type Stats struct {
	Total    int64
	ByStatus map[domain.Status]int64
}

type Dispatcher struct {
	notifications repository.NotificationRepository
	contacts      repository.ContactDirectory
	templates     *template.Registry
	delivery      *deliverer
	logger        *zap.Logger
	fanOut        int
	now           func() time.Time
}

func NewDispatcher(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	contacts repository.ContactDirectory,
	templates *template.Registry,
	senders provider.Senders,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if contacts == nil {
		return nil, fmt.Errorf("contact directory is required")
	}
	if templates == nil {
		return nil, fmt.Errorf("template registry is required")
	}
	if len(senders) == 0 {
		return nil, fmt.Errorf("at least one sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		notifications: notifications,
		contacts:      contacts,
		templates:     templates,
		delivery: &deliverer{
			senders:  senders,
			attempts: attempts,
			logger:   logger,
			now:      time.Now,
		},
		logger: logger,
		fanOut: defaultFanOut,
		now:    time.Now,
	}, nil
}

// SetMetrics records send outcomes and failure reasons on metrics.
func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.delivery.metrics = metrics
}

// SetRateLimiter throttles each send by channel. A nil limiter disables it.
func (d *Dispatcher) SetRateLimiter(limiter ratelimit.RateLimiter) {
	if d == nil {
		return
	}
	d.delivery.rateLimiter = limiter
}

// SetFanOut bounds the number of concurrent sends in DispatchAll.
func (d *Dispatcher) SetFanOut(n int) {
	if d == nil || n <= 0 {
		return
	}
	d.fanOut = n
}

// Dispatch resolves, renders, persists and sends one notification. Errors
// before persistence leave no record. After persistence exactly one record
// exists; a hard provider failure marks it failed and returns *DeliveryError.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.WithContextLogger(d.logger, ctx)

	n, err := d.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := d.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	outcome, err := d.delivery.send(ctx, n, domain.AttemptSourceDispatch)
	if err != nil {
		// Record stays pending for the reconciler.
		return n, err
	}

	if outcome.Completed() {
		sentAt := d.now().UTC()
		if err := d.notifications.MarkSent(ctx, n.ID, sentAt); err != nil {
			return n, fmt.Errorf("failed to mark notification sent: %w", err)
		}
		n.Status = domain.StatusSent
		n.SentAt = &sentAt

		if outcome.IsSkipped() {
			logger.Info("notification skipped by channel policy",
				zap.String("notificationId", n.ID),
				zap.String("channel", n.Channel.String()),
				zap.String("reason", outcome.Reason()),
			)
		}
		return n, nil
	}

	if err := d.notifications.MarkFailed(ctx, n.ID); err != nil {
		return n, fmt.Errorf("failed to mark notification failed: %w", err)
	}
	n.Status = domain.StatusFailed
	d.delivery.metrics.IncNotificationFailed(n.Channel, provider.FailureReason(outcome.Err()))

	if outcome.IsSoft() {
		logger.Warn("notification failed without propagation",
			zap.String("notificationId", n.ID),
			zap.String("channel", n.Channel.String()),
			zap.Error(outcome.Err()),
		)
		return n, nil
	}

	logger.Error("notification delivery failed",
		zap.String("notificationId", n.ID),
		zap.String("channel", n.Channel.String()),
		zap.Error(outcome.Err()),
	)
	return n, &DeliveryError{Notification: n, Err: outcome.Err()}
}

// DispatchAll sends independent notifications concurrently. A failure in one
// request never cancels the others.
func (d *Dispatcher) DispatchAll(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	var g errgroup.Group
	g.SetLimit(d.fanOut)
	for i, req := range reqs {
		g.Go(func() error {
			n, err := d.Dispatch(ctx, req)
			results[i] = Result{Request: req, Notification: n, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return d.notifications.GetByID(ctx, id)
}

func (d *Dispatcher) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	return d.notifications.List(ctx, params)
}

// Attempts returns the delivery audit trail of a notification.
func (d *Dispatcher) Attempts(ctx context.Context, id string) ([]domain.NotificationAttempt, error) {
	n, err := d.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.delivery.attempts.GetByNotificationID(ctx, n.ID)
}

// Requeue moves a failed notification back to pending so the next
// reconcile sweep retries it.
func (d *Dispatcher) Requeue(ctx context.Context, id string) (*domain.Notification, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	if err := d.notifications.Requeue(ctx, id); err != nil {
		return nil, err
	}

	d.logger.Info("notification requeued", zap.String("notificationId", id))
	return d.notifications.GetByID(ctx, id)
}

func (d *Dispatcher) Stats(ctx context.Context) (*Stats, error) {
	counts, err := d.notifications.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByStatus: make(map[domain.Status]int64, 3)}
	for _, status := range []domain.Status{domain.StatusPending, domain.StatusSent, domain.StatusFailed} {
		stats.ByStatus[status] = counts[status]
		stats.Total += counts[status]
	}
	return stats, nil
}

// prepare runs the pre-flight steps and returns an unsaved pending record.
func (d *Dispatcher) prepare(ctx context.Context, req Request) (*domain.Notification, error) {
	if !req.Channel.IsValid() {
		return nil, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, req.Channel)
	}
	templateName := strings.TrimSpace(req.TemplateName)
	if templateName == "" {
		return nil, fmt.Errorf("%w: template name is required", domain.ErrValidation)
	}
	if _, err := d.delivery.senders.For(req.Channel); err != nil {
		return nil, err
	}

	userID := normalizeOptionalString(req.UserID)
	params := req.Params

	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		contact, err := d.lookupContact(ctx, userID)
		if err != nil {
			return nil, err
		}
		recipient = strings.TrimSpace(contact.AddressFor(req.Channel))
		if recipient == "" {
			return nil, fmt.Errorf("%w: user %s has no %s address", domain.ErrNoRecipient, *userID, req.Channel)
		}
		params = withDefaultUserName(params, contact.Name)
	}

	content, err := d.templates.Resolve(templateName, req.Channel, params)
	if err != nil {
		return nil, err
	}

	n := &domain.Notification{
		ID:           uuid.NewString(),
		UserID:       userID,
		Channel:      req.Channel,
		TemplateName: templateName,
		Recipient:    recipient,
		Content:      content,
		Status:       domain.StatusPending,
		CreatedAt:    d.now().UTC(),
	}
	n.UpdatedAt = n.CreatedAt
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func (d *Dispatcher) lookupContact(ctx context.Context, userID *string) (*domain.ContactInfo, error) {
	if userID == nil {
		return nil, fmt.Errorf("%w: recipient or user id is required", domain.ErrNoRecipient)
	}

	contact, err := d.contacts.GetContactInfo(ctx, *userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s not found", domain.ErrNoRecipient, *userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up contact info: %w", err)
	}
	return contact, nil
}

// withDefaultUserName fills the greeting name from the directory unless the
// caller supplied one. The caller's map is never mutated.
func withDefaultUserName(params template.Params, name string) template.Params {
	name = strings.TrimSpace(name)
	if name == "" {
		return params
	}
	if existing, ok := params["userName"]; ok && existing != nil && existing != "" {
		return params
	}

	out := make(template.Params, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["userName"] = name
	return out
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
