package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/provider"
	"github.com/kursadbilgin/tutor-notifier/internal/queue"
	"github.com/kursadbilgin/tutor-notifier/internal/ratelimit"
	"github.com/kursadbilgin/tutor-notifier/internal/repository"
)

// fakeNotificationRepo keeps records in memory unless a hook overrides the
// call.
type fakeNotificationRepo struct {
	createFn      func(ctx context.Context, n *domain.Notification) error
	listPendingFn func(ctx context.Context, q repository.PendingQuery) ([]domain.Notification, error)
	markSentFn    func(ctx context.Context, id string, sentAt time.Time) error
	markFailedFn  func(ctx context.Context, id string) error

	mu      sync.Mutex
	records map[string]domain.Notification
	writes  int
}

func newFakeNotificationRepo(seed ...domain.Notification) *fakeNotificationRepo {
	f := &fakeNotificationRepo{records: make(map[string]domain.Notification)}
	for _, n := range seed {
		f.records[n.ID] = n
	}
	return f
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, n); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[n.ID] = *n
	f.writes++
	return nil
}

func (f *fakeNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (f *fakeNotificationRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	all := f.all()
	return all, int64(len(all)), nil
}

func (f *fakeNotificationRepo) ListPending(ctx context.Context, q repository.PendingQuery) ([]domain.Notification, error) {
	if f.listPendingFn != nil {
		return f.listPendingFn(ctx, q)
	}

	var out []domain.Notification
	for _, n := range f.all() {
		if n.Status != domain.StatusPending || n.ID <= q.AfterID || !n.CreatedAt.Before(q.CreatedBefore) {
			continue
		}
		out = append(out, n)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	if f.markSentFn != nil {
		return f.markSentFn(ctx, id, sentAt)
	}
	return f.transition(id, domain.StatusPending, domain.StatusSent, &sentAt)
}

func (f *fakeNotificationRepo) MarkFailed(ctx context.Context, id string) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id)
	}
	return f.transition(id, domain.StatusPending, domain.StatusFailed, nil)
}

func (f *fakeNotificationRepo) Requeue(ctx context.Context, id string) error {
	return f.transition(id, domain.StatusFailed, domain.StatusPending, nil)
}

func (f *fakeNotificationRepo) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	counts := make(map[domain.Status]int64)
	for _, n := range f.all() {
		counts[n.Status]++
	}
	return counts, nil
}

func (f *fakeNotificationRepo) transition(id string, from domain.Status, to domain.Status, sentAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	if !ok || n.Status != from {
		return domain.ErrConflict
	}
	n.Status = to
	if sentAt != nil {
		n.SentAt = sentAt
	}
	f.records[id] = n
	f.writes++
	return nil
}

func (f *fakeNotificationRepo) all() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Notification, 0, len(f.records))
	for _, n := range f.records {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeNotificationRepo) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

type fakeAttemptRepo struct {
	createFn func(ctx context.Context, a *domain.NotificationAttempt) error

	mu       sync.Mutex
	attempts []domain.NotificationAttempt
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.NotificationAttempt) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, a); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeAttemptRepo) GetByNotificationID(ctx context.Context, notificationID string) ([]domain.NotificationAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.NotificationAttempt
	for _, a := range f.attempts {
		if a.NotificationID == notificationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) CountByNotificationID(ctx context.Context, notificationID string) (int64, error) {
	list, err := f.GetByNotificationID(ctx, notificationID)
	return int64(len(list)), err
}

func (f *fakeAttemptRepo) all() []domain.NotificationAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.NotificationAttempt(nil), f.attempts...)
}

type fakeContactDirectory struct {
	getContactInfoFn func(ctx context.Context, userID string) (*domain.ContactInfo, error)
}

func (f *fakeContactDirectory) GetContactInfo(ctx context.Context, userID string) (*domain.ContactInfo, error) {
	if f.getContactInfoFn != nil {
		return f.getContactInfoFn(ctx, userID)
	}
	return nil, domain.ErrNotFound
}

type fakeSubscriptionRepo struct {
	deactivateExpiredFn  func(ctx context.Context, now time.Time) (int64, error)
	listExpiringWithinFn func(ctx context.Context, now time.Time, window time.Duration) ([]domain.ExpiringSubscription, error)
}

func (f *fakeSubscriptionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	if f.deactivateExpiredFn != nil {
		return f.deactivateExpiredFn(ctx, now)
	}
	return 0, nil
}

func (f *fakeSubscriptionRepo) ListExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]domain.ExpiringSubscription, error) {
	if f.listExpiringWithinFn != nil {
		return f.listExpiringWithinFn(ctx, now, window)
	}
	return nil, nil
}

type fakeJobRunRepo struct {
	mu       sync.Mutex
	created  []domain.JobRun
	finished []domain.JobRun
}

func (f *fakeJobRunRepo) Create(ctx context.Context, run *domain.JobRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *run)
	return nil
}

func (f *fakeJobRunRepo) Finish(ctx context.Context, run *domain.JobRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, *run)
	return nil
}

func (f *fakeJobRunRepo) GetLatest(ctx context.Context, job string) (*domain.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.finished) - 1; i >= 0; i-- {
		if f.finished[i].Job == job {
			run := f.finished[i]
			return &run, nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeSender struct {
	channel domain.Channel
	sendFn  func(ctx context.Context, recipient string, msg domain.RenderedMessage) provider.Outcome

	mu    sync.Mutex
	calls []sentMessage
}

type sentMessage struct {
	Recipient string
	Message   domain.RenderedMessage
}

func (f *fakeSender) Channel() domain.Channel { return f.channel }

func (f *fakeSender) Send(ctx context.Context, recipient string, msg domain.RenderedMessage) provider.Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, sentMessage{Recipient: recipient, Message: msg})
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, recipient, msg)
	}
	return provider.Delivered(&provider.ProviderResponse{StatusCode: 202, MessageID: "msg-1"})
}

func (f *fakeSender) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.calls...)
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, channel domain.Channel) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, channel domain.Channel) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel domain.Channel) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, channel)
	}
	return nil
}

var _ ratelimit.RateLimiter = (*fakeRateLimiter)(nil)

type fakePublisher struct {
	publishFn func(ctx context.Context, msg queue.DispatchMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, msg queue.DispatchMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queue string, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeDispatcher struct {
	dispatchFn func(ctx context.Context, req Request) (*domain.Notification, error)
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req Request) (*domain.Notification, error) {
	if f.dispatchFn != nil {
		return f.dispatchFn(ctx, req)
	}
	return &domain.Notification{ID: "n1", Status: domain.StatusSent}, nil
}

type fakeJobLocker struct {
	tryLockFn func(ctx context.Context, job string) (func(context.Context) error, bool, error)
}

func (f *fakeJobLocker) TryLock(ctx context.Context, job string) (func(context.Context) error, bool, error) {
	if f.tryLockFn != nil {
		return f.tryLockFn(ctx, job)
	}
	return func(context.Context) error { return nil }, false, nil
}
