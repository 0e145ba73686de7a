package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/provider"
	"github.com/kursadbilgin/tutor-notifier/internal/repository"
	"go.uber.org/zap"
)

func pendingQueryAll() repository.PendingQuery {
	return repository.PendingQuery{CreatedBefore: fixedNow.Add(time.Hour), Limit: 100}
}

type reconcilerFixture struct {
	repo       *fakeNotificationRepo
	attempts   *fakeAttemptRepo
	jobRuns    *fakeJobRunRepo
	sms        *fakeSender
	email      *fakeSender
	reconciler *Reconciler
}

func newReconcilerFixture(t *testing.T, pageSize int, seed ...domain.Notification) *reconcilerFixture {
	t.Helper()

	f := &reconcilerFixture{
		repo:     newFakeNotificationRepo(seed...),
		attempts: &fakeAttemptRepo{},
		jobRuns:  &fakeJobRunRepo{},
		sms:      &fakeSender{channel: domain.ChannelSMS},
		email:    &fakeSender{channel: domain.ChannelEmail},
	}
	senders, err := provider.NewSenders(f.sms, f.email)
	if err != nil {
		t.Fatalf("NewSenders() error = %v", err)
	}

	f.reconciler, err = NewReconciler(f.repo, f.attempts, f.jobRuns, senders, ReconcilerConfig{
		MinAge:   time.Minute,
		PageSize: pageSize,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewReconciler() error = %v", err)
	}
	clock := func() time.Time { return fixedNow }
	f.reconciler.now = clock
	f.reconciler.delivery.now = clock
	f.reconciler.audit.now = clock

	return f
}

func pendingSMS(id string, age time.Duration) domain.Notification {
	return domain.Notification{
		ID:           id,
		Channel:      domain.ChannelSMS,
		TemplateName: "otp.login",
		Recipient:    "+91987654321" + id[len(id)-1:],
		Content:      domain.RenderedMessage{Body: "code for " + id},
		Status:       domain.StatusPending,
		CreatedAt:    fixedNow.Add(-age),
	}
}

func TestReconcilePendingNothingToDo(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, 10)

	report, err := f.reconciler.ReconcilePending(context.Background())
	if err != nil {
		t.Fatalf("ReconcilePending() error = %v", err)
	}
	if report != (ReconcileReport{}) {
		t.Fatalf("report = %+v, want zero", report)
	}
	if got := f.repo.writeCount(); got != 0 {
		t.Fatalf("store writes = %d, want 0", got)
	}
	if len(f.jobRuns.created) != 0 || len(f.attempts.all()) != 0 {
		t.Fatal("no audit rows should be written for an empty sweep")
	}
}

func TestReconcilePendingPartialSuccess(t *testing.T) {
	t.Parallel()

	seed := make([]domain.Notification, 0, 5)
	for i := 1; i <= 5; i++ {
		seed = append(seed, pendingSMS(fmt.Sprintf("n%d", i), 10*time.Minute))
	}
	f := newReconcilerFixture(t, 2, seed...)

	failing := map[string]bool{"+919876543212": true, "+919876543214": true}
	f.sms.sendFn = func(ctx context.Context, recipient string, msg domain.RenderedMessage) provider.Outcome {
		if failing[recipient] {
			return provider.Failed(errors.New("provider unavailable"))
		}
		return provider.Delivered(nil)
	}

	report, err := f.reconciler.ReconcilePending(context.Background())
	if err != nil {
		t.Fatalf("ReconcilePending() error = %v", err)
	}

	want := ReconcileReport{Selected: 5, Sent: 3, StillPending: 2}
	if report != want {
		t.Fatalf("report = %+v, want %+v", report, want)
	}

	for _, n := range f.repo.all() {
		wantStatus := domain.StatusSent
		if failing[n.Recipient] {
			wantStatus = domain.StatusPending
		}
		if n.Status != wantStatus {
			t.Fatalf("%s status = %s, want %s", n.ID, n.Status, wantStatus)
		}
		if wantStatus == domain.StatusSent && (n.SentAt == nil || !n.SentAt.Equal(fixedNow)) {
			t.Fatalf("%s SentAt = %v, want %v", n.ID, n.SentAt, fixedNow)
		}
	}

	for _, sent := range f.sms.sent() {
		if sent.Message.Body != "code for n"+sent.Recipient[len(sent.Recipient)-1:] {
			t.Fatalf("body = %q, want persisted content reused", sent.Message.Body)
		}
	}

	if len(f.jobRuns.finished) != 1 {
		t.Fatalf("job runs finished = %d, want 1", len(f.jobRuns.finished))
	}
	run := f.jobRuns.finished[0]
	if run.Job != domain.JobReconcilePending || run.Total != 5 || run.Succeeded != 3 || run.Failed != 2 {
		t.Fatalf("job run = %+v", run)
	}
	if run.Status != domain.JobRunStatusPartialFailure {
		t.Fatalf("job run status = %s, want PARTIAL_FAILURE", run.Status)
	}

	for _, a := range f.attempts.all() {
		if a.Source != domain.AttemptSourceReconcile {
			t.Fatalf("attempt source = %s, want reconcile", a.Source)
		}
	}
}

func TestReconcilePendingRetriesEverySweep(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, 10, pendingSMS("n1", time.Hour))
	f.sms.sendFn = func(ctx context.Context, recipient string, msg domain.RenderedMessage) provider.Outcome {
		return provider.Failed(errors.New("bad recipient"))
	}

	for i := 0; i < 3; i++ {
		if _, err := f.reconciler.ReconcilePending(context.Background()); err != nil {
			t.Fatalf("ReconcilePending() error = %v", err)
		}
	}

	attempts := f.attempts.all()
	if len(attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(attempts))
	}
	if attempts[2].AttemptNumber != 3 {
		t.Fatalf("third attempt number = %d, want 3", attempts[2].AttemptNumber)
	}

	n, _ := f.repo.GetByID(context.Background(), "n1")
	if n.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", n.Status)
	}
}

func TestReconcilePendingSkipsFreshAndFailedRecords(t *testing.T) {
	t.Parallel()

	failed := pendingSMS("n2", time.Hour)
	failed.Status = domain.StatusFailed

	f := newReconcilerFixture(t, 10, pendingSMS("n1", 10*time.Second), failed)

	report, err := f.reconciler.ReconcilePending(context.Background())
	if err != nil {
		t.Fatalf("ReconcilePending() error = %v", err)
	}
	if report.Selected != 0 {
		t.Fatalf("Selected = %d, want 0", report.Selected)
	}
	if len(f.sms.sent()) != 0 {
		t.Fatal("no sends expected")
	}
}

func TestReconcilePendingStoreErrorOnOneRecordContinues(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, 10, pendingSMS("n1", time.Hour), pendingSMS("n2", time.Hour))
	f.repo.markSentFn = func(ctx context.Context, id string, sentAt time.Time) error {
		if id == "n1" {
			return errors.New("deadlock detected")
		}
		return f.repo.transition(id, domain.StatusPending, domain.StatusSent, &sentAt)
	}

	report, err := f.reconciler.ReconcilePending(context.Background())
	if err != nil {
		t.Fatalf("ReconcilePending() error = %v", err)
	}

	want := ReconcileReport{Selected: 2, Sent: 1, Errors: 1}
	if report != want {
		t.Fatalf("report = %+v, want %+v", report, want)
	}
}

func TestReconcilePendingListError(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, 10)
	f.repo.listPendingFn = func(ctx context.Context, q repository.PendingQuery) ([]domain.Notification, error) {
		return nil, errors.New("db down")
	}

	if _, err := f.reconciler.ReconcilePending(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(f.jobRuns.created) != 0 {
		t.Fatal("job run should not be written when nothing was selected")
	}
}

func TestReconcilePendingUsesMinAgeCutoff(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, 7)

	var got repository.PendingQuery
	f.repo.listPendingFn = func(ctx context.Context, q repository.PendingQuery) ([]domain.Notification, error) {
		got = q
		return nil, nil
	}

	if _, err := f.reconciler.ReconcilePending(context.Background()); err != nil {
		t.Fatalf("ReconcilePending() error = %v", err)
	}
	if !got.CreatedBefore.Equal(fixedNow.Add(-time.Minute)) {
		t.Fatalf("CreatedBefore = %v, want %v", got.CreatedBefore, fixedNow.Add(-time.Minute))
	}
	if got.Limit != 7 || got.AfterID != "" {
		t.Fatalf("query = %+v, want first page of 7", got)
	}
}
