package domain

import "time"

// AttemptSource identifies which path issued a delivery attempt.
type AttemptSource string

const (
	AttemptSourceDispatch  AttemptSource = "dispatch"
	AttemptSourceReconcile AttemptSource = "reconcile"
)

// AttemptOutcome mirrors the provider outcome kinds.
type AttemptOutcome string

const (
	AttemptDelivered AttemptOutcome = "delivered"
	AttemptSkipped   AttemptOutcome = "skipped"
	AttemptFailed    AttemptOutcome = "failed"
)

// NotificationAttempt records a single delivery attempt for a notification.
type NotificationAttempt struct {
	ID                string
	NotificationID    string
	AttemptNumber     int
	Source            AttemptSource
	Outcome           AttemptOutcome
	StatusCode        *int
	ProviderMessageID *string
	Error             *string
	CreatedAt         time.Time
}
