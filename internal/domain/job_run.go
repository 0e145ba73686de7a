package domain

import "time"

// JobRunStatus represents the state of a batch job run.
type JobRunStatus string

const (
	JobRunStatusRunning        JobRunStatus = "RUNNING"
	JobRunStatusCompleted      JobRunStatus = "COMPLETED"
	JobRunStatusPartialFailure JobRunStatus = "PARTIAL_FAILURE"
)

func (s JobRunStatus) String() string { return string(s) }

func (s JobRunStatus) IsValid() bool {
	switch s {
	case JobRunStatusRunning, JobRunStatusCompleted, JobRunStatusPartialFailure:
		return true
	}
	return false
}

// Batch job names.
const (
	JobReconcilePending = "reconcile-pending"
	JobExpirySweep      = "expiry-sweep"
)

// JobRun audits one execution of a batch job.
type JobRun struct {
	ID         string
	Job        string
	Total      int
	Succeeded  int
	Failed     int
	Status     JobRunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
}

// FinalStatus derives the terminal status from the run counters.
func (r *JobRun) FinalStatus() JobRunStatus {
	if r.Failed > 0 {
		return JobRunStatusPartialFailure
	}
	return JobRunStatusCompleted
}
