package models

import (
	"time"
)

// JobKind identifies the handler a scheduled job is bound to
type JobKind string

const (
	// JobKindOpenGathering opens a gathering and seeds its participants
	JobKindOpenGathering JobKind = "open_gathering"

	// JobKindCloseGathering finalizes and scores a gathering
	JobKindCloseGathering JobKind = "close_gathering"

	// JobKindClosePoll closes a poll and tallies its votes
	JobKindClosePoll JobKind = "close_poll"
)

// JobStatus represents the state of a scheduled job
type JobStatus string

const (
	// JobStatusPending jobs are waiting to fire or being retried
	JobStatusPending JobStatus = "pending"

	// JobStatusDead jobs were abandoned after a permanent failure or exhausted retries
	JobStatusDead JobStatus = "dead"
)

// ScheduledJob is a durable deferred action
type ScheduledJob struct {
	// ID is derived from kind and target so scheduling is idempotent
	ID string

	Kind     JobKind
	TargetID string

	// FireAt is the earliest time the job may run
	FireAt time.Time

	// LockToken is set by the executor that currently holds the job
	LockToken string

	// LockedUntil is when the current claim expires
	LockedUntil time.Time

	// Attempts counts claims, including the one in flight
	Attempts int

	LastError string
	Status    JobStatus
	CreatedAt time.Time
}

// IsLocked reports whether another executor holds an unexpired claim
func (j *ScheduledJob) IsLocked(now time.Time) bool {
	return j.LockToken != "" && j.LockedUntil.After(now)
}
