package scheduler

import (
	"time"

	"github.com/KirkDiggler/gatherer/internal/common/clock"
	"github.com/KirkDiggler/gatherer/internal/common/ids"
	"github.com/KirkDiggler/gatherer/internal/models"
	jobRepo "github.com/KirkDiggler/gatherer/internal/repositories/job"
)

// Config holds the dependencies and tuning of the scheduler
type Config struct {
	JobRepo     jobRepo.Repository
	Clock       clock.Clock
	IDGenerator ids.Generator

	// PollInterval is how often Run looks for due jobs
	PollInterval time.Duration

	// LeaseDuration is how long a claim lasts before another driver may take over
	LeaseDuration time.Duration

	// BatchSize caps the jobs claimed per pass
	BatchSize int

	// HandlerTimeout bounds a single handler call
	HandlerTimeout time.Duration

	// BaseBackoff doubles per attempt up to MaxBackoff
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// ScheduleInput contains parameters for scheduling a job
type ScheduleInput struct {
	Kind     models.JobKind
	TargetID string
	FireAt   time.Time
}

// ScheduleOutput contains the scheduled job
type ScheduleOutput struct {
	Job *models.ScheduledJob
}

// CancelInput contains parameters for cancelling a target's jobs
type CancelInput struct {
	TargetID string
}

// CancelOutput reports how many jobs were removed
type CancelOutput struct {
	Cancelled int
}

// RegisterInput binds a handler to a kind
type RegisterInput struct {
	Kind    models.JobKind
	Handler Handler

	// MaxAttempts buries the job after this many failed runs; 0 retries forever
	MaxAttempts int
}

// RunOnceOutput counts what one pass did
type RunOnceOutput struct {
	Completed int
	Retried   int
	Buried    int
}

// JobID returns the deterministic id of a kind and target
func JobID(kind models.JobKind, targetID string) string {
	return string(kind) + ":" + targetID
}
