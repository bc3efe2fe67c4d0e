package scheduler

//go:generate mockgen -package=mocks -destination=mocks/mock_service.go github.com/KirkDiggler/gatherer/internal/services/scheduler Service

import (
	"context"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// Handler executes a fired job. Returning nil completes the job; an error
// wrapped with Permanent buries it; any other error retries it later.
type Handler interface {
	HandleJob(ctx context.Context, job *models.ScheduledJob) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, job *models.ScheduledJob) error

func (f HandlerFunc) HandleJob(ctx context.Context, job *models.ScheduledJob) error {
	return f(ctx, job)
}

// Service is a durable deferred job executor
type Service interface {
	// Schedule persists a job; scheduling the same kind and target again moves it
	Schedule(ctx context.Context, input *ScheduleInput) (*ScheduleOutput, error)

	// Cancel removes every job of a target
	Cancel(ctx context.Context, input *CancelInput) (*CancelOutput, error)

	// Register binds a handler to a job kind
	Register(input *RegisterInput) error

	// RunOnce claims and executes the jobs that are due now
	RunOnce(ctx context.Context) (*RunOnceOutput, error)

	// Run drives RunOnce on an interval until ctx is done
	Run(ctx context.Context) error
}
