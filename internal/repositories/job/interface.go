package job

//go:generate mockgen -package=mocks -destination=mocks/mock_repository.go github.com/KirkDiggler/gatherer/internal/repositories/job Repository

import (
	"context"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// Repository defines the interface for durable scheduled jobs.
// Claim, complete, release and bury compare the lock token atomically so a
// job is only ever held by one executor.
type Repository interface {
	// SaveJob creates or reschedules a job as pending
	SaveJob(ctx context.Context, input *SaveJobInput) error

	// GetJob retrieves a job by ID
	GetJob(ctx context.Context, input *GetJobInput) (*models.ScheduledJob, error)

	// ListDueJobIDs lists jobs whose fire time has passed
	ListDueJobIDs(ctx context.Context, input *ListDueJobIDsInput) ([]string, error)

	// ClaimJob takes the lease on a due, unlocked (or lease-expired) job
	ClaimJob(ctx context.Context, input *ClaimJobInput) (*models.ScheduledJob, error)

	// CompleteJob deletes a job held by the caller
	CompleteJob(ctx context.Context, input *CompleteJobInput) error

	// ReleaseJob drops the lease and moves the fire time for a retry
	ReleaseJob(ctx context.Context, input *ReleaseJobInput) error

	// BuryJob marks a held job dead so it never fires again
	BuryJob(ctx context.Context, input *BuryJobInput) error

	// ListJobsByTarget lists the jobs scheduled for a target
	ListJobsByTarget(ctx context.Context, input *ListJobsByTargetInput) ([]*models.ScheduledJob, error)

	// DeleteJobsByTarget removes every job of a target, held or not
	DeleteJobsByTarget(ctx context.Context, input *DeleteJobsByTargetInput) (int, error)

	// ListDeadJobs lists buried jobs
	ListDeadJobs(ctx context.Context) ([]*models.ScheduledJob, error)
}
