package job

import (
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// SaveJobInput contains parameters for saving a job
type SaveJobInput struct {
	Job *models.ScheduledJob
}

// GetJobInput contains parameters for retrieving a job
type GetJobInput struct {
	JobID string
}

// ListDueJobIDsInput contains parameters for listing due jobs
type ListDueJobIDsInput struct {
	Now   time.Time
	Limit int
}

// ClaimJobInput contains parameters for claiming a job
type ClaimJobInput struct {
	JobID string
	Token string
	Now   time.Time

	// LeaseUntil is when another executor may reclaim the job
	LeaseUntil time.Time
}

// CompleteJobInput contains parameters for completing a held job
type CompleteJobInput struct {
	Job *models.ScheduledJob
}

// ReleaseJobInput contains parameters for releasing a held job
type ReleaseJobInput struct {
	Job       *models.ScheduledJob
	FireAt    time.Time
	LastError string
}

// BuryJobInput contains parameters for burying a held job
type BuryJobInput struct {
	Job       *models.ScheduledJob
	LastError string
}

// ListJobsByTargetInput contains parameters for listing a target's jobs
type ListJobsByTargetInput struct {
	TargetID string
}

// DeleteJobsByTargetInput contains parameters for cancelling a target's jobs
type DeleteJobsByTargetInput struct {
	TargetID string
}
