package poll

import (
	"context"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// Service runs reaction polls that close themselves after a delay
type Service interface {
	// Create stores an open poll and schedules its close
	Create(ctx context.Context, input *CreateInput) (*CreateOutput, error)

	// Get retrieves a poll
	Get(ctx context.Context, input *GetInput) (*GetOutput, error)

	// Close tallies eligible votes and announces the result once
	Close(ctx context.Context, input *CloseInput) (*CloseOutput, error)

	// HandleJob runs close jobs fired by the scheduler
	HandleJob(ctx context.Context, job *models.ScheduledJob) error
}
