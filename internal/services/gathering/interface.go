package gathering

//go:generate mockgen -package=mocks -destination=mocks/mock_service.go github.com/KirkDiggler/gatherer/internal/services/gathering Service

import (
	"context"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// Service manages gathering lifecycles and routes presence into the ledger
type Service interface {
	// Create validates and stores a gathering and schedules its open and close
	Create(ctx context.Context, input *CreateInput) (*CreateOutput, error)

	// Get retrieves a gathering
	Get(ctx context.Context, input *GetInput) (*GetOutput, error)

	// List lists the gatherings of a venue
	List(ctx context.Context, input *ListInput) (*ListOutput, error)

	// Open marks a gathering open and seeds members already in the channel
	Open(ctx context.Context, input *OpenInput) (*OpenOutput, error)

	// Close finalizes the ledger, scores participants and closes the gathering
	Close(ctx context.Context, input *CloseInput) (*CloseOutput, error)

	// Delete cancels a gathering's jobs and removes it with its records
	Delete(ctx context.Context, input *DeleteInput) error

	// GetResults returns the scores of a closed gathering
	GetResults(ctx context.Context, input *GetResultsInput) (*GetResultsOutput, error)

	// HandlePresence applies an event to every open gathering it concerns
	HandlePresence(ctx context.Context, event *models.PresenceEvent) error

	// HandleJob runs open and close jobs fired by the scheduler
	HandleJob(ctx context.Context, job *models.ScheduledJob) error
}
