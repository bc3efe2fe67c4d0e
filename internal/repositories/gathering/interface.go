package gathering

//go:generate mockgen -package=mocks -destination=mocks/mock_repository.go github.com/KirkDiggler/gatherer/internal/repositories/gathering Repository

import (
	"context"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// Repository defines the interface for gathering persistence
type Repository interface {
	// SaveGathering persists a gathering and maintains the venue indexes
	SaveGathering(ctx context.Context, input *SaveGatheringInput) error

	// GetGathering retrieves a gathering by ID
	GetGathering(ctx context.Context, input *GetGatheringInput) (*models.Gathering, error)

	// ListGatherings lists every gathering of a venue ordered by start time
	ListGatherings(ctx context.Context, input *ListGatheringsInput) (*ListGatheringsOutput, error)

	// ListOpenGatherings lists the open gatherings of a venue
	ListOpenGatherings(ctx context.Context, input *ListOpenGatheringsInput) (*ListGatheringsOutput, error)

	// TransitionGathering moves a gathering to a new status unless it is closed
	TransitionGathering(ctx context.Context, input *TransitionGatheringInput) (*TransitionGatheringOutput, error)

	// DeleteGathering removes a gathering, its indexes and its results
	DeleteGathering(ctx context.Context, input *DeleteGatheringInput) error

	// SaveResults stores the scores of a closed gathering
	SaveResults(ctx context.Context, input *SaveResultsInput) error

	// GetResults retrieves the scores of a closed gathering
	GetResults(ctx context.Context, input *GetResultsInput) ([]*models.ParticipantScore, error)
}
