package gathering

import (
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// SaveGatheringInput contains parameters for saving a gathering
type SaveGatheringInput struct {
	Gathering *models.Gathering
}

// GetGatheringInput contains parameters for retrieving a gathering
type GetGatheringInput struct {
	GatheringID string
}

// ListGatheringsInput contains parameters for listing a venue's gatherings
type ListGatheringsInput struct {
	VenueID string
}

// ListOpenGatheringsInput contains parameters for listing open gatherings
type ListOpenGatheringsInput struct {
	VenueID string
}

// ListGatheringsOutput contains the gatherings found
type ListGatheringsOutput struct {
	Gatherings []*models.Gathering
}

// TransitionGatheringInput contains parameters for a status change
type TransitionGatheringInput struct {
	GatheringID string
	To          models.GatheringStatus

	// At stamps OpenedAt or ClosedAt
	At time.Time
}

// TransitionGatheringOutput contains the gathering after the transition
type TransitionGatheringOutput struct {
	Gathering *models.Gathering

	// Changed is false when the gathering already had the target status
	Changed bool
}

// DeleteGatheringInput contains parameters for deleting a gathering
type DeleteGatheringInput struct {
	GatheringID string
}

// SaveResultsInput contains parameters for storing scores
type SaveResultsInput struct {
	GatheringID string
	Scores      []*models.ParticipantScore
}

// GetResultsInput contains parameters for retrieving scores
type GetResultsInput struct {
	GatheringID string
}
