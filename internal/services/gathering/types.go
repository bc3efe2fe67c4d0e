package gathering

import (
	"time"

	"github.com/KirkDiggler/gatherer/internal/common/clock"
	"github.com/KirkDiggler/gatherer/internal/common/ids"
	"github.com/KirkDiggler/gatherer/internal/models"
	gatheringRepo "github.com/KirkDiggler/gatherer/internal/repositories/gathering"
	"github.com/KirkDiggler/gatherer/internal/services/ledger"
	"github.com/KirkDiggler/gatherer/internal/services/scheduler"
	"github.com/KirkDiggler/gatherer/internal/venue"
)

// Config holds the dependencies of the gathering service
type Config struct {
	GatheringRepo gatheringRepo.Repository
	Ledger        ledger.Service
	Scheduler     scheduler.Service
	Venue         venue.Client
	Clock         clock.Clock
	IDGenerator   ids.Generator
}

// CreateInput contains parameters for creating a gathering
type CreateInput struct {
	VenueID   string
	ChannelID string

	// RoleIDs may attend; ignored when AllCanAttend is set
	RoleIDs      []string
	AllCanAttend bool

	StartAt time.Time
	EndAt   time.Time
	Weight  float64

	CreatedBy string
}

// CreateOutput contains the created gathering
type CreateOutput struct {
	Gathering *models.Gathering
}

// GetInput contains parameters for retrieving a gathering
type GetInput struct {
	GatheringID string
}

// GetOutput contains the gathering
type GetOutput struct {
	Gathering *models.Gathering
}

// ListInput contains parameters for listing gatherings
type ListInput struct {
	VenueID string
}

// Summary is a gathering with display fields derived for listings
type Summary struct {
	Gathering *models.Gathering
	Duration  time.Duration

	// EligibleRoles renders the roles as venue mentions
	EligibleRoles string
}

// ListOutput contains the venue's gatherings ordered by start
type ListOutput struct {
	Gatherings []*Summary
}

// OpenInput contains parameters for opening a gathering
type OpenInput struct {
	GatheringID string
}

// OpenOutput reports what opening did
type OpenOutput struct {
	Gathering *models.Gathering

	// Seeded counts records created from the channel's members
	Seeded int
}

// CloseInput contains parameters for closing a gathering
type CloseInput struct {
	GatheringID string
}

// CloseOutput contains the final scores
type CloseOutput struct {
	Gathering *models.Gathering
	Scores    []*models.ParticipantScore
}

// DeleteInput contains parameters for deleting a gathering
type DeleteInput struct {
	GatheringID string
}

// GetResultsInput contains parameters for retrieving results
type GetResultsInput struct {
	GatheringID string
}

// GetResultsOutput contains a closed gathering's scores
type GetResultsOutput struct {
	Gathering *models.Gathering
	Scores    []*models.ParticipantScore
}
