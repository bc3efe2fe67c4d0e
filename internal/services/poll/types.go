package poll

import (
	"time"

	"github.com/KirkDiggler/gatherer/internal/common/clock"
	"github.com/KirkDiggler/gatherer/internal/common/ids"
	"github.com/KirkDiggler/gatherer/internal/models"
	pollRepo "github.com/KirkDiggler/gatherer/internal/repositories/poll"
	"github.com/KirkDiggler/gatherer/internal/services/scheduler"
	"github.com/KirkDiggler/gatherer/internal/venue"
)

// Config holds the dependencies of the poll service
type Config struct {
	PollRepo    pollRepo.Repository
	Scheduler   scheduler.Service
	Venue       venue.Client
	Clock       clock.Clock
	IDGenerator ids.Generator

	// CloseDelay is used when a poll does not set its own
	CloseDelay time.Duration
}

// CreateInput contains parameters for creating a poll
type CreateInput struct {
	VenueID   string
	ChannelID string

	// MessageID is the message voters react to
	MessageID string

	Question string
	Options  []models.PollOption

	RoleIDs    []string
	AllCanVote bool

	// CloseDelay overrides the default when positive
	CloseDelay time.Duration

	CreatedBy string
}

// CreateOutput contains the created poll
type CreateOutput struct {
	Poll *models.Poll
}

// GetInput contains parameters for retrieving a poll
type GetInput struct {
	PollID string
}

// GetOutput contains the poll
type GetOutput struct {
	Poll *models.Poll
}

// CloseInput contains parameters for closing a poll
type CloseInput struct {
	PollID string
}

// CloseOutput contains the closed poll
type CloseOutput struct {
	Poll *models.Poll

	// Announced is true when this call posted the results
	Announced bool
}
