package poll

import (
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// SavePollInput contains parameters for saving a poll
type SavePollInput struct {
	Poll *models.Poll
}

// GetPollInput contains parameters for retrieving a poll
type GetPollInput struct {
	PollID string
}

// ListPollsInput contains parameters for listing polls
type ListPollsInput struct {
	VenueID string
}

// ListPollsOutput contains the polls found
type ListPollsOutput struct {
	Polls []*models.Poll
}

// ClosePollInput contains parameters for closing a poll
type ClosePollInput struct {
	PollID   string
	Results  map[string]int
	ClosedAt time.Time
}

// ClosePollOutput contains the poll after closing
type ClosePollOutput struct {
	Poll *models.Poll

	// Changed is false when the poll was already closed
	Changed bool
}
