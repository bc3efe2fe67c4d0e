package poll

//go:generate mockgen -package=mocks -destination=mocks/mock_repository.go github.com/KirkDiggler/gatherer/internal/repositories/poll Repository

import (
	"context"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// Repository defines the interface for poll persistence
type Repository interface {
	// SavePoll persists a poll
	SavePoll(ctx context.Context, input *SavePollInput) error

	// GetPoll retrieves a poll by ID
	GetPoll(ctx context.Context, input *GetPollInput) (*models.Poll, error)

	// ListPolls lists the polls of a venue, newest first
	ListPolls(ctx context.Context, input *ListPollsInput) (*ListPollsOutput, error)

	// ClosePoll stores results and marks the poll closed exactly once
	ClosePoll(ctx context.Context, input *ClosePollInput) (*ClosePollOutput, error)
}
