package venue

//go:generate mockgen -package=mocks -destination=mocks/mock_client.go github.com/KirkDiggler/gatherer/internal/venue Client

import (
	"context"
	"errors"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// ErrVenueNotFound is returned when the platform does not know the venue or member
var ErrVenueNotFound = errors.New("venue not found")

// Client is the read and notify surface of the community platform
type Client interface {
	// GetMembers lists members currently connected to channelID
	GetMembers(ctx context.Context, venueID, channelID string) ([]*models.Member, error)

	// GetRoles returns the role ids a member holds in the venue
	GetRoles(ctx context.Context, venueID, participantID string) ([]string, error)

	// GetReactors lists the users that reacted to a message with emoji
	GetReactors(ctx context.Context, venueID, channelID, messageID, emoji string) ([]string, error)

	// SendMessage posts a plain text message to a channel
	SendMessage(ctx context.Context, channelID, content string) error
}
