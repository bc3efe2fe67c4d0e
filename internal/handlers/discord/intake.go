package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/KirkDiggler/gatherer/internal/common/clock"
	"github.com/KirkDiggler/gatherer/internal/presence"
	"github.com/KirkDiggler/gatherer/internal/venue"
	"github.com/bwmarrin/discordgo"
)

// IntakeConfig holds the dependencies of the voice state intake
type IntakeConfig struct {
	Bus   presence.Bus
	Venue venue.Client
	Clock clock.Clock
}

// Intake turns gateway voice state updates into presence events
type Intake struct {
	bus   presence.Bus
	venue venue.Client
	clock clock.Clock
}

// NewIntake creates a voice state intake
func NewIntake(cfg *IntakeConfig) (*Intake, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Bus == nil {
		return nil, errors.New("presence bus cannot be nil")
	}
	if cfg.Venue == nil {
		return nil, errors.New("venue client cannot be nil")
	}
	if cfg.Clock == nil {
		return nil, errors.New("clock cannot be nil")
	}

	return &Intake{
		bus:   cfg.Bus,
		venue: cfg.Venue,
		clock: cfg.Clock,
	}, nil
}

// Ingest normalizes an update against the state it replaces and publishes it
func (in *Intake) Ingest(ctx context.Context, vu *discordgo.VoiceStateUpdate) error {
	if vu == nil || vu.VoiceState == nil || vu.GuildID == "" || vu.UserID == "" {
		return nil
	}
	if vu.Member != nil && vu.Member.User != nil && vu.Member.User.Bot {
		return nil
	}

	roles, err := in.roles(ctx, vu)
	if err != nil {
		return err
	}

	event := presence.Normalize(Snapshot(vu.BeforeUpdate), Snapshot(vu.VoiceState), presence.Meta{
		VenueID:       vu.GuildID,
		ParticipantID: vu.UserID,
		RoleIDs:       roles,
		ReceivedAt:    in.clock.Now(),
	})

	if err := in.bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish presence event: %w", err)
	}
	return nil
}

// roles prefers the member attached to the update and falls back to the venue
func (in *Intake) roles(ctx context.Context, vu *discordgo.VoiceStateUpdate) ([]string, error) {
	if vu.Member != nil && vu.Member.Roles != nil {
		return vu.Member.Roles, nil
	}

	roles, err := in.venue.GetRoles(ctx, vu.GuildID, vu.UserID)
	if errors.Is(err, venue.ErrVenueNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve roles: %w", err)
	}
	return roles, nil
}

// Snapshot converts a gateway voice state. A nil state or one without a
// channel means the user was not connected.
func Snapshot(vs *discordgo.VoiceState) *presence.Snapshot {
	if vs == nil {
		return nil
	}

	channelID := vs.ChannelID
	selfMute, selfDeaf, serverMute := vs.SelfMute, vs.SelfDeaf, vs.Mute
	stream, video := vs.SelfStream, vs.SelfVideo

	return &presence.Snapshot{
		ChannelID:  &channelID,
		SelfMute:   &selfMute,
		SelfDeaf:   &selfDeaf,
		ServerMute: &serverMute,
		SelfStream: &stream,
		SelfVideo:  &video,
	}
}
