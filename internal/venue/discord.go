package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KirkDiggler/gatherer/internal/cache"
	"github.com/KirkDiggler/gatherer/internal/common/logging"
	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/bwmarrin/discordgo"
)

// reactionPageSize is the largest page the reactions endpoint returns
const reactionPageSize = 100

// DiscordConfig holds configuration for the discord client
type DiscordConfig struct {
	Session *discordgo.Session

	// Cache stores member roles; nil disables caching
	Cache cache.Cache

	// RoleTTL is how long cached roles stay valid
	RoleTTL time.Duration
}

type discordClient struct {
	session *discordgo.Session
	cache   cache.Cache
	roleTTL time.Duration
}

var _ Client = (*discordClient)(nil)

// NewDiscord creates a venue client backed by a discordgo session
func NewDiscord(cfg *DiscordConfig) (*discordClient, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Session == nil {
		return nil, errors.New("session cannot be nil")
	}

	return &discordClient{
		session: cfg.Session,
		cache:   cfg.Cache,
		roleTTL: cfg.RoleTTL,
	}, nil
}

// GetMembers reads voice states from the session state cache
func (c *discordClient) GetMembers(ctx context.Context, venueID, channelID string) ([]*models.Member, error) {
	guild, err := c.session.State.Guild(venueID)
	if err != nil {
		if errors.Is(err, discordgo.ErrStateNotFound) {
			return nil, ErrVenueNotFound
		}
		return nil, fmt.Errorf("failed to read guild state: %w", err)
	}

	var members []*models.Member
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}

		roles, err := c.GetRoles(ctx, venueID, vs.UserID)
		if err != nil {
			slog.WarnContext(ctx, "skipping member without roles",
				"participant_id", vs.UserID, logging.ErrKey, err)
			continue
		}

		members = append(members, &models.Member{
			ParticipantID: vs.UserID,
			RoleIDs:       roles,
			State:         VoiceStateFromDiscord(vs),
		})
	}

	return members, nil
}

// GetRoles resolves roles from the cache, then the session state, then the API
func (c *discordClient) GetRoles(ctx context.Context, venueID, participantID string) ([]string, error) {
	key := roleKey(venueID, participantID)
	if c.cache != nil {
		val, err := c.cache.Get(ctx, key)
		if err == nil {
			return splitRoles(val), nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.WarnContext(ctx, "role cache read failed", logging.ErrKey, err)
		}
	}

	member, err := c.session.State.Member(venueID, participantID)
	if err != nil {
		member, err = c.session.GuildMember(venueID, participantID, discordgo.WithContext(ctx))
		if isUnknownMember(err) {
			return nil, ErrVenueNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get guild member: %w", err)
		}
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, strings.Join(member.Roles, ","), c.roleTTL); err != nil {
			slog.WarnContext(ctx, "role cache write failed", logging.ErrKey, err)
		}
	}

	return member.Roles, nil
}

// GetReactors pages through every user that reacted with emoji
func (c *discordClient) GetReactors(ctx context.Context, venueID, channelID, messageID, emoji string) ([]string, error) {
	var (
		users []string
		after string
	)
	for {
		page, err := c.session.MessageReactions(channelID, messageID, emoji, reactionPageSize, "", after, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list reactions: %w", err)
		}
		for _, u := range page {
			if u.Bot {
				continue
			}
			users = append(users, u.ID)
		}
		if len(page) < reactionPageSize {
			return users, nil
		}
		after = page[len(page)-1].ID
	}
}

func (c *discordClient) SendMessage(ctx context.Context, channelID, content string) error {
	if _, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// VoiceStateFromDiscord converts a discordgo voice state
func VoiceStateFromDiscord(vs *discordgo.VoiceState) models.VoiceState {
	if vs == nil {
		return models.VoiceState{}
	}
	return models.VoiceState{
		ChannelID:   vs.ChannelID,
		Muted:       vs.SelfMute || vs.SelfDeaf,
		Deafened:    vs.SelfDeaf,
		ServerMuted: vs.Mute,
		Streaming:   vs.SelfStream,
		CameraOn:    vs.SelfVideo,
	}
}

// isUnknownMember reports whether the API says the user left the guild
func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMember {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func roleKey(venueID, participantID string) string {
	return fmt.Sprintf("roles:%s:%s", venueID, participantID)
}

func splitRoles(val string) []string {
	if val == "" {
		return []string{}
	}
	return strings.Split(val, ",")
}
