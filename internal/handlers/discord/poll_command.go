package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KirkDiggler/gatherer/internal/common/logging"
	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/KirkDiggler/gatherer/internal/services/poll"
	"github.com/bwmarrin/discordgo"
)

var minCloseHours = 1.0

// PollCommand handles the /poll command
type PollCommand struct {
	BaseCommand
	pollService poll.Service
}

// NewPollCommand creates a new poll command handler
func NewPollCommand(pollService poll.Service) *PollCommand {
	return &PollCommand{
		BaseCommand: BaseCommand{
			Name:        "poll",
			Description: "Run a reaction poll",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "Post a poll that closes itself",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "question",
							Description: "What to ask",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "options",
							Description: "Emoji and label pairs separated by ';', e.g. \"🍕 Pizza; 🌮 Tacos\"",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "role",
							Description: "Role allowed to vote",
						},
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "everyone",
							Description: "Let every member vote",
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "hours",
							Description: "Hours until the poll closes",
							MinValue:    &minCloseHours,
						},
					},
				},
			},
		},
		pollService: pollService,
	}
}

// Handle processes a Discord interaction for the poll command
func (c *PollCommand) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()
	if data.Name != c.Name || len(data.Options) == 0 || data.Options[0].Name != "create" {
		return nil
	}
	if i.GuildID == "" {
		return RespondWithError(s, i, "Polls can only run inside a server.")
	}

	ctx := logging.AppendCtx(context.Background(), slog.String("venue_id", i.GuildID))
	opts := optionMap(data.Options[0].Options)

	input := &poll.CreateInput{
		VenueID:   i.GuildID,
		ChannelID: i.ChannelID,
		CreatedBy: invoker(i),
	}
	if o, ok := opts["question"]; ok {
		input.Question = strings.TrimSpace(o.StringValue())
	}
	if o, ok := opts["role"]; ok {
		input.RoleIDs = []string{o.RoleValue(nil, i.GuildID).ID}
	}
	if o, ok := opts["everyone"]; ok {
		input.AllCanVote = o.BoolValue()
	}
	if o, ok := opts["hours"]; ok {
		input.CloseDelay = time.Duration(o.IntValue()) * time.Hour
	}

	raw := ""
	if o, ok := opts["options"]; ok {
		raw = o.StringValue()
	}
	options, err := ParsePollOptions(raw)
	if err != nil {
		return RespondWithError(s, i, err.Error())
	}
	input.Options = options

	if err := RespondWithMessage(s, i, renderPollMessage(input.Question, options)); err != nil {
		return fmt.Errorf("failed to post poll: %w", err)
	}

	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		return fmt.Errorf("failed to read posted poll: %w", err)
	}
	input.MessageID = msg.ID

	for _, o := range options {
		if err := s.MessageReactionAdd(i.ChannelID, msg.ID, o.Emoji); err != nil {
			slog.WarnContext(ctx, "failed to add poll reaction", "emoji", o.Emoji, logging.ErrKey, err)
		}
	}

	if _, err := c.pollService.Create(ctx, input); err != nil {
		reply := "Something went wrong, the poll will not close on its own."
		if poll.IsValidationError(err) {
			reply = err.Error()
		} else {
			slog.ErrorContext(ctx, "failed to create poll", logging.ErrKey, err)
		}
		_, ferr := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: reply,
			Flags:   discordgo.MessageFlagsEphemeral,
		})
		return errors.Join(err, ferr)
	}

	return nil
}

// ParsePollOptions reads "emoji label; emoji label" pairs
func ParsePollOptions(raw string) ([]models.PollOption, error) {
	var options []models.PollOption
	for _, part := range strings.Split(raw, ";") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		if len(fields) == 1 {
			return nil, fmt.Errorf("option %q needs an emoji and a label", strings.TrimSpace(part))
		}
		options = append(options, models.PollOption{
			Emoji: fields[0],
			Label: strings.Join(fields[1:], " "),
		})
	}
	if len(options) < 2 {
		return nil, errors.New("a poll needs at least two options")
	}
	return options, nil
}
