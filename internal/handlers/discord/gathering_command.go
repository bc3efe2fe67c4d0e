package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KirkDiggler/gatherer/internal/common/clock"
	"github.com/KirkDiggler/gatherer/internal/common/logging"
	"github.com/KirkDiggler/gatherer/internal/services/gathering"
	"github.com/bwmarrin/discordgo"
)

// startLayout is accepted for absolute start times, read as UTC
const startLayout = "2006-01-02 15:04"

var minDuration = 1.0

// GatheringCommand handles the /gathering command
type GatheringCommand struct {
	BaseCommand
	gatheringService gathering.Service
	clock            clock.Clock
}

// NewGatheringCommand creates a new gathering command handler
func NewGatheringCommand(gatheringService gathering.Service, clk clock.Clock) *GatheringCommand {
	return &GatheringCommand{
		BaseCommand: BaseCommand{
			Name:        "gathering",
			Description: "Schedule and review community gatherings",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "Schedule a gathering in a voice channel",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "channel",
							Description:  "Voice channel to track",
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice},
							Required:     true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "start",
							Description: "Start as \"2025-04-05 18:00\" (UTC) or an offset like \"30m\"",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "minutes",
							Description: "How long the gathering lasts",
							MinValue:    &minDuration,
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "role",
							Description: "Role allowed to attend",
						},
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "everyone",
							Description: "Let every member attend",
						},
						{
							Type:        discordgo.ApplicationCommandOptionNumber,
							Name:        "weight",
							Description: "Score multiplier, defaults to 1",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List this server's gatherings",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "results",
					Description: "Show the scores of a closed gathering",
					Options:     []*discordgo.ApplicationCommandOption{gatheringIDOption()},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "cancel",
					Description: "Cancel a gathering",
					Options:     []*discordgo.ApplicationCommandOption{gatheringIDOption()},
				},
			},
		},
		gatheringService: gatheringService,
		clock:            clk,
	}
}

func gatheringIDOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "id",
		Description: "Gathering ID",
		Required:    true,
	}
}

// Handle processes a Discord interaction for the gathering command
func (c *GatheringCommand) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()
	if data.Name != c.Name || len(data.Options) == 0 {
		return nil
	}
	if i.GuildID == "" {
		return RespondWithError(s, i, "Gatherings can only be managed inside a server.")
	}

	ctx := logging.AppendCtx(context.Background(), slog.String("venue_id", i.GuildID))
	sub := data.Options[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "create":
		return c.handleCreate(ctx, s, i, opts)
	case "list":
		return c.handleList(ctx, s, i)
	case "results":
		return c.handleResults(ctx, s, i, opts)
	case "cancel":
		return c.handleCancel(ctx, s, i, opts)
	}
	return errors.New("unknown subcommand")
}

func (c *GatheringCommand) handleCreate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) error {
	input, err := c.createInput(i, opts)
	if err != nil {
		return RespondWithError(s, i, err.Error())
	}

	out, err := c.gatheringService.Create(ctx, input)
	if err != nil {
		return c.respondError(ctx, s, i, err)
	}

	return RespondWithEmbed(s, i, renderGatheringCreated(out.Gathering))
}

func (c *GatheringCommand) createInput(i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) (*gathering.CreateInput, error) {
	input := &gathering.CreateInput{
		VenueID:   i.GuildID,
		Weight:    1,
		CreatedBy: invoker(i),
	}

	if o, ok := opts["channel"]; ok {
		input.ChannelID = o.ChannelValue(nil).ID
	}

	startRaw := ""
	if o, ok := opts["start"]; ok {
		startRaw = o.StringValue()
	}
	start, err := ParseStart(startRaw, c.clock.Now())
	if err != nil {
		return nil, err
	}
	input.StartAt = start

	if o, ok := opts["minutes"]; ok {
		input.EndAt = start.Add(time.Duration(o.IntValue()) * time.Minute)
	}
	if o, ok := opts["role"]; ok {
		input.RoleIDs = []string{o.RoleValue(nil, i.GuildID).ID}
	}
	if o, ok := opts["everyone"]; ok {
		input.AllCanAttend = o.BoolValue()
	}
	if o, ok := opts["weight"]; ok {
		input.Weight = o.FloatValue()
	}

	return input, nil
}

// ParseStart reads an absolute UTC time or an offset from now
func ParseStart(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("a start time is required")
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d < 0 {
			return time.Time{}, errors.New("the start offset cannot be negative")
		}
		return now.Add(d), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(startLayout, raw, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("could not read start %q, use \"%s\" or an offset like \"45m\"", raw, startLayout)
}

func (c *GatheringCommand) handleList(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
	out, err := c.gatheringService.List(ctx, &gathering.ListInput{VenueID: i.GuildID})
	if err != nil {
		return c.respondError(ctx, s, i, err)
	}
	return RespondWithEmbed(s, i, renderGatheringList(out.Gatherings))
}

func (c *GatheringCommand) handleResults(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) error {
	out, err := c.gatheringService.GetResults(ctx, &gathering.GetResultsInput{GatheringID: idOption(opts)})
	if err != nil {
		return c.respondError(ctx, s, i, err)
	}
	return RespondWithEmbed(s, i, renderGatheringResults(out.Gathering, out.Scores))
}

func (c *GatheringCommand) handleCancel(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) error {
	id := idOption(opts)
	if err := c.gatheringService.Delete(ctx, &gathering.DeleteInput{GatheringID: id}); err != nil {
		return c.respondError(ctx, s, i, err)
	}
	return RespondWithEphemeralMessage(s, i, fmt.Sprintf("Gathering `%s` cancelled.", id))
}

func idOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption) string {
	if o, ok := opts["id"]; ok {
		return strings.TrimSpace(o.StringValue())
	}
	return ""
}

func (c *GatheringCommand) respondError(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, err error) error {
	switch {
	case gathering.IsValidationError(err):
		return RespondWithError(s, i, err.Error())
	case errors.Is(err, gathering.ErrGatheringNotFound):
		return RespondWithError(s, i, "That gathering does not exist.")
	case errors.Is(err, gathering.ErrResultsNotReady):
		return RespondWithError(s, i, "That gathering has not closed yet.")
	}

	slog.ErrorContext(ctx, "gathering command failed", logging.ErrKey, err)
	return RespondWithError(s, i, "Something went wrong, please try again.")
}
