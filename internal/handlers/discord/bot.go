package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KirkDiggler/gatherer/internal/common/clock"
	"github.com/KirkDiggler/gatherer/internal/common/logging"
	"github.com/KirkDiggler/gatherer/internal/presence"
	"github.com/KirkDiggler/gatherer/internal/services/gathering"
	"github.com/KirkDiggler/gatherer/internal/services/poll"
	"github.com/KirkDiggler/gatherer/internal/venue"
	"github.com/bwmarrin/discordgo"
)

// Intents the bot needs to follow voice channels, members and poll reactions
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessageReactions

// Bot represents the Discord bot instance
type Bot struct {
	session    *discordgo.Session
	commands   map[string]CommandHandler
	commandIDs map[string]string // Maps command name to command ID
	intake     *Intake
	config     *Config
}

// Config holds the configuration for the bot
type Config struct {
	// Session is an already created session; the bot does not own its lifecycle
	// until Start is called
	Session *discordgo.Session

	// Application ID for the bot
	ApplicationID string

	// Optional guild ID for development (server-specific commands)
	GuildID string

	GatheringService gathering.Service
	PollService      poll.Service
	Bus              presence.Bus
	Venue            venue.Client
	Clock            clock.Clock
}

// NewSession creates a session with the intents and state tracking the bot relies on
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = Intents
	session.StateEnabled = true
	session.State.TrackVoice = true
	session.State.TrackMembers = true

	return session, nil
}

// New creates a new Discord bot
func New(cfg *Config) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Session == nil {
		return nil, errors.New("session cannot be nil")
	}
	if cfg.GatheringService == nil {
		return nil, errors.New("gathering service cannot be nil")
	}
	if cfg.PollService == nil {
		return nil, errors.New("poll service cannot be nil")
	}
	if cfg.Clock == nil {
		return nil, errors.New("clock cannot be nil")
	}

	intake, err := NewIntake(&IntakeConfig{
		Bus:   cfg.Bus,
		Venue: cfg.Venue,
		Clock: cfg.Clock,
	})
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		session:    cfg.Session,
		commands:   make(map[string]CommandHandler),
		commandIDs: make(map[string]string),
		intake:     intake,
		config:     cfg,
	}

	cfg.Session.AddHandler(bot.handleInteraction)
	cfg.Session.AddHandler(bot.handleVoiceStateUpdate)

	return bot, nil
}

// Start opens the gateway connection and registers the slash commands
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	commands := []CommandHandler{
		NewGatheringCommand(b.config.GatheringService, b.config.Clock),
		NewPollCommand(b.config.PollService),
	}
	for _, cmd := range commands {
		if err := b.RegisterCommand(cmd); err != nil {
			return fmt.Errorf("failed to register %s command: %w", cmd.GetName(), err)
		}
	}

	slog.Info("bot is now running")
	return nil
}

// Stop removes the registered commands and closes the connection
func (b *Bot) Stop() error {
	appID := b.appID()
	for cmdName, cmdID := range b.commandIDs {
		if err := b.session.ApplicationCommandDelete(appID, b.config.GuildID, cmdID); err != nil {
			slog.Warn("failed to delete command", "command", cmdName, "command_id", cmdID, logging.ErrKey, err)
			continue
		}
		slog.Info("deleted command", "command", cmdName, "command_id", cmdID)
	}

	return b.session.Close()
}

// RegisterCommand registers a command with Discord. Without a guild ID the
// command is registered globally.
func (b *Bot) RegisterCommand(cmd CommandHandler) error {
	createdCmd, err := b.session.ApplicationCommandCreate(b.appID(), b.config.GuildID, cmd.GetCommand())
	if err != nil {
		return fmt.Errorf("failed to create command %s: %w", cmd.GetName(), err)
	}

	b.commands[cmd.GetName()] = cmd
	b.commandIDs[cmd.GetName()] = createdCmd.ID
	slog.Info("registered command", "command", cmd.GetName(), "command_id", createdCmd.ID, "guild_id", b.config.GuildID)

	return nil
}

func (b *Bot) appID() string {
	if b.config.ApplicationID != "" {
		return b.config.ApplicationID
	}
	return b.session.State.User.ID
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	h, ok := b.commands[name]
	if !ok {
		return
	}
	if err := h.Handle(s, i); err != nil {
		slog.Error("error handling command", "command", name, logging.ErrKey, err)
	}
}

func (b *Bot) handleVoiceStateUpdate(_ *discordgo.Session, vu *discordgo.VoiceStateUpdate) {
	ctx := logging.AppendCtx(context.Background(), slog.String("venue_id", vu.GuildID))
	if err := b.intake.Ingest(ctx, vu); err != nil {
		slog.WarnContext(ctx, "failed to ingest voice state", "participant_id", vu.UserID, logging.ErrKey, err)
	}
}
