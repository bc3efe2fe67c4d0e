package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KirkDiggler/gatherer/internal/common/clock"
	"github.com/KirkDiggler/gatherer/internal/common/ids"
	"github.com/KirkDiggler/gatherer/internal/common/logging"
	"github.com/KirkDiggler/gatherer/internal/models"
	pollRepo "github.com/KirkDiggler/gatherer/internal/repositories/poll"
	"github.com/KirkDiggler/gatherer/internal/services/scheduler"
	"github.com/KirkDiggler/gatherer/internal/venue"
)

// defaultCloseDelay applies when neither the poll nor the config sets one
const defaultCloseDelay = 24 * time.Hour

type service struct {
	pollRepo    pollRepo.Repository
	scheduler   scheduler.Service
	venue       venue.Client
	clock       clock.Clock
	idGenerator ids.Generator
	closeDelay  time.Duration
}

// New creates a new poll service
func New(cfg *Config) (*service, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.PollRepo == nil {
		return nil, ErrNilPollRepo
	}
	if cfg.Scheduler == nil {
		return nil, ErrNilScheduler
	}
	if cfg.Venue == nil {
		return nil, ErrNilVenue
	}
	if cfg.Clock == nil {
		return nil, ErrNilClock
	}
	if cfg.IDGenerator == nil {
		return nil, ErrNilIDGenerator
	}
	if cfg.CloseDelay < 0 {
		return nil, ErrInvalidDelay
	}

	closeDelay := cfg.CloseDelay
	if closeDelay == 0 {
		closeDelay = defaultCloseDelay
	}

	return &service{
		pollRepo:    cfg.PollRepo,
		scheduler:   cfg.Scheduler,
		venue:       cfg.Venue,
		clock:       cfg.Clock,
		idGenerator: cfg.IDGenerator,
		closeDelay:  closeDelay,
	}, nil
}

// Create stores the poll as open and schedules its close at CreatedAt plus the delay
func (s *service) Create(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	delay := input.CloseDelay
	if delay == 0 {
		delay = s.closeDelay
	}

	roleIDs := input.RoleIDs
	if input.AllCanVote || roleIDs == nil {
		roleIDs = []string{}
	}

	now := s.clock.Now()
	p := &models.Poll{
		ID:         s.idGenerator.NewID(),
		VenueID:    input.VenueID,
		ChannelID:  input.ChannelID,
		MessageID:  input.MessageID,
		Question:   input.Question,
		Options:    input.Options,
		RoleIDs:    roleIDs,
		AllCanVote: input.AllCanVote,
		CloseDelay: delay,
		CreatedBy:  input.CreatedBy,
		CreatedAt:  now,
		ClosesAt:   now.Add(delay),
		Status:     models.PollStatusOpen,
	}

	if err := s.pollRepo.SavePoll(ctx, &pollRepo.SavePollInput{Poll: p}); err != nil {
		return nil, fmt.Errorf("failed to save poll: %w", err)
	}

	if _, err := s.scheduler.Schedule(ctx, &scheduler.ScheduleInput{
		Kind:     models.JobKindClosePoll,
		TargetID: p.ID,
		FireAt:   p.ClosesAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule poll close: %w", err)
	}

	slog.InfoContext(ctx, "poll created", "poll_id", p.ID, "closes_at", p.ClosesAt)
	return &CreateOutput{Poll: p}, nil
}

func validateCreate(input *CreateInput) error {
	switch {
	case input == nil || input.VenueID == "":
		return ErrMissingVenue
	case input.ChannelID == "":
		return ErrMissingChannel
	case input.MessageID == "":
		return ErrMissingMessage
	case strings.TrimSpace(input.Question) == "":
		return ErrMissingQuestion
	case len(input.Options) < 2:
		return ErrTooFewOptions
	case !input.AllCanVote && len(input.RoleIDs) == 0:
		return ErrNoEligibility
	case input.CloseDelay < 0:
		return ErrInvalidDelay
	}

	seen := make(map[string]struct{}, len(input.Options))
	for _, o := range input.Options {
		if o.Emoji == "" {
			return ErrMissingEmoji
		}
		if _, ok := seen[o.Emoji]; ok {
			return ErrDuplicateOption
		}
		seen[o.Emoji] = struct{}{}
	}
	return nil
}

// Get retrieves a poll
func (s *service) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.PollID == "" {
		return nil, ErrMissingPoll
	}

	p, err := s.getPoll(ctx, input.PollID)
	if err != nil {
		return nil, err
	}
	return &GetOutput{Poll: p}, nil
}

func (s *service) getPoll(ctx context.Context, id string) (*models.Poll, error) {
	p, err := s.pollRepo.GetPoll(ctx, &pollRepo.GetPollInput{PollID: id})
	if err != nil {
		if errors.Is(err, pollRepo.ErrPollNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	return p, nil
}

// Close counts the reactions of eligible voters and stores them. Only the
// call that actually closes the poll posts the announcement.
func (s *service) Close(ctx context.Context, input *CloseInput) (*CloseOutput, error) {
	if input == nil || input.PollID == "" {
		return nil, ErrMissingPoll
	}
	ctx = logging.AppendCtx(ctx, slog.String("poll_id", input.PollID))

	p, err := s.getPoll(ctx, input.PollID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.PollStatusClosed {
		return &CloseOutput{Poll: p}, nil
	}

	results, err := s.tally(ctx, p)
	if err != nil {
		return nil, err
	}

	closed, err := s.pollRepo.ClosePoll(ctx, &pollRepo.ClosePollInput{
		PollID:   p.ID,
		Results:  results,
		ClosedAt: s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, pollRepo.ErrPollNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to close poll: %w", err)
	}

	output := &CloseOutput{Poll: closed.Poll}
	if !closed.Changed {
		return output, nil
	}

	if err := s.venue.SendMessage(ctx, p.ChannelID, Announcement(closed.Poll)); err != nil {
		slog.WarnContext(ctx, "failed to announce poll results", logging.ErrKey, err)
		return output, nil
	}
	output.Announced = true

	slog.InfoContext(ctx, "poll closed", "results", closed.Poll.Results)
	return output, nil
}

// tally counts, per option, the reactors holding an eligible role. Bots are
// filtered by the venue client.
func (s *service) tally(ctx context.Context, p *models.Poll) (map[string]int, error) {
	roles := make(map[string][]string)
	results := make(map[string]int, len(p.Options))

	for _, o := range p.Options {
		reactors, err := s.venue.GetReactors(ctx, p.VenueID, p.ChannelID, p.MessageID, o.Emoji)
		if err != nil {
			return nil, fmt.Errorf("failed to get reactions for %s: %w", o.Emoji, err)
		}

		count := 0
		for _, participantID := range reactors {
			if p.AllCanVote {
				count++
				continue
			}
			held, ok := roles[participantID]
			if !ok {
				held, err = s.venue.GetRoles(ctx, p.VenueID, participantID)
				if errors.Is(err, venue.ErrVenueNotFound) {
					held = []string{}
				} else if err != nil {
					return nil, fmt.Errorf("failed to get roles of %s: %w", participantID, err)
				}
				roles[participantID] = held
			}
			if p.IsEligible(held) {
				count++
			}
		}
		results[o.Emoji] = count
	}

	return results, nil
}

// Announcement renders the results message of a closed poll
func Announcement(p *models.Poll) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Poll closed:** %s\n", p.Question)
	for _, o := range p.Options {
		votes := p.Results[o.Emoji]
		noun := "votes"
		if votes == 1 {
			noun = "vote"
		}
		fmt.Fprintf(&b, "%s %s: %d %s\n", o.Emoji, o.Label, votes, noun)
	}
	return strings.TrimRight(b.String(), "\n")
}

// HandleJob closes a poll when its timer fires
func (s *service) HandleJob(ctx context.Context, job *models.ScheduledJob) error {
	if job.Kind != models.JobKindClosePoll {
		return scheduler.Permanent(fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind))
	}

	_, err := s.Close(ctx, &CloseInput{PollID: job.TargetID})
	if errors.Is(err, ErrPollNotFound) {
		return scheduler.Permanent(err)
	}
	return err
}
