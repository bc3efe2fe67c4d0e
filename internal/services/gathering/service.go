package gathering

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
	gatheringRepo "github.com/KirkDiggler/gatherer/internal/repositories/gathering"
	"github.com/KirkDiggler/gatherer/internal/services/ledger"
	"github.com/KirkDiggler/gatherer/internal/services/scheduler"
	"github.com/KirkDiggler/gatherer/internal/services/score"
	"github.com/KirkDiggler/gatherer/internal/venue"
)

// everyoneMention is shown when a gathering is open to all members
const everyoneMention = "@everyone"

type service struct {
	gatheringRepo gatheringRepo.Repository
	ledger        ledger.Service
	scheduler     scheduler.Service
	venue         venue.Client
	clock         clock.Clock
	idGenerator   ids.Generator
}

// New creates a new gathering service
func New(cfg *Config) (*service, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.GatheringRepo == nil {
		return nil, ErrNilGatheringRepo
	}
	if cfg.Ledger == nil {
		return nil, ErrNilLedger
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

	return &service{
		gatheringRepo: cfg.GatheringRepo,
		ledger:        cfg.Ledger,
		scheduler:     cfg.Scheduler,
		venue:         cfg.Venue,
		clock:         cfg.Clock,
		idGenerator:   cfg.IDGenerator,
	}, nil
}

// Create validates the window, stores it as scheduled and enqueues its jobs
func (s *service) Create(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	roleIDs := input.RoleIDs
	if input.AllCanAttend || roleIDs == nil {
		roleIDs = []string{}
	}

	g := &models.Gathering{
		ID:           s.idGenerator.NewID(),
		VenueID:      input.VenueID,
		ChannelID:    input.ChannelID,
		RoleIDs:      roleIDs,
		AllCanAttend: input.AllCanAttend,
		StartAt:      input.StartAt.UTC(),
		EndAt:        input.EndAt.UTC(),
		Weight:       input.Weight,
		Status:       models.GatheringStatusScheduled,
		CreatedBy:    input.CreatedBy,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.gatheringRepo.SaveGathering(ctx, &gatheringRepo.SaveGatheringInput{Gathering: g}); err != nil {
		return nil, fmt.Errorf("failed to save gathering: %w", err)
	}

	if _, err := s.scheduler.Schedule(ctx, &scheduler.ScheduleInput{
		Kind:     models.JobKindOpenGathering,
		TargetID: g.ID,
		FireAt:   g.StartAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule open: %w", err)
	}

	if _, err := s.scheduler.Schedule(ctx, &scheduler.ScheduleInput{
		Kind:     models.JobKindCloseGathering,
		TargetID: g.ID,
		FireAt:   g.EndAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule close: %w", err)
	}

	slog.InfoContext(ctx, "gathering created",
		"gathering_id", g.ID, "venue_id", g.VenueID, "start_at", g.StartAt, "end_at", g.EndAt)

	return &CreateOutput{Gathering: g}, nil
}

func validateCreate(input *CreateInput) error {
	switch {
	case input == nil || input.VenueID == "":
		return ErrMissingVenue
	case input.ChannelID == "":
		return ErrMissingChannel
	case input.StartAt.IsZero() || input.EndAt.IsZero() || !input.StartAt.Before(input.EndAt):
		return ErrInvalidWindow
	case input.Weight < 0:
		return ErrInvalidWeight
	case !input.AllCanAttend && len(input.RoleIDs) == 0:
		return ErrNoEligibility
	}
	return nil
}

// Get retrieves a gathering
func (s *service) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.GatheringID == "" {
		return nil, ErrMissingGathering
	}

	g, err := s.getGathering(ctx, input.GatheringID)
	if err != nil {
		return nil, err
	}

	return &GetOutput{Gathering: g}, nil
}

func (s *service) getGathering(ctx context.Context, id string) (*models.Gathering, error) {
	g, err := s.gatheringRepo.GetGathering(ctx, &gatheringRepo.GetGatheringInput{GatheringID: id})
	if err != nil {
		if errors.Is(err, gatheringRepo.ErrGatheringNotFound) {
			return nil, ErrGatheringNotFound
		}
		return nil, fmt.Errorf("failed to get gathering: %w", err)
	}
	return g, nil
}

// List lists the gatherings of a venue with derived display fields
func (s *service) List(ctx context.Context, input *ListInput) (*ListOutput, error) {
	if input == nil || input.VenueID == "" {
		return nil, ErrMissingVenue
	}

	out, err := s.gatheringRepo.ListGatherings(ctx, &gatheringRepo.ListGatheringsInput{VenueID: input.VenueID})
	if err != nil {
		return nil, fmt.Errorf("failed to list gatherings: %w", err)
	}

	summaries := make([]*Summary, 0, len(out.Gatherings))
	for _, g := range out.Gatherings {
		summaries = append(summaries, &Summary{
			Gathering:     g,
			Duration:      g.Duration(),
			EligibleRoles: EligibleRoles(g),
		})
	}

	return &ListOutput{Gatherings: summaries}, nil
}

// EligibleRoles renders who may attend as venue mentions
func EligibleRoles(g *models.Gathering) string {
	if g.AllCanAttend {
		return everyoneMention
	}
	mentions := make([]string, len(g.RoleIDs))
	for i, id := range g.RoleIDs {
		mentions[i] = "<@&" + id + ">"
	}
	return strings.Join(mentions, ", ")
}

// Open moves the gathering to open and seeds eligible members already in
// the channel. Safe to run again: seeding never overwrites a record.
func (s *service) Open(ctx context.Context, input *OpenInput) (*OpenOutput, error) {
	if input == nil || input.GatheringID == "" {
		return nil, ErrMissingGathering
	}
	ctx = logging.AppendCtx(ctx, slog.String("gathering_id", input.GatheringID))

	now := s.clock.Now()
	transition, err := s.gatheringRepo.TransitionGathering(ctx, &gatheringRepo.TransitionGatheringInput{
		GatheringID: input.GatheringID,
		To:          models.GatheringStatusOpen,
		At:          now,
	})
	switch {
	case errors.Is(err, gatheringRepo.ErrGatheringNotFound):
		return nil, ErrGatheringNotFound
	case errors.Is(err, gatheringRepo.ErrGatheringClosed):
		slog.InfoContext(ctx, "gathering already closed, skipping open")
		g, getErr := s.getGathering(ctx, input.GatheringID)
		if getErr != nil {
			return nil, getErr
		}
		return &OpenOutput{Gathering: g}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to open gathering: %w", err)
	}
	g := transition.Gathering

	members, err := s.venue.GetMembers(ctx, g.VenueID, g.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel members: %w", err)
	}

	output := &OpenOutput{Gathering: g}
	for _, m := range members {
		if !g.IsEligible(m.RoleIDs) {
			continue
		}
		seeded, err := s.ledger.Seed(ctx, &ledger.SeedInput{
			GatheringID: g.ID,
			ChannelID:   g.ChannelID,
			Member:      m,
			Now:         now,
		})
		if errors.Is(err, ledger.ErrRecordClosed) {
			slog.InfoContext(ctx, "gathering finalized while seeding, skipping remaining members")
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to seed participant %s: %w", m.ParticipantID, err)
		}
		if seeded.Created {
			output.Seeded++
		}
	}

	slog.InfoContext(ctx, "gathering opened", "seeded", output.Seeded, "members", len(members))
	return output, nil
}

// Close finalizes at the earlier of now and the gathering end, stores the
// scores and only then marks the gathering closed
func (s *service) Close(ctx context.Context, input *CloseInput) (*CloseOutput, error) {
	if input == nil || input.GatheringID == "" {
		return nil, ErrMissingGathering
	}
	ctx = logging.AppendCtx(ctx, slog.String("gathering_id", input.GatheringID))

	g, err := s.getGathering(ctx, input.GatheringID)
	if err != nil {
		return nil, err
	}

	if g.Status.IsClosed() {
		scores, err := s.gatheringRepo.GetResults(ctx, &gatheringRepo.GetResultsInput{GatheringID: g.ID})
		if err != nil && !errors.Is(err, gatheringRepo.ErrResultsNotFound) {
			return nil, fmt.Errorf("failed to get results: %w", err)
		}
		return &CloseOutput{Gathering: g, Scores: scores}, nil
	}

	now := s.clock.Now()
	finalizeAt := now
	if g.EndAt.Before(now) {
		finalizeAt = g.EndAt
	}

	finalized, err := s.ledger.Finalize(ctx, &ledger.FinalizeInput{
		GatheringID: g.ID,
		Now:         finalizeAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize ledger: %w", err)
	}

	scores := score.ForGathering(g, finalized.Records)
	if err := s.gatheringRepo.SaveResults(ctx, &gatheringRepo.SaveResultsInput{
		GatheringID: g.ID,
		Scores:      scores,
	}); err != nil {
		return nil, fmt.Errorf("failed to save results: %w", err)
	}

	transition, err := s.gatheringRepo.TransitionGathering(ctx, &gatheringRepo.TransitionGatheringInput{
		GatheringID: g.ID,
		To:          models.GatheringStatusClosed,
		At:          now,
	})
	if err != nil {
		if errors.Is(err, gatheringRepo.ErrGatheringNotFound) {
			return nil, ErrGatheringNotFound
		}
		return nil, fmt.Errorf("failed to close gathering: %w", err)
	}

	slog.InfoContext(ctx, "gathering closed",
		"participants", len(scores), "finalized", finalized.Finalized, "finalized_at", finalizeAt)

	return &CloseOutput{Gathering: transition.Gathering, Scores: scores}, nil
}

// Delete cancels pending jobs first so nothing fires for a removed gathering
func (s *service) Delete(ctx context.Context, input *DeleteInput) error {
	if input == nil || input.GatheringID == "" {
		return ErrMissingGathering
	}

	if _, err := s.getGathering(ctx, input.GatheringID); err != nil {
		return err
	}

	cancelled, err := s.scheduler.Cancel(ctx, &scheduler.CancelInput{TargetID: input.GatheringID})
	if err != nil {
		return fmt.Errorf("failed to cancel gathering jobs: %w", err)
	}

	if err := s.ledger.DeleteRecords(ctx, &ledger.DeleteRecordsInput{GatheringID: input.GatheringID}); err != nil {
		return err
	}

	if err := s.gatheringRepo.DeleteGathering(ctx, &gatheringRepo.DeleteGatheringInput{GatheringID: input.GatheringID}); err != nil {
		if errors.Is(err, gatheringRepo.ErrGatheringNotFound) {
			return ErrGatheringNotFound
		}
		return fmt.Errorf("failed to delete gathering: %w", err)
	}

	slog.InfoContext(ctx, "gathering deleted",
		"gathering_id", input.GatheringID, "cancelled_jobs", cancelled.Cancelled)
	return nil
}

// GetResults returns the scores of a closed gathering
func (s *service) GetResults(ctx context.Context, input *GetResultsInput) (*GetResultsOutput, error) {
	if input == nil || input.GatheringID == "" {
		return nil, ErrMissingGathering
	}

	g, err := s.getGathering(ctx, input.GatheringID)
	if err != nil {
		return nil, err
	}
	if !g.Status.IsClosed() {
		return nil, ErrResultsNotReady
	}

	scores, err := s.gatheringRepo.GetResults(ctx, &gatheringRepo.GetResultsInput{GatheringID: g.ID})
	if err != nil {
		if errors.Is(err, gatheringRepo.ErrResultsNotFound) {
			return &GetResultsOutput{Gathering: g, Scores: []*models.ParticipantScore{}}, nil
		}
		return nil, fmt.Errorf("failed to get results: %w", err)
	}

	return &GetResultsOutput{Gathering: g, Scores: scores}, nil
}

// HandlePresence applies an event to each open gathering whose channel the
// participant left or entered, if it was received inside the window and the
// participant holds an eligible role. Other events are ignored. Intervals are
// timed by receipt, so time spent queued on the bus is not credited.
func (s *service) HandlePresence(ctx context.Context, event *models.PresenceEvent) error {
	if event == nil || event.VenueID == "" || event.ParticipantID == "" {
		return ledger.ErrNilPresence
	}

	open, err := s.gatheringRepo.ListOpenGatherings(ctx, &gatheringRepo.ListOpenGatheringsInput{VenueID: event.VenueID})
	if err != nil {
		return fmt.Errorf("failed to list open gatherings: %w", err)
	}

	receivedAt := event.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.clock.Now()
	}

	var errs []error
	for _, g := range open.Gatherings {
		if !concerns(g, event, receivedAt) {
			continue
		}
		if !g.IsEligible(event.RoleIDs) {
			continue
		}

		_, err := s.ledger.Apply(ctx, &ledger.ApplyInput{
			GatheringID: g.ID,
			ChannelID:   g.ChannelID,
			Event:       event,
			Now:         receivedAt,
		})
		if errors.Is(err, ledger.ErrRecordClosed) {
			slog.DebugContext(ctx, "ignoring event for finalized record", "gathering_id", g.ID)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("gathering %s: %w", g.ID, err))
		}
	}

	return errors.Join(errs...)
}

// concerns uses the same end bound Close finalizes at
func concerns(g *models.Gathering, event *models.PresenceEvent, receivedAt time.Time) bool {
	if !receivedAt.Before(g.EndAt) {
		return false
	}
	return event.Previous.ChannelID == g.ChannelID || event.Current.ChannelID == g.ChannelID
}

// HandleJob runs the open and close jobs of a gathering. A missing gathering
// is permanent so its job is buried instead of retried.
func (s *service) HandleJob(ctx context.Context, job *models.ScheduledJob) error {
	var err error
	switch job.Kind {
	case models.JobKindOpenGathering:
		_, err = s.Open(ctx, &OpenInput{GatheringID: job.TargetID})
	case models.JobKindCloseGathering:
		_, err = s.Close(ctx, &CloseInput{GatheringID: job.TargetID})
	default:
		return scheduler.Permanent(fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind))
	}

	if errors.Is(err, ErrGatheringNotFound) {
		return scheduler.Permanent(err)
	}
	return err
}
