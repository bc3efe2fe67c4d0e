package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
	ledgerRepo "github.com/KirkDiggler/gatherer/internal/repositories/ledger"
)

// errAlreadyClosed aborts a finalize write for a record closed earlier
var errAlreadyClosed = errors.New("already closed")

type service struct {
	ledgerRepo ledgerRepo.Repository
}

// New creates a new ledger service
func New(cfg *Config) (*service, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.LedgerRepo == nil {
		return nil, ErrNilLedgerRepo
	}

	return &service{
		ledgerRepo: cfg.LedgerRepo,
	}, nil
}

// Apply treats the event's current state as the new truth. An activity that
// ran according to the stored record and no longer runs is credited with the
// time since its anchor. The stored record rather than the event decides
// whether an activity was running, so duplicates and stale events add nothing.
func (s *service) Apply(ctx context.Context, input *ApplyInput) (*ApplyOutput, error) {
	if input == nil || input.GatheringID == "" {
		return nil, ErrInvalidInput
	}
	if input.ChannelID == "" {
		return nil, ErrMissingChannel
	}
	if input.Event == nil || input.Event.ParticipantID == "" {
		return nil, ErrNilPresence
	}

	event := input.Event
	now := input.Now

	record, err := s.ledgerRepo.UpdateRecord(ctx, &ledgerRepo.UpdateRecordInput{
		GatheringID:   input.GatheringID,
		ParticipantID: event.ParticipantID,
		Default: func() *models.ParticipantRecord {
			return newRecord(input.GatheringID, event.ParticipantID, event.Previous, input.ChannelID, now)
		},
		Mutate: func(r *models.ParticipantRecord) error {
			if r.Closed {
				return ErrRecordClosed
			}

			next := *r
			next.ApplyState(event.Current, input.ChannelID)
			for _, a := range models.Activities {
				was, is := r.IsActive(a), next.IsActive(a)
				switch {
				case was && !is:
					r.AddSeconds(a, elapsed(r.Anchor(a), now))
					r.SetAnchor(a, now)
				case !was && is:
					r.SetAnchor(a, now)
				}
			}

			if event.BecameServerMuted && !r.ServerMuted {
				r.ServerMuteCount++
			}

			r.ApplyState(event.Current, input.ChannelID)
			r.LastEventAt = now
			return nil
		},
		RequireOpen: true,
	})
	if err != nil {
		if errors.Is(err, ErrRecordClosed) || errors.Is(err, ledgerRepo.ErrLedgerClosed) {
			return nil, ErrRecordClosed
		}
		return nil, fmt.Errorf("failed to apply presence event: %w", err)
	}

	return &ApplyOutput{Record: record}, nil
}

// Seed creates a record for a member present at open time
func (s *service) Seed(ctx context.Context, input *SeedInput) (*SeedOutput, error) {
	if input == nil || input.GatheringID == "" {
		return nil, ErrInvalidInput
	}
	if input.ChannelID == "" {
		return nil, ErrMissingChannel
	}
	if input.Member == nil || input.Member.ParticipantID == "" {
		return nil, ErrNilMember
	}

	record := newRecord(input.GatheringID, input.Member.ParticipantID, input.Member.State, input.ChannelID, input.Now)
	out, err := s.ledgerRepo.CreateRecord(ctx, &ledgerRepo.CreateRecordInput{Record: record})
	if err != nil {
		if errors.Is(err, ledgerRepo.ErrLedgerClosed) {
			return nil, ErrRecordClosed
		}
		return nil, fmt.Errorf("failed to seed participant record: %w", err)
	}

	return &SeedOutput{Created: out.Created}, nil
}

// Finalize closes the gathering's ledger, then closes running intervals at
// Now and marks each record closed. Once the ledger is closed Apply and Seed
// fail with ErrRecordClosed, so the listed records are the final set.
// Records closed by an earlier call are left untouched.
func (s *service) Finalize(ctx context.Context, input *FinalizeInput) (*FinalizeOutput, error) {
	if input == nil || input.GatheringID == "" {
		return nil, ErrInvalidInput
	}

	if err := s.ledgerRepo.CloseLedger(ctx, &ledgerRepo.CloseLedgerInput{
		GatheringID: input.GatheringID,
	}); err != nil {
		return nil, fmt.Errorf("failed to close ledger: %w", err)
	}

	list, err := s.ledgerRepo.ListRecords(ctx, &ledgerRepo.ListRecordsInput{
		GatheringID: input.GatheringID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list participant records: %w", err)
	}

	output := &FinalizeOutput{
		Records: make([]*models.ParticipantRecord, 0, len(list.Records)),
	}
	for _, existing := range list.Records {
		record, err := s.ledgerRepo.UpdateRecord(ctx, &ledgerRepo.UpdateRecordInput{
			GatheringID:   input.GatheringID,
			ParticipantID: existing.ParticipantID,
			Mutate: func(r *models.ParticipantRecord) error {
				if r.Closed {
					return errAlreadyClosed
				}
				for _, a := range models.Activities {
					if r.IsActive(a) {
						r.AddSeconds(a, elapsed(r.Anchor(a), input.Now))
						r.SetAnchor(a, input.Now)
					}
				}
				r.Closed = true
				r.ClosedAt = input.Now
				return nil
			},
		})
		switch {
		case errors.Is(err, errAlreadyClosed):
			record, err = s.ledgerRepo.GetRecord(ctx, &ledgerRepo.GetRecordInput{
				GatheringID:   input.GatheringID,
				ParticipantID: existing.ParticipantID,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to read closed record: %w", err)
			}
		case errors.Is(err, ledgerRepo.ErrRecordNotFound):
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to finalize participant record: %w", err)
		default:
			output.Finalized++
		}
		output.Records = append(output.Records, record)
	}

	return output, nil
}

// GetRecords returns every record of a gathering
func (s *service) GetRecords(ctx context.Context, input *GetRecordsInput) (*GetRecordsOutput, error) {
	if input == nil || input.GatheringID == "" {
		return nil, ErrInvalidInput
	}

	list, err := s.ledgerRepo.ListRecords(ctx, &ledgerRepo.ListRecordsInput{
		GatheringID: input.GatheringID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list participant records: %w", err)
	}

	return &GetRecordsOutput{Records: list.Records}, nil
}

// DeleteRecords removes every record of a gathering
func (s *service) DeleteRecords(ctx context.Context, input *DeleteRecordsInput) error {
	if input == nil || input.GatheringID == "" {
		return ErrInvalidInput
	}

	if err := s.ledgerRepo.DeleteRecords(ctx, &ledgerRepo.DeleteRecordsInput{
		GatheringID: input.GatheringID,
	}); err != nil {
		return fmt.Errorf("failed to delete participant records: %w", err)
	}

	return nil
}

// newRecord builds a zeroed record whose anchors all start at now
func newRecord(gatheringID, participantID string, state models.VoiceState, channelID string, now time.Time) *models.ParticipantRecord {
	r := &models.ParticipantRecord{
		GatheringID:   gatheringID,
		ParticipantID: participantID,
		JoinedAt:      now,
		LastEventAt:   now,
	}
	r.ApplyState(state, channelID)
	for _, a := range models.Activities {
		r.SetAnchor(a, now)
	}
	return r
}

func elapsed(anchor, now time.Time) float64 {
	d := now.Sub(anchor).Seconds()
	if d < 0 {
		return 0
	}
	return d
}
