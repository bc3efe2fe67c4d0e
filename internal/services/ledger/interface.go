package ledger

//go:generate mockgen -package=mocks -destination=mocks/mock_service.go github.com/KirkDiggler/gatherer/internal/services/ledger Service

import "context"

// Service accumulates per-participant activity time for gatherings
type Service interface {
	// Apply folds a presence event into the participant's record
	Apply(ctx context.Context, input *ApplyInput) (*ApplyOutput, error)

	// Seed creates a record from a member snapshot unless one already exists.
	// Returns ErrRecordClosed once the gathering has been finalized.
	Seed(ctx context.Context, input *SeedInput) (*SeedOutput, error)

	// Finalize closes every running interval and freezes the records
	Finalize(ctx context.Context, input *FinalizeInput) (*FinalizeOutput, error)

	// GetRecords returns every record of a gathering
	GetRecords(ctx context.Context, input *GetRecordsInput) (*GetRecordsOutput, error)

	// DeleteRecords removes every record of a gathering
	DeleteRecords(ctx context.Context, input *DeleteRecordsInput) error
}
