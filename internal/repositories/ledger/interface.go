package ledger

//go:generate mockgen -package=mocks -destination=mocks/mock_repository.go github.com/KirkDiggler/gatherer/internal/repositories/ledger Repository

import (
	"context"

	"github.com/KirkDiggler/gatherer/internal/models"
)

// Repository defines the interface for participant record persistence.
// Records are keyed by (gathering, participant); there is never more than one.
type Repository interface {
	// CreateRecord stores a record only if none exists for its identity
	CreateRecord(ctx context.Context, input *CreateRecordInput) (*CreateRecordOutput, error)

	// GetRecord retrieves a record by identity
	GetRecord(ctx context.Context, input *GetRecordInput) (*models.ParticipantRecord, error)

	// UpdateRecord runs a read-modify-write on one record as a single
	// conditional write, retrying when another writer wins the race
	UpdateRecord(ctx context.Context, input *UpdateRecordInput) (*models.ParticipantRecord, error)

	// CloseLedger marks the gathering's ledger closed. Afterwards no record
	// can be created and RequireOpen updates fail with ErrLedgerClosed.
	CloseLedger(ctx context.Context, input *CloseLedgerInput) error

	// ListRecords retrieves every record of a gathering
	ListRecords(ctx context.Context, input *ListRecordsInput) (*ListRecordsOutput, error)

	// DeleteRecords removes every record of a gathering
	DeleteRecords(ctx context.Context, input *DeleteRecordsInput) error
}
