package ledger

import (
	"github.com/KirkDiggler/gatherer/internal/models"
)

// CreateRecordInput contains parameters for creating a record
type CreateRecordInput struct {
	Record *models.ParticipantRecord
}

// CreateRecordOutput reports whether the record was written
type CreateRecordOutput struct {
	// Created is false when a record already existed and was left untouched
	Created bool
}

// GetRecordInput contains parameters for retrieving a record
type GetRecordInput struct {
	GatheringID   string
	ParticipantID string
}

// UpdateRecordInput contains parameters for a conditional update
type UpdateRecordInput struct {
	GatheringID   string
	ParticipantID string

	// Default builds the record when none exists; nil means a missing
	// record is ErrRecordNotFound
	Default func() *models.ParticipantRecord

	// Mutate changes the record in place. Returning an error aborts the
	// write and the error is returned unchanged. Mutate may run more than
	// once when writers race, so it must only depend on its argument.
	Mutate func(record *models.ParticipantRecord) error

	// RequireOpen aborts with ErrLedgerClosed once CloseLedger has run for
	// the gathering
	RequireOpen bool
}

// CloseLedgerInput contains parameters for closing a gathering's ledger
type CloseLedgerInput struct {
	GatheringID string
}

// ListRecordsInput contains parameters for listing records
type ListRecordsInput struct {
	GatheringID string
}

// ListRecordsOutput contains the records of a gathering
type ListRecordsOutput struct {
	Records []*models.ParticipantRecord
}

// DeleteRecordsInput contains parameters for deleting records
type DeleteRecordsInput struct {
	GatheringID string
}
