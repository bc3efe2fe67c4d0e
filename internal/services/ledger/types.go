package ledger

import (
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
	ledgerRepo "github.com/KirkDiggler/gatherer/internal/repositories/ledger"
)

// Config holds the dependencies of the ledger service
type Config struct {
	LedgerRepo ledgerRepo.Repository
}

// ApplyInput contains parameters for applying a presence event
type ApplyInput struct {
	GatheringID string

	// ChannelID is the gathering's channel; activity elsewhere does not count
	ChannelID string

	Event *models.PresenceEvent

	// Now is the receipt time used for interval deltas
	Now time.Time
}

// ApplyOutput contains the record after the event
type ApplyOutput struct {
	Record *models.ParticipantRecord
}

// SeedInput contains parameters for seeding a record at open time
type SeedInput struct {
	GatheringID string
	ChannelID   string
	Member      *models.Member
	Now         time.Time
}

// SeedOutput reports whether a record was created
type SeedOutput struct {
	Created bool
}

// FinalizeInput contains parameters for finalizing a gathering
type FinalizeInput struct {
	GatheringID string

	// Now is the instant running intervals are closed at
	Now time.Time
}

// FinalizeOutput contains the frozen records
type FinalizeOutput struct {
	Records []*models.ParticipantRecord

	// Finalized counts records closed by this call
	Finalized int
}

// GetRecordsInput contains parameters for listing records
type GetRecordsInput struct {
	GatheringID string
}

// GetRecordsOutput contains the records of a gathering
type GetRecordsOutput struct {
	Records []*models.ParticipantRecord
}

// DeleteRecordsInput contains parameters for deleting records
type DeleteRecordsInput struct {
	GatheringID string
}
