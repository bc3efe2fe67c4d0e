package gathering

import "errors"

// GatheringError is a custom error type for gathering errors
type GatheringError string

// Error implements the error interface
func (e GatheringError) Error() string {
	return string(e)
}

// Validation errors are reported to the caller as bad requests
const (
	ErrMissingVenue     GatheringError = "venue ID is required"
	ErrMissingChannel   GatheringError = "channel ID is required"
	ErrInvalidWindow    GatheringError = "start must be before end"
	ErrInvalidWeight    GatheringError = "weight cannot be negative"
	ErrNoEligibility    GatheringError = "eligible roles or all can attend is required"
	ErrMissingGathering GatheringError = "gathering ID is required"
)

// Define errors
const (
	ErrGatheringNotFound GatheringError = "gathering not found"
	ErrResultsNotReady   GatheringError = "gathering has not closed yet"
	ErrUnknownJobKind    GatheringError = "unknown job kind"
	ErrNilConfig         GatheringError = "config cannot be nil"
	ErrNilGatheringRepo  GatheringError = "gathering repository cannot be nil"
	ErrNilLedger         GatheringError = "ledger service cannot be nil"
	ErrNilScheduler      GatheringError = "scheduler service cannot be nil"
	ErrNilVenue          GatheringError = "venue client cannot be nil"
	ErrNilClock          GatheringError = "clock cannot be nil"
	ErrNilIDGenerator    GatheringError = "id generator cannot be nil"
)

// IsValidationError reports whether err is caused by bad caller input
func IsValidationError(err error) bool {
	for _, v := range []error{ErrMissingVenue, ErrMissingChannel, ErrInvalidWindow, ErrInvalidWeight, ErrNoEligibility, ErrMissingGathering} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
