package poll

import "errors"

// PollError is a custom error type for poll errors
type PollError string

// Error implements the error interface
func (e PollError) Error() string {
	return string(e)
}

// Define errors
const (
	ErrMissingVenue    PollError = "venue ID is required"
	ErrMissingChannel  PollError = "channel ID is required"
	ErrMissingMessage  PollError = "message ID is required"
	ErrMissingQuestion PollError = "question is required"
	ErrTooFewOptions   PollError = "a poll needs at least two options"
	ErrDuplicateOption PollError = "each option needs its own emoji"
	ErrMissingEmoji    PollError = "every option needs an emoji"
	ErrNoEligibility   PollError = "roles are required unless everyone can vote"
	ErrInvalidDelay    PollError = "close delay cannot be negative"
	ErrMissingPoll     PollError = "poll ID is required"
	ErrPollNotFound    PollError = "poll not found"
	ErrUnknownJobKind  PollError = "unknown job kind"
	ErrNilConfig       PollError = "config cannot be nil"
	ErrNilPollRepo     PollError = "poll repository cannot be nil"
	ErrNilScheduler    PollError = "scheduler cannot be nil"
	ErrNilVenue        PollError = "venue client cannot be nil"
	ErrNilClock        PollError = "clock cannot be nil"
	ErrNilIDGenerator  PollError = "id generator cannot be nil"
)

// IsValidationError reports whether err was caused by bad input
func IsValidationError(err error) bool {
	for _, v := range []error{
		ErrMissingVenue, ErrMissingChannel, ErrMissingMessage, ErrMissingQuestion,
		ErrTooFewOptions, ErrDuplicateOption, ErrMissingEmoji, ErrNoEligibility, ErrInvalidDelay, ErrMissingPoll,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
