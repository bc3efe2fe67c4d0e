package scheduler

import "errors"

// SchedulerError is a custom error type for scheduler errors
type SchedulerError string

// Error implements the error interface
func (e SchedulerError) Error() string {
	return string(e)
}

// Define errors
const (
	ErrNilConfig      SchedulerError = "config cannot be nil"
	ErrNilJobRepo     SchedulerError = "job repository cannot be nil"
	ErrNilClock       SchedulerError = "clock cannot be nil"
	ErrNilIDGenerator SchedulerError = "id generator cannot be nil"
	ErrNilHandler     SchedulerError = "handler cannot be nil"
	ErrInvalidJob     SchedulerError = "job kind and target ID are required"
	ErrNoHandler      SchedulerError = "no handler registered for job kind"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return "permanent: " + e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks a handler error as not worth retrying; the job is buried
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
