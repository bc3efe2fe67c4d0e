package ledger

// LedgerError is a custom error type for ledger errors
type LedgerError string

// Error implements the error interface
func (e LedgerError) Error() string {
	return string(e)
}

// Define errors
const (
	ErrRecordClosed   LedgerError = "participant record is closed"
	ErrInvalidInput   LedgerError = "invalid ledger input"
	ErrNilConfig      LedgerError = "config cannot be nil"
	ErrNilLedgerRepo  LedgerError = "ledger repository cannot be nil"
	ErrNilPresence    LedgerError = "presence event cannot be nil"
	ErrNilMember      LedgerError = "member cannot be nil"
	ErrMissingChannel LedgerError = "channel ID cannot be empty"
)
