package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101

	// Sync errors (200-299)
	ErrCodeMissingSource ErrorCode = 200
	ErrCodeFetchFailed   ErrorCode = 201
	ErrCodeEmptyTable    ErrorCode = 202
	ErrCodePersistFailed ErrorCode = 203

	// Store errors (300-399)
	ErrCodeParticipantNotFound ErrorCode = 300
	ErrCodeQueryFailed         ErrorCode = 301

	// Ledger errors (400-499)
	ErrCodeLedgerReadFailed  ErrorCode = 400
	ErrCodeLedgerWriteFailed ErrorCode = 401
)
