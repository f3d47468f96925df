package email

// EmailError carries a code alongside the message so the handler layer can
// map delivery failures to HTTP statuses without importing this package's
// internals. Codes mirror the domain error codes.
type EmailError struct {
	Code    string
	Message string
}

func (e *EmailError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *EmailError) ErrorCode() string {
	return e.Code
}

var (
	// ErrNotImplemented is returned when a sender does not support an operation.
	ErrNotImplemented = &EmailError{Code: "not_implemented", Message: "Email method not implemented"}

	// ErrInvalidToAddress is returned when no recipient address is given.
	ErrInvalidToAddress = &EmailError{Code: "invalid", Message: "Invalid to email address"}
)
