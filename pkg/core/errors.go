package core

// Error is a structured error with a stable machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a structured error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}
