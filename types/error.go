package types

import "errors"

// StatusError is an error from a collaborator service that carries an HTTP-ish
// status code. Subscription handlers surface the code in subscription_error
// events when present.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

func NewStatusError(code int, message string) *StatusError {
	return &StatusError{Code: code, Message: message}
}

// ErrorCode extracts the status code of err, or fallback if err carries none.
func ErrorCode(err error, fallback int) int {
	se := &StatusError{}
	if errors.As(err, &se) && se.Code != 0 {
		return se.Code
	}
	return fallback
}
