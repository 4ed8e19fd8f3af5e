package model

import "errors"

var (
	// ErrInvalidInput reports malformed, missing or too-short fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateUsername reports a signup for a name that is already taken.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrInvalidCredentials reports a failed login. It never says which part was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("not found")
)

// ValidationError is an ErrInvalidInput carrying the id of a
// translatable message describing what was wrong.
type ValidationError struct {
	MessageID string
}

// Invalid returns a ValidationError for the given message id.
func Invalid(msgID string) *ValidationError {
	return &ValidationError{MessageID: msgID}
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.MessageID
}

// Is makes errors.Is(err, ErrInvalidInput) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
