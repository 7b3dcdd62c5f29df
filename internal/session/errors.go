package session

import (
	"errors"
	"fmt"
)

// ErrSessionInvalid is the recognized terminal state reached when the
// self-lookup rejects the stored credentials or the stored record is
// malformed. It is not a crash: the caller's response is re-authentication.
var ErrSessionInvalid = errors.New("session invalid")

// ValidationError reports malformed expiry input. The caller must not
// proceed with partial data; nothing is written when it is returned.
type ValidationError struct {
	Field string
	Value interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must be an integer millisecond timestamp, got %v (%T)", e.Field, e.Value, e.Value)
}
