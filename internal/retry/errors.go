package retry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConflict marks a username collision reported by the target.
	ErrConflict = errors.New("username already exists")
	// ErrDetectionAmbiguity means no success signal and no error message were found.
	ErrDetectionAmbiguity = errors.New("registration outcome could not be determined")
	// ErrAttemptsExhausted means every attempt ended in a username conflict.
	ErrAttemptsExhausted = errors.New("registration attempts exhausted")
)

// ConflictError carries the conflicting username and the messages that reported it.
type ConflictError struct {
	Username string
	Messages []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("username %q already exists: %s", e.Username, strings.Join(e.Messages, "; "))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ValidationRejection is a terminal rejection carrying the messages shown on the page.
type ValidationRejection struct {
	Messages []string
}

func (e *ValidationRejection) Error() string {
	return "registration rejected: " + strings.Join(e.Messages, "; ")
}

// ExhaustedError is returned when the final allowed attempt still conflicted.
type ExhaustedError struct {
	Attempts int
	Last     *ConflictError
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("registration failed after %d attempts", e.Attempts)
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrAttemptsExhausted}
	}
	return []error{ErrAttemptsExhausted, e.Last}
}

// IsConflict reports whether any message names both the username and its
// existence, ignoring case.
func IsConflict(messages []string) bool {
	for _, m := range messages {
		lower := strings.ToLower(m)
		if strings.Contains(lower, "username") && strings.Contains(lower, "exists") {
			return true
		}
	}
	return false
}
