// ABOUTME: Error types for subprocess spawning and stream consumption
// ABOUTME: Separates a missing CLI binary from other start failures

package supervisor

import (
	"errors"
	"fmt"
)

// ErrAlreadyConsumed is reported when Events is ranged over more than once.
var ErrAlreadyConsumed = errors.New("event stream already consumed")

// CLINotFoundError indicates the agent binary could not be located.
type CLINotFoundError struct {
	Path  string
	Cause error
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("agent CLI not found: %s", e.Path)
}

func (e *CLINotFoundError) Unwrap() error { return e.Cause }

// ProcessError wraps failures while starting or reading the subprocess.
type ProcessError struct {
	Message string
	Cause   error
}

func (e *ProcessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProcessError) Unwrap() error { return e.Cause }
