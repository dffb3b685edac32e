package engine

import (
	"errors"
	"fmt"
)

// Runtime error codes. Structural problems (unknown names, storage
// failures) are Go errors with one of these codes; a command rejected by
// a policy, guard or blocking constraint is NOT an error, it is a
// CommandResult with Success=false.
const (
	CodeUnknownEntity  = "UNKNOWN_ENTITY"
	CodeUnknownCommand = "UNKNOWN_COMMAND"
	CodeNotFound       = "NOT_FOUND"
	CodeStorage        = "STORAGE"
)

// RuntimeError is a structural execution failure.
type RuntimeError struct {
	Code    string
	Entity  string
	Command string
	Err     error
}

func (e *RuntimeError) Error() string {
	switch e.Code {
	case CodeUnknownEntity:
		return fmt.Sprintf("unknown entity %q", e.Entity)
	case CodeUnknownCommand:
		return fmt.Sprintf("unknown command %q on entity %q", e.Command, e.Entity)
	case CodeNotFound:
		return fmt.Sprintf("no instance of %q found", e.Entity)
	case CodeStorage:
		return fmt.Sprintf("storage failure for entity %q: %v", e.Entity, e.Err)
	default:
		return fmt.Sprintf("runtime error %s: %v", e.Code, e.Err)
	}
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// IsUnknownEntity reports whether err is an unknown-entity error.
func IsUnknownEntity(err error) bool { return hasCode(err, CodeUnknownEntity) }

// IsUnknownCommand reports whether err is an unknown-command error.
func IsUnknownCommand(err error) bool { return hasCode(err, CodeUnknownCommand) }

// IsNotFound reports whether err is a missing-instance error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsStorage reports whether err is a storage failure.
func IsStorage(err error) bool { return hasCode(err, CodeStorage) }

func hasCode(err error, code string) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == code
}

// ErrNotFound is the sentinel a Store returns from Get when no instance
// with the requested id exists for the tenant.
var ErrNotFound = errors.New("instance not found")

// ErrVersionConflict is the sentinel a Store returns from Put when the
// stored version no longer matches the instance's version.
var ErrVersionConflict = errors.New("instance version conflict")
