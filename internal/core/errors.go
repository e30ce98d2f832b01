package core

import (
	"errors"
	"fmt"
)

// User facing rejection messages.
const (
	MsgInvalidAmount = "Invalid Amount Type"
	MsgInvalidDate   = "Invalid Date Override"
	MsgInvalidID     = "Entry ID is invalid."
)

var (
	ErrInvalidAmount = errors.New("amount is not an integer")
	ErrNotFound      = errors.New("entry not found")
)

// ValidationError rejects a submission before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// LoadError means the stored data could not be turned into a view. It is
// fatal for the whole view.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return "load entries: " + e.Reason
	}
	return fmt.Sprintf("load entry %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoad reports whether err is a view build failure.
func IsLoad(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
