package field

import (
	"errors"
	"fmt"
)

// TypeMismatchError is returned by Persist when a staged value is
// incompatible with the declared type of the destination field.
type TypeMismatchError struct {
	Entity string
	Field  string
	Err    error
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("value for %s on %s incompatible with field type: %v", e.Field, e.Entity, e.Err)
}

func (e TypeMismatchError) Unwrap() error { return e.Err }

// RejectedError is returned by Persist when the remote system refuses the
// write for any reason other than a field type mismatch (authorization,
// validation, connectivity).
type RejectedError struct {
	Entity string
	Status int
	Err    error
}

func (e RejectedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("update of %s rejected by LIMS (status %d): %v", e.Entity, e.Status, e.Err)
	}
	return fmt.Sprintf("update of %s rejected by LIMS: %v", e.Entity, e.Err)
}

func (e RejectedError) Unwrap() error { return e.Err }

// IsFatalPersist reports whether err is a persistence failure that must
// abort the whole script run.
func IsFatalPersist(err error) bool {
	var tm TypeMismatchError
	var rj RejectedError
	return errors.As(err, &tm) || errors.As(err, &rj)
}
