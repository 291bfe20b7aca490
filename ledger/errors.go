package ledger

import "fmt"

// DuplicateIDError is returned when a record with an already registered ID is
// registered again. Record bodies aren't compared.
type DuplicateIDError struct {
	ID string
	// Sources are the definitions that claim the ID, if known.
	Sources []string
}

// Error returns a string representation of the error.
func (e DuplicateIDError) Error() string {
	if len(e.Sources) > 1 {
		return fmt.Sprintf("duplicate migration ID '%s' declared in %s and %s",
			e.ID, e.Sources[0], e.Sources[1])
	}
	return fmt.Sprintf("duplicate migration ID '%s'", e.ID)
}

// UnknownIDError is returned when an operation targets a migration ID that
// isn't registered.
type UnknownIDError struct {
	ID string
}

// Error returns a string representation of the error.
func (e UnknownIDError) Error() string {
	return fmt.Sprintf("unknown migration ID '%s'", e.ID)
}

// InvalidRecordError is returned when registering a malformed record.
type InvalidRecordError struct {
	ID  string
	Err error
}

// Error returns a string representation of the error.
func (e InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid migration '%s': %s", e.ID, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e InvalidRecordError) Unwrap() error {
	return e.Err
}

// ApplyError is returned when the forward operation of a record fails. Err is
// the executor's error as returned.
type ApplyError struct {
	ID  string
	Err error
}

// Error returns a string representation of the error.
func (e ApplyError) Error() string {
	return fmt.Sprintf("failed applying migration '%s': %s", e.ID, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e ApplyError) Unwrap() error {
	return e.Err
}

// RollbackError is returned when the backward operation of a record fails. Err
// is the executor's error as returned.
type RollbackError struct {
	ID  string
	Err error
}

// Error returns a string representation of the error.
func (e RollbackError) Error() string {
	return fmt.Sprintf("failed rolling back migration '%s': %s", e.ID, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e RollbackError) Unwrap() error {
	return e.Err
}
