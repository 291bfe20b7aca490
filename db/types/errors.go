package types

import (
	"errors"
	"fmt"

	"github.com/glebarez/go-sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DuplicateError is returned when creating a ledger state row for a migration
// ID that already has one.
type DuplicateError struct {
	ModelName string
	ID        string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s already exists", e.ModelName, e.ID)
}

// IntegrityError is returned when a write would violate a constraint of the
// state schema other than uniqueness, e.g. an unknown history direction, or
// when a write affected an unexpected number of rows.
type IntegrityError struct {
	Msg string
	Err error
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("integrity error: %s", e.Msg)
}

func (e IntegrityError) Unwrap() error {
	return e.Err
}

// InvalidInputError is returned before querying, when a model is missing
// required fields.
type InvalidInputError struct {
	Msg string
}

func (e InvalidInputError) Error() string {
	return e.Msg
}

// LoadError wraps failed state or history queries.
type LoadError struct {
	ModelName string
	Err       error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("failed loading %s: %s", e.ModelName, e.Err)
}

func (e LoadError) Unwrap() error {
	return e.Err
}

// NoResultError is returned when no state row exists for a migration ID.
type NoResultError struct {
	ModelName string
	ID        string
}

func (e NoResultError) Error() string {
	return fmt.Sprintf("%s with %s doesn't exist", e.ModelName, e.ID)
}

// ScanError wraps failures of reading a row into a model.
type ScanError struct {
	ModelName string
	Err       error
}

func (e ScanError) Error() string {
	return fmt.Sprintf("failed scanning %s data: %s", e.ModelName, e.Err)
}

func (e ScanError) Unwrap() error {
	return e.Err
}

// Err maps SQLite constraint violations to DuplicateError or IntegrityError.
// Other errors are returned unchanged.
func Err(modelName, id string, err error) error {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}

	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return DuplicateError{ModelName: modelName, ID: id}
	case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return IntegrityError{Msg: fmt.Sprintf("invalid %s with %s", modelName, id), Err: err}
	}

	return err
}
