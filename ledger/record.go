package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

// Record is a single migration: a uniquely identified forward operation paired
// with its inverse, and whether it's currently applied.
type Record struct {
	// ID is unique across the ledger and determines the apply order. By
	// convention it's a timestamp followed by a descriptive slug, e.g.
	// 2024_12_31_111608_add_city_to_users_table.
	ID       string
	Forward  Operation
	Backward Operation
	// AppliedAt is invalid while the record is pending.
	AppliedAt sql.Null[time.Time]
	// Source is where the record was declared, e.g. a file path.
	Source string
}

// IsApplied returns true if the record's forward operation has been executed
// and not rolled back since.
func (r *Record) IsApplied() bool {
	return r.AppliedAt.Valid
}

// IsReversible returns false if the backward operation is a no-op.
func (r *Record) IsReversible() bool {
	return !r.Backward.IsNoop()
}

// Validate checks that the record has an ID and a valid pair of operations.
// The backward operation may be a no-op, but the forward one may not.
func (r *Record) Validate() error {
	if r.ID == "" {
		return InvalidRecordError{ID: r.Source, Err: errors.New("ID is required")}
	}
	if r.Forward.IsNoop() {
		return InvalidRecordError{ID: r.ID, Err: errors.New("forward operation is required")}
	}
	if err := r.Forward.Validate(); err != nil {
		return InvalidRecordError{ID: r.ID, Err: fmt.Errorf("forward: %w", err)}
	}
	if err := r.Backward.Validate(); err != nil {
		return InvalidRecordError{ID: r.ID, Err: fmt.Errorf("backward: %w", err)}
	}
	return nil
}

// Checksum returns a short digest of both operations. It changes whenever the
// record definition changes in a way that affects the schema.
func (r *Record) Checksum() string {
	fwd, bwd := r.Forward, r.Backward
	if bwd.IsNoop() {
		bwd = Operation{Kind: OpNone}
	}
	data, err := yaml.Marshal(struct {
		Forward  Operation `yaml:"forward"`
		Backward Operation `yaml:"backward"`
	}{fwd, bwd})
	if err != nil {
		// Operation only contains plain fields, so this can't happen.
		panic(fmt.Sprintf("failed serializing migration '%s': %s", r.ID, err))
	}
	sum := blake2b.Sum256(data)
	return base58.Encode(sum[:12])
}
