package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Store lookups that find nothing.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks a structurally invalid payload.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a uniqueness or state-precondition violation.
	ErrConflict = errors.New("conflict")
)

// DataError wraps a cause that disqualifies a unit of work: a single memo
// (Memo.UnmarshalJSON), a batch or an extrinsic (BaseFilter), or a
// duplicate mint (Classifier). BaseFilter and Classifier log these as
// warnings and drop the offending unit; Memo.UnmarshalJSON returns one so
// json.Unmarshal's caller (chainrpc) can do the same, since spec.md §7
// requires drop-and-continue rather than propagation.
type DataError struct {
	Unit  string // "memo", "batch", or "extrinsic"
	Cause error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("rejected %s: %v", e.Unit, e.Cause)
}

func (e *DataError) Unwrap() error { return e.Cause }

// NewDataError builds a DataError describing which unit was dropped.
func NewDataError(unit string, cause error) *DataError {
	return &DataError{Unit: unit, Cause: cause}
}

// DomainErr is returned by Dot20Engine operations for business-rule
// failures (insufficient balance, tick not yet deployed, allowance
// exhausted). Applier inspects with errors.As and rolls back only the
// enclosing savepoint, per spec.md §7.
type DomainErr struct {
	Cause error
}

func (e *DomainErr) Error() string { return e.Cause.Error() }

func (e *DomainErr) Unwrap() error { return e.Cause }

// NewDomainErr wraps cause as a domain error.
func NewDomainErr(cause error) *DomainErr {
	return &DomainErr{Cause: cause}
}
