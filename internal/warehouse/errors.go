package warehouse

import (
	"fmt"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/errs"
)

// SchemaMismatch reports a payload column whose value could not be
// coerced into its target schema type.
type SchemaMismatch struct {
	Table  string
	Column string
	Value  interface{}
}

func (e *SchemaMismatch) Error() string {
	return fmt.Sprintf("warehouse: %s.%s: cannot coerce value %v to schema type", e.Table, e.Column, e.Value)
}

func (e *SchemaMismatch) Unwrap() error {
	return &errs.DataError{Step: e.Table, Msg: e.Error()}
}

// ConnectionFailure reports a lost or refused warehouse connection.
type ConnectionFailure struct {
	Cause error
}

func (e *ConnectionFailure) Error() string {
	return fmt.Sprintf("warehouse: connection failure: %s", e.Cause)
}

func (e *ConnectionFailure) Unwrap() error { return e.Cause }

// ConstraintViolation reports a warehouse-side constraint rejection
// (unique index, foreign key, not-null) surfaced during a load.
type ConstraintViolation struct {
	Table string
	Cause error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("warehouse: %s: constraint violation: %s", e.Table, e.Cause)
}

func (e *ConstraintViolation) Unwrap() []error {
	return []error{&errs.DataError{Step: e.Table, Msg: e.Error()}, e.Cause}
}

// IntegrityError reports a load that required pk_columns which were
// neither supplied nor detectable from the catalog.
type IntegrityError struct {
	Table string
	Msg   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("warehouse: %s: integrity error: %s", e.Table, e.Msg)
}

func (e *IntegrityError) Unwrap() error {
	return &errs.DataError{Step: e.Table, Msg: e.Error()}
}
