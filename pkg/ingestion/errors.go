package ingestion

import (
	"errors"
	"fmt"

	"github.com/healix-ai/backend/pkg/records"
)

var ErrNoFile = errors.New("no file uploaded")

// ValidationError maps field names to messages. Row-level and header-level
// problems share the shape of the record validation errors.
type ValidationError = records.ValidationError

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// MissingPatientError is returned when a condition or observation row names
// a patient that does not exist.
type MissingPatientError struct {
	PatientID string
	Entity    string
}

func (e *MissingPatientError) Error() string {
	return fmt.Sprintf("Patient with ID %s not found for %s.", e.PatientID, e.Entity)
}

func (e *MissingPatientError) Unwrap() error {
	return records.ErrPatientNotFound
}

// RowError ties a failure to the source line that caused it.
type RowError struct {
	Row     int                 `json:"row"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
	cause   error
}

func newRowError(line int, cause error) *RowError {
	re := &RowError{Row: line, Message: cause.Error(), cause: cause}
	var ve *ValidationError
	if errors.As(cause, &ve) {
		re.Fields = ve.Fields
	}
	return re
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.cause
}

// rowLevel reports whether err belongs to the row rather than the system.
// Only row-level errors are eligible for the skip policy.
func rowLevel(err error) bool {
	var missing *MissingPatientError
	return IsValidationError(err) || errors.As(err, &missing)
}
