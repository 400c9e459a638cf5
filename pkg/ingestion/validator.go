package ingestion

import (
	"fmt"

	"github.com/healix-ai/backend/pkg/records"
)

// Validator checks the header of an upload before any row is processed.
type Validator struct {
	required map[Kind][]string
}

func NewValidator() *Validator {
	required := make(map[Kind][]string, len(profiles))
	for kind, p := range profiles {
		required[kind] = p.required
	}
	return &Validator{required: required}
}

func (v *Validator) RequiredColumns(kind Kind) []string {
	return v.required[kind]
}

func (v *Validator) Validate(kind Kind, table *Table) error {
	columns, ok := v.required[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	verr := &records.ValidationError{}
	for _, col := range columns {
		if !table.HasColumn(col) {
			if verr.Fields == nil {
				verr.Fields = make(map[string][]string)
			}
			verr.Fields[col] = append(verr.Fields[col], fmt.Sprintf("Missing required column %s.", col))
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
