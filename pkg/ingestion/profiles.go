package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/healix-ai/backend/pkg/normalizer"
	"github.com/healix-ai/backend/pkg/records"
)

// profile maps one row of a dataset kind onto a record and commits it.
type profile struct {
	required []string
	apply    func(ctx context.Context, s *Service, row Row) error
}

var profiles = map[Kind]profile{
	KindPatients: {
		required: []string{"Id", "GENDER", "BIRTHDATE"},
		apply:    applyPatient,
	},
	KindConditions: {
		required: []string{"PATIENT", "START", "DESCRIPTION"},
		apply:    applyCondition,
	},
	KindObservations: {
		required: []string{"PATIENT", "DATE", "VALUE", "UNITS", "DESCRIPTION"},
		apply:    applyObservation,
	},
}

// Optional vitals columns on patient uploads.
var patientVitals = []struct {
	column string
	set    func(p *records.Patient, v *float64)
}{
	{"BMI", func(p *records.Patient, v *float64) { p.BMI = v }},
	{"SYS_BP", func(p *records.Patient, v *float64) { p.SysBP = v }},
	{"DIA_BP", func(p *records.Patient, v *float64) { p.DiaBP = v }},
	{"HEART_RATE", func(p *records.Patient, v *float64) { p.HeartRate = v }},
}

func applyPatient(ctx context.Context, s *Service, row Row) error {
	p := &records.Patient{
		Gender:    row.Text("GENDER"),
		Birthdate: parseDate(row.Get("BIRTHDATE")),
	}
	if id := row.Text("Id"); id != nil {
		p.ID = *id
	}
	for _, vital := range patientVitals {
		if raw, ok := row.Get(vital.column); ok {
			vital.set(p, s.normalize(raw).Ptr())
		}
	}

	err := s.records.CreatePatient(ctx, p)
	if errors.Is(err, records.ErrDuplicatePatient) {
		return &ValidationError{Fields: map[string][]string{
			"id": {"patient with this id already exists."},
		}}
	}
	return err
}

func applyCondition(ctx context.Context, s *Service, row Row) error {
	c := &records.Condition{
		Description: row.Text("DESCRIPTION"),
		StartDate:   parseDate(row.Get("START")),
	}
	if id := row.Text("PATIENT"); id != nil {
		c.PatientID = *id
	}
	return childError(s.records.CreateCondition(ctx, c), c.PatientID, "condition")
}

func applyObservation(ctx context.Context, s *Service, row Row) error {
	o := &records.Observation{
		Description: row.Text("DESCRIPTION"),
		Units:       row.Text("UNITS"),
		Date:        parseDate(row.Get("DATE")),
	}
	if raw, ok := row.Get("VALUE"); ok {
		o.Value = s.normalize(raw).Ptr()
	}
	if id := row.Text("PATIENT"); id != nil {
		o.PatientID = *id
	}
	return childError(s.records.CreateObservation(ctx, o), o.PatientID, "observation")
}

func childError(err error, patientID, entity string) error {
	if errors.Is(err, records.ErrPatientNotFound) {
		return &MissingPatientError{PatientID: patientID, Entity: entity}
	}
	if err != nil && !IsValidationError(err) {
		return fmt.Errorf("saving %s: %w", entity, err)
	}
	return err
}

func (s *Service) normalize(raw string) normalizer.Value {
	return s.normalizer.Normalize(raw)
}
