package records

import (
	"context"
	"errors"
	"sort"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrPatientNotFound  = errors.New("patient not found")
	ErrDuplicatePatient = errors.New("patient with this id already exists")
	ErrInvalidColumn    = errors.New("column not allowed")
)

// Dimensions are the patient columns reports may group by.
var Dimensions = map[string]struct{}{
	"gender":      {},
	"bp_category": {},
}

// Attributes are the numeric patient columns reports may average.
var Attributes = map[string]struct{}{
	"age":        {},
	"bmi":        {},
	"sys_bp":     {},
	"dia_bp":     {},
	"heart_rate": {},
}

type GroupCount struct {
	Group *string
	Count int
}

type GroupAverage struct {
	Group   *string
	Average *float64
}

// Store is the record persistence contract. Every Create call is its own
// commit; there is no multi-row transaction.
type Store interface {
	Migrate(ctx context.Context) error

	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, id string) (*Patient, error)
	PatientExists(ctx context.Context, id string) (bool, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	UpdatePatient(ctx context.Context, p *Patient) error
	// DeletePatient removes the patient with its conditions and observations.
	DeletePatient(ctx context.Context, id string) error

	CreateCondition(ctx context.Context, c *Condition) error
	GetCondition(ctx context.Context, id uint) (*Condition, error)
	ListConditions(ctx context.Context, patientID string) ([]Condition, error)
	DeleteCondition(ctx context.Context, id uint) error

	CreateObservation(ctx context.Context, o *Observation) error
	GetObservation(ctx context.Context, id uint) (*Observation, error)
	ListObservations(ctx context.Context, patientID string) ([]Observation, error)
	DeleteObservation(ctx context.Context, id uint) error

	// ConditionCounts counts conditions with exactly this description per
	// value of the owning patient's dimension column. Order is unspecified.
	ConditionCounts(ctx context.Context, description, dimension string) ([]GroupCount, error)
	// PatientAverages averages attribute per dimension value. Order is unspecified.
	PatientAverages(ctx context.Context, attribute, dimension string) ([]GroupAverage, error)
	PatientCategoryCounts(ctx context.Context, dimension string) ([]GroupCount, error)
	CountPatients(ctx context.Context) (int64, error)
}

func checkDimension(dimension string) error {
	if _, ok := Dimensions[dimension]; !ok {
		return ErrInvalidColumn
	}
	return nil
}

func checkAttribute(attribute string) error {
	if _, ok := Attributes[attribute]; !ok {
		return ErrInvalidColumn
	}
	return nil
}

func patientDimension(p *Patient, dimension string) *string {
	switch dimension {
	case "gender":
		return p.Gender
	case "bp_category":
		return p.BPCategory
	}
	return nil
}

func patientAttribute(p *Patient, attribute string) *float64 {
	switch attribute {
	case "age":
		if p.Age == nil {
			return nil
		}
		age := float64(*p.Age)
		return &age
	case "bmi":
		return p.BMI
	case "sys_bp":
		return p.SysBP
	case "dia_bp":
		return p.DiaBP
	case "heart_rate":
		return p.HeartRate
	}
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
