package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/vitals"
)

// Invalidator drops state derived from the records, such as cached reports.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service applies validation and derived fields on top of a Store.
type Service struct {
	store       Store
	now         func() time.Time
	invalidator Invalidator
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the clock used for age derivation.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithInvalidator registers inv to run after every successful write.
// Batch callers that invalidate once per batch should use a Service without one.
func (s *Service) WithInvalidator(inv Invalidator) *Service {
	s.invalidator = inv
	return s
}

func (s *Service) changed(ctx context.Context, err error) error {
	if err != nil || s.invalidator == nil {
		return err
	}
	if ierr := s.invalidator.Invalidate(context.WithoutCancel(ctx)); ierr != nil {
		logger.Log.WithError(ierr).Warn("Failed to invalidate derived reports")
	}
	return nil
}

func (s *Service) Store() Store {
	return s.store
}

// PreparePatient fills derived fields and validates. Age comes from the
// birthdate when not supplied; the bp category from systolic pressure.
func (s *Service) PreparePatient(p *Patient) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.Age == nil && p.Birthdate != nil {
		age := AgeAt(*p.Birthdate, s.now())
		p.Age = &age
	}
	if p.BPCategory == nil {
		p.BPCategory = vitals.CategoryPtr(p.SysBP)
	}
	return p.Validate()
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.PreparePatient(p); err != nil {
		return err
	}
	exists, err := s.store.PatientExists(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("checking patient %s: %w", p.ID, err)
	}
	if exists {
		return ErrDuplicatePatient
	}
	return s.changed(ctx, s.store.CreatePatient(ctx, p))
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.store.GetPatient(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	return s.store.ListPatients(ctx)
}

// UpdatePatient replaces the mutable fields of an existing patient; the id never changes.
func (s *Service) UpdatePatient(ctx context.Context, id string, p *Patient) error {
	p.ID = id
	if err := s.PreparePatient(p); err != nil {
		return err
	}
	return s.changed(ctx, s.store.UpdatePatient(ctx, p))
}

func (s *Service) DeletePatient(ctx context.Context, id string) error {
	return s.changed(ctx, s.store.DeletePatient(ctx, id))
}

// RequirePatient returns ErrPatientNotFound (wrapped with the id) when absent.
func (s *Service) RequirePatient(ctx context.Context, id string) error {
	exists, err := s.store.PatientExists(ctx, id)
	if err != nil {
		return fmt.Errorf("checking patient %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	return nil
}

func (s *Service) CreateCondition(ctx context.Context, c *Condition) error {
	c.PatientID = strings.TrimSpace(c.PatientID)
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.RequirePatient(ctx, c.PatientID); err != nil {
		return err
	}
	return s.changed(ctx, s.store.CreateCondition(ctx, c))
}

func (s *Service) GetCondition(ctx context.Context, id uint) (*Condition, error) {
	return s.store.GetCondition(ctx, id)
}

func (s *Service) ListConditions(ctx context.Context, patientID string) ([]Condition, error) {
	return s.store.ListConditions(ctx, patientID)
}

func (s *Service) DeleteCondition(ctx context.Context, id uint) error {
	return s.changed(ctx, s.store.DeleteCondition(ctx, id))
}

func (s *Service) CreateObservation(ctx context.Context, o *Observation) error {
	o.PatientID = strings.TrimSpace(o.PatientID)
	if err := o.Validate(); err != nil {
		return err
	}
	if err := s.RequirePatient(ctx, o.PatientID); err != nil {
		return err
	}
	return s.changed(ctx, s.store.CreateObservation(ctx, o))
}

func (s *Service) GetObservation(ctx context.Context, id uint) (*Observation, error) {
	return s.store.GetObservation(ctx, id)
}

func (s *Service) ListObservations(ctx context.Context, patientID string) ([]Observation, error) {
	return s.store.ListObservations(ctx, patientID)
}

func (s *Service) DeleteObservation(ctx context.Context, id uint) error {
	return s.changed(ctx, s.store.DeleteObservation(ctx, id))
}
