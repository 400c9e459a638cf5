package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/common/models"
	"github.com/healix-ai/backend/pkg/common/retry"
	"github.com/healix-ai/backend/pkg/normalizer"
	"github.com/healix-ai/backend/pkg/observability/metrics"
	"github.com/healix-ai/backend/pkg/records"
)

const publishAttempts = 3

// Publisher announces finished uploads. kafka.Producer satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Invalidator drops derived state (report caches) once records change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Service struct {
	records     *records.Service
	normalizer  *normalizer.Normalizer
	validator   *Validator
	runs        RunLog
	publisher   Publisher
	invalidator Invalidator
	policy      FailurePolicy
}

func NewService(recordSvc *records.Service, norm *normalizer.Normalizer, runs RunLog, publisher Publisher, policy FailurePolicy) *Service {
	if norm == nil {
		norm = normalizer.New(normalizer.Options{})
	}
	if policy == "" {
		policy = PolicyAbort
	}
	return &Service{
		records:    recordSvc,
		normalizer: norm,
		validator:  NewValidator(),
		runs:       runs,
		publisher:  publisher,
		policy:     policy,
	}
}

func (s *Service) WithInvalidator(inv Invalidator) *Service {
	s.invalidator = inv
	return s
}

func (s *Service) Policy() FailurePolicy {
	return s.policy
}

// Request is one upload. An empty Policy falls back to the service default.
type Request struct {
	Kind     Kind
	Filename string
	Table    *Table
	Policy   FailurePolicy
}

// Ingest maps every row of the table onto records, committing one row at a
// time. Under PolicyAbort the first bad row stops the batch and is returned
// as a *RowError; rows committed before it stay committed. Under PolicySkip
// bad rows are collected in the report and processing continues. System
// errors (storage failures) abort under either policy.
func (s *Service) Ingest(ctx context.Context, req Request) (*Report, error) {
	if req.Table == nil {
		return nil, ErrNoFile
	}
	p, ok := profiles[req.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	policy := req.Policy
	if policy == "" {
		policy = s.policy
	}

	report := &Report{RunID: uuid.New().String(), Kind: req.Kind, Policy: policy}
	run := &Run{
		ID:        report.RunID,
		Kind:      string(req.Kind),
		Filename:  req.Filename,
		Policy:    string(policy),
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("recording ingestion run: %w", err)
		}
	}

	log := logger.WithFields(map[string]interface{}{
		"run_id": report.RunID,
		"kind":   req.Kind,
		"policy": policy,
	})

	if err := s.validator.Validate(req.Kind, req.Table); err != nil {
		s.finish(ctx, run, report, err)
		return report, err
	}

	var failure error
	for i := 0; i < req.Table.Len(); i++ {
		if err := ctx.Err(); err != nil {
			failure = err
			break
		}
		row := req.Table.Row(i)
		report.Processed++

		err := p.apply(ctx, s, row)
		if err == nil {
			report.Committed++
			continue
		}

		rowErr := newRowError(row.Line, err)
		if policy == PolicySkip && rowLevel(err) {
			log.WithField("row", row.Line).WithError(err).Warn("Skipping invalid row")
			report.Skipped++
			report.Errors = append(report.Errors, rowErr)
			continue
		}
		log.WithField("row", row.Line).WithError(err).Warn("Aborting ingestion")
		report.Errors = append(report.Errors, rowErr)
		failure = rowErr
		break
	}

	s.finish(ctx, run, report, failure)
	if failure != nil {
		return report, failure
	}

	log.WithFields(map[string]interface{}{
		"processed": report.Processed,
		"committed": report.Committed,
		"skipped":   report.Skipped,
	}).Info("Ingestion completed")
	s.publish(ctx, report)
	return report, nil
}

func (s *Service) Run(ctx context.Context, id string) (*Run, error) {
	if s.runs == nil {
		return nil, ErrRunNotFound
	}
	return s.runs.Get(ctx, id)
}

func (s *Service) finish(ctx context.Context, run *Run, report *Report, failure error) {
	metrics.ObserveRows(report.Committed, len(report.Errors))
	metrics.ObserveUpload(failure == nil)

	if report.Committed > 0 && s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			logger.Log.WithError(err).Warn("Failed to invalidate report cache")
		}
	}

	if s.runs == nil {
		return
	}
	run.Processed = report.Processed
	run.Committed = report.Committed
	run.Skipped = report.Skipped
	run.RowErrors = rowErrorMap(report.Errors)
	run.Status = StatusSucceeded
	if failure != nil {
		run.Status = StatusFailed
		run.Error = failure.Error()
	}
	// The batch outcome stands even if the run log cannot be updated.
	if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		logger.Log.WithError(err).WithField("run_id", run.ID).Error("Failed to finalise ingestion run")
	}
}

func (s *Service) publish(ctx context.Context, report *Report) {
	if s.publisher == nil {
		return
	}
	data := map[string]interface{}{
		"run_id":    report.RunID,
		"kind":      string(report.Kind),
		"processed": report.Processed,
		"committed": report.Committed,
		"skipped":   report.Skipped,
	}
	err := retry.Do(ctx, publishAttempts, 100*time.Millisecond, func(ctx context.Context) error {
		return s.publisher.PublishEvent(ctx, models.EventDatasetIngested, "ingestion", data)
	})
	if err != nil {
		logger.Log.WithError(err).WithField("run_id", report.RunID).Warn("Failed to publish ingestion event")
	}
}
