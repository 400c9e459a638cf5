package ingestion

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("ingestion run not found")

// RunLog persists upload runs. A nil RunLog disables run tracking.
type RunLog interface {
	Create(ctx context.Context, run *Run) error
	Finish(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
}

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&Run{})
}

func (r *RunRepository) Create(ctx context.Context, run *Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *RunRepository) Finish(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	run.CompletedAt = &now
	return r.db.WithContext(ctx).Model(&Run{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":       run.Status,
			"processed":    run.Processed,
			"committed":    run.Committed,
			"skipped":      run.Skipped,
			"error":        run.Error,
			"row_errors":   run.RowErrors,
			"completed_at": now,
		}).Error
}

func (r *RunRepository) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	result := r.db.WithContext(ctx).First(&run, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	return &run, result.Error
}

// CleanupBefore drops runs started before the cutoff.
func (r *RunRepository) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("started_at < ?", cutoff).Delete(&Run{})
	return result.RowsAffected, result.Error
}
