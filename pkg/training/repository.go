package training

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("training job not found")

// JobLog persists training jobs. A nil JobLog disables job tracking.
type JobLog interface {
	Create(ctx context.Context, job *Job) error
	Finish(ctx context.Context, job *Job) error
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Job{})
}

func (r *Repository) Create(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repository) Finish(ctx context.Context, job *Job) error {
	updates := map[string]interface{}{
		"status":        job.Status,
		"bundle_path":   job.BundlePath,
		"version":       job.Version,
		"error_message": job.ErrorMessage,
		"completed_at":  time.Now().UTC(),
	}
	if job.Metrics != nil {
		updates["metrics"] = datatypes.JSONMap(job.Metrics)
	}
	return r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", job.ID).Updates(updates).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	var job Job
	result := r.db.WithContext(ctx).First(&job, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	return &job, result.Error
}

func (r *Repository) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []Job
	result := r.db.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&jobs)
	return jobs, result.Error
}
