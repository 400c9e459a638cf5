package serving

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/healix-ai/backend/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PredictionLog records one answered prediction request.
type PredictionLog struct {
	ID           uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey;column:id"`
	PatientID    string            `json:"patient_id,omitempty" gorm:"column:patient_id;index"`
	ModelVersion string            `json:"model_version" gorm:"column:model_version"`
	Features     datatypes.JSONMap `json:"features" gorm:"column:features"`
	Predictions  datatypes.JSON    `json:"predictions" gorm:"column:predictions"`
	TopCondition string            `json:"top_condition" gorm:"column:top_condition"`
	TopScore     float64           `json:"top_score" gorm:"column:top_score"`
	LatencyMs    float64           `json:"latency_ms" gorm:"column:latency_ms"`
	CreatedAt    time.Time         `json:"created_at" gorm:"column:created_at"`
}

func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// PredictionRecorder persists answered predictions. A nil recorder disables logging.
type PredictionRecorder interface {
	RecordPrediction(ctx context.Context, entry *PredictionLog) error
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

func (r *Repository) RecordPrediction(ctx context.Context, entry *PredictionLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// Recent returns the most recent prediction logs up to limit.
func (r *Repository) Recent(ctx context.Context, limit int) ([]PredictionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []PredictionLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func newLogEntry(req models.PredictionRequest, version string, features map[string]float64, preds []models.Likelihood, latency time.Duration) *PredictionLog {
	entry := &PredictionLog{
		PatientID:    req.PatientID,
		ModelVersion: version,
		Features:     make(datatypes.JSONMap, len(features)),
		LatencyMs:    float64(latency.Microseconds()) / 1000.0,
	}
	for name, v := range features {
		entry.Features[name] = v
	}
	entry.Predictions = datatypes.JSON(mustJSON(preds))
	for _, p := range preds {
		if p.Likelihood > entry.TopScore || entry.TopCondition == "" {
			entry.TopCondition = p.Condition
			entry.TopScore = p.Likelihood
		}
	}
	return entry
}
