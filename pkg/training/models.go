package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job records one bundle build.
type Job struct {
	ID           uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey;column:id"`
	Status       string            `json:"status" gorm:"column:status"`
	Options      datatypes.JSONMap `json:"options" gorm:"column:options"`
	Metrics      datatypes.JSONMap `json:"metrics,omitempty" gorm:"column:metrics"`
	BundlePath   string            `json:"bundle_path,omitempty" gorm:"column:bundle_path"`
	Version      string            `json:"version,omitempty" gorm:"column:version"`
	ErrorMessage string            `json:"error,omitempty" gorm:"column:error_message"`
	StartedAt    time.Time         `json:"started_at" gorm:"column:started_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

func (Job) TableName() string {
	return "training_jobs"
}

type Options struct {
	// TopN is how many of the most common conditions become classes.
	TopN         int
	Epochs       int
	LearningRate float64
	L2           float64
	Version      string
}

func (o Options) withDefaults() Options {
	if o.TopN <= 0 {
		o.TopN = 10
	}
	if o.Epochs <= 0 {
		o.Epochs = 300
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.1
	}
	return o
}

func (o Options) asMap() map[string]interface{} {
	return map[string]interface{}{
		"top_n":         o.TopN,
		"epochs":        o.Epochs,
		"learning_rate": o.LearningRate,
		"l2":            o.L2,
		"version":       o.Version,
	}
}
