package ingestion

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is the persisted record of one upload.
type Run struct {
	ID          string            `json:"id" gorm:"primaryKey;column:id"`
	Kind        string            `json:"kind" gorm:"column:kind;size:20"`
	Filename    string            `json:"filename" gorm:"column:filename"`
	Policy      string            `json:"policy" gorm:"column:policy;size:10"`
	Status      string            `json:"status" gorm:"column:status;size:20;index"`
	Processed   int               `json:"processed" gorm:"column:processed"`
	Committed   int               `json:"committed" gorm:"column:committed"`
	Skipped     int               `json:"skipped" gorm:"column:skipped"`
	Error       string            `json:"error,omitempty" gorm:"column:error"`
	RowErrors   datatypes.JSONMap `json:"row_errors,omitempty" gorm:"column:row_errors"`
	StartedAt   time.Time         `json:"started_at" gorm:"column:started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

func (Run) TableName() string {
	return "ingestion_runs"
}

// Report summarises one ingestion call.
type Report struct {
	RunID     string        `json:"run_id"`
	Kind      Kind          `json:"kind"`
	Policy    FailurePolicy `json:"policy"`
	Processed int           `json:"processed"`
	Committed int           `json:"committed"`
	Skipped   int           `json:"skipped"`
	Errors    []*RowError   `json:"errors,omitempty"`
}

// rowErrorMap keys row errors by source line for the run log.
func rowErrorMap(errs []*RowError) datatypes.JSONMap {
	if len(errs) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(errs))
	for _, e := range errs {
		entry := map[string]interface{}{"message": e.Message}
		if len(e.Fields) > 0 {
			entry["fields"] = e.Fields
		}
		out[strconv.Itoa(e.Row)] = entry
	}
	return out
}
