package models

import (
	"time"
)

const EventDatasetIngested = "dataset.ingested"

// Event bus envelope
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Upload acknowledgement
type IngestResponse struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id"`
	Kind      string `json:"kind"`
	Processed int    `json:"processed"`
	Committed int    `json:"committed"`
	Skipped   int    `json:"skipped,omitempty"`
}

// Model serving
type PredictionRequest struct {
	PatientID string   `json:"patient_id,omitempty"`
	Gender    *string  `json:"gender"`
	Age       *float64 `json:"age"`
	BMI       *float64 `json:"bmi"`
	SysBP     *float64 `json:"sys_bp"`
	DiaBP     *float64 `json:"dia_bp"`
	HeartRate *float64 `json:"heart_rate"`
}

// Complete reports whether all six clinical fields were supplied.
func (r PredictionRequest) Complete() bool {
	return r.Gender != nil && r.Age != nil && r.BMI != nil &&
		r.SysBP != nil && r.DiaBP != nil && r.HeartRate != nil
}

type Likelihood struct {
	Condition  string  `json:"condition"`
	Likelihood float64 `json:"likelihood"`
}

type PredictionResponse struct {
	Predictions  []Likelihood `json:"predictions"`
	ModelVersion string       `json:"model_version,omitempty"`
}
