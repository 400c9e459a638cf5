package serving

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/common/models"
	"github.com/healix-ai/backend/pkg/observability/metrics"
	"github.com/healix-ai/backend/pkg/serving/predictor"
)

var ErrMissingFields = errors.New("missing required patient data fields")

type Service struct {
	predictor *predictor.Predictor
	recorder  PredictionRecorder
}

// NewService wires a predictor loaded at start-up. Either argument may be
// nil: without a predictor every request fails with ErrBundleNotLoaded.
func NewService(p *predictor.Predictor, recorder PredictionRecorder) *Service {
	return &Service{predictor: p, recorder: recorder}
}

func (s *Service) Ready() bool {
	return s.predictor.Ready()
}

func (s *Service) Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResponse, error) {
	if !req.Complete() {
		return nil, ErrMissingFields
	}
	if !s.predictor.Ready() {
		return nil, predictor.ErrBundleNotLoaded
	}

	start := time.Now()
	in := predictor.Input{
		Gender:    *req.Gender,
		Age:       *req.Age,
		BMI:       *req.BMI,
		SysBP:     *req.SysBP,
		DiaBP:     *req.DiaBP,
		HeartRate: *req.HeartRate,
	}
	preds, err := s.predictor.Predict(in)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)
	metrics.ObservePrediction()

	resp := &models.PredictionResponse{Predictions: preds, ModelVersion: s.predictor.Version()}
	logger.Log.WithFields(map[string]interface{}{
		"patient_id": req.PatientID,
		"classes":    len(preds),
		"latency_ms": latency.Milliseconds(),
	}).Info("Prediction completed")

	if s.recorder != nil {
		features, _ := s.predictor.Features(in)
		entry := newLogEntry(req, resp.ModelVersion, features, preds, latency)
		if err := s.recorder.RecordPrediction(ctx, entry); err != nil {
			logger.Log.WithError(err).Warn("Failed to record prediction")
		}
	}
	return resp, nil
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return data
}
