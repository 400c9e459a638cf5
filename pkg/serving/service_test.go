package serving

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/healix-ai/backend/pkg/common/models"
	"github.com/healix-ai/backend/pkg/serving/predictor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureRecorder struct {
	entries []*PredictionLog
}

func (c *captureRecorder) RecordPrediction(_ context.Context, entry *PredictionLog) error {
	c.entries = append(c.entries, entry)
	return nil
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func completeRequest() models.PredictionRequest {
	return models.PredictionRequest{
		PatientID: "p-1",
		Gender:    strPtr("MALE"),
		Age:       floatPtr(50),
		BMI:       floatPtr(35),
		SysBP:     floatPtr(150),
		DiaBP:     floatPtr(90),
		HeartRate: floatPtr(80),
	}
}

func loadPredictor(t *testing.T) *predictor.Predictor {
	t.Helper()
	p, err := predictor.Load(filepath.Join("predictor", "testdata", "bundle.yaml"))
	require.NoError(t, err)
	return p
}

func TestPredictRecordsLog(t *testing.T) {
	rec := &captureRecorder{}
	svc := NewService(loadPredictor(t), rec)

	resp, err := svc.Predict(context.Background(), completeRequest())
	require.NoError(t, err)
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, "2025.01-test", resp.ModelVersion)

	require.Len(t, rec.entries, 1)
	entry := rec.entries[0]
	assert.Equal(t, "p-1", entry.PatientID)
	assert.Equal(t, "Obesity", entry.TopCondition)
	assert.Equal(t, 1.0, entry.Features["bp_category_severe"])
}

func TestPredictRequiresAllFields(t *testing.T) {
	svc := NewService(loadPredictor(t), nil)
	req := completeRequest()
	req.HeartRate = nil
	_, err := svc.Predict(context.Background(), req)
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestPredictWithoutBundle(t *testing.T) {
	svc := NewService(nil, nil)
	assert.False(t, svc.Ready())
	_, err := svc.Predict(context.Background(), completeRequest())
	assert.ErrorIs(t, err, predictor.ErrBundleNotLoaded)
}

func postPrediction(t *testing.T, svc *Service, body string) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	NewHTTPHandler(svc).Register(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict-condition", bytes.NewBufferString(body)))
	return rec
}

func TestHTTPPredict(t *testing.T) {
	svc := NewService(loadPredictor(t), nil)
	body, err := json.Marshal(completeRequest())
	require.NoError(t, err)

	rec := postPrediction(t, svc, string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hypertension", resp.Predictions[0].Condition)
	assert.Greater(t, resp.Predictions[0].Likelihood, 0.5)
}

func TestHTTPPredictErrors(t *testing.T) {
	rec := postPrediction(t, NewService(loadPredictor(t), nil), `{"gender":"MALE","age":40}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing required patient data fields."}`, rec.Body.String())

	body, _ := json.Marshal(completeRequest())
	rec = postPrediction(t, NewService(nil, nil), string(body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Pre-trained model not found."}`, rec.Body.String())
}
