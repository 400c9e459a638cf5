package training

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/healix-ai/backend/pkg/records"
	"github.com/healix-ai/backend/pkg/serving/predictor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryJobLog struct {
	created  int
	finished []*Job
}

func (m *memoryJobLog) Create(context.Context, *Job) error {
	m.created++
	return nil
}

func (m *memoryJobLog) Finish(_ context.Context, job *Job) error {
	m.finished = append(m.finished, job)
	return nil
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func seedStore(t *testing.T) *records.MemoryStore {
	t.Helper()
	store := records.NewMemoryStore()
	ctx := context.Background()
	for i, sys := range []float64{110, 115, 118, 150, 160, 175} {
		gender := "F"
		if i%2 == 1 {
			gender = "M"
		}
		p := &records.Patient{
			ID:        string(rune('a' + i)),
			Gender:    strPtr(gender),
			Age:       intPtr(40 + i),
			BMI:       floatPtr(22 + float64(i)),
			SysBP:     floatPtr(sys),
			DiaBP:     floatPtr(70 + float64(i)),
			HeartRate: floatPtr(65),
		}
		require.NoError(t, store.CreatePatient(ctx, p))
		if sys > 140 {
			require.NoError(t, store.CreateCondition(ctx, &records.Condition{PatientID: p.ID, Description: strPtr("Hypertension")}))
		}
	}
	require.NoError(t, store.CreateCondition(ctx, &records.Condition{PatientID: "a", Description: strPtr("Asthma")}))
	require.NoError(t, store.CreatePatient(ctx, &records.Patient{ID: "incomplete", Gender: strPtr("F")}))
	return store
}

func TestBuildBundle(t *testing.T) {
	trainer := NewTrainer(seedStore(t), nil)
	bundle, err := trainer.Build(context.Background(), Options{Epochs: 500, LearningRate: 0.5, Version: "test"})
	require.NoError(t, err)

	assert.Equal(t, "test", bundle.Version)
	assert.Equal(t, []string{"Hypertension", "Asthma"}, bundle.ClassNames())
	assert.Equal(t, []string{"F", "M"}, bundle.Categorical["gender"])
	assert.Len(t, bundle.FeatureOrder, 11)
	assert.InDelta(t, 42.5, bundle.Scaler.Mean[0], 1e-9)
	assert.Equal(t, 1.0, bundle.Scaler.Scale[4])
	assert.Equal(t, 1.0, bundle.Classes[0].Metrics.Accuracy)

	p := predictor.NewPredictor(bundle)
	high, err := p.Predict(predictor.Input{Gender: "M", Age: 45, BMI: 27, SysBP: 170, DiaBP: 75, HeartRate: 65})
	require.NoError(t, err)
	low, err := p.Predict(predictor.Input{Gender: "F", Age: 40, BMI: 22, SysBP: 110, DiaBP: 70, HeartRate: 65})
	require.NoError(t, err)
	assert.Greater(t, high[0].Likelihood, low[0].Likelihood)
}

func TestBuildTopN(t *testing.T) {
	bundle, err := NewTrainer(seedStore(t), nil).Build(context.Background(), Options{TopN: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hypertension"}, bundle.ClassNames())
}

func TestBuildNeedsData(t *testing.T) {
	_, err := NewTrainer(records.NewMemoryStore(), nil).Build(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestTrainWritesLoadableBundle(t *testing.T) {
	jobs := &memoryJobLog{}
	path := filepath.Join(t.TempDir(), "models", "bundle.yaml")

	job, err := NewTrainer(seedStore(t), jobs).Train(context.Background(), Options{Version: "v-file"}, path)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, path, job.BundlePath)
	assert.Equal(t, 1, jobs.created)
	require.Len(t, jobs.finished, 1)
	assert.NotNil(t, job.CompletedAt)

	loaded, err := predictor.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "v-file", loaded.Version())
}

func TestTrainRecordsFailure(t *testing.T) {
	jobs := &memoryJobLog{}
	job, err := NewTrainer(records.NewMemoryStore(), jobs).Train(context.Background(), Options{}, filepath.Join(t.TempDir(), "b.yaml"))
	require.Error(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.NotEmpty(t, job.ErrorMessage)
	require.Len(t, jobs.finished, 1)
}
