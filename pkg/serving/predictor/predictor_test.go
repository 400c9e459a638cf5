package predictor

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := LoadBundle(filepath.Join("testdata", "bundle.yaml"))
	require.NoError(t, err)
	return b
}

func TestLoadBundle(t *testing.T) {
	b := loadTestBundle(t)
	assert.Equal(t, "2025.01-test", b.Version)
	assert.Equal(t, []string{"Hypertension", "Obesity"}, b.ClassNames())
	assert.Equal(t, DefaultFeatureOrder(b.NumericFeatures, b.Categorical), append([]string{
		"age", "bmi", "sys_bp", "dia_bp", "heart_rate",
		"bp_category_crisis", "bp_category_hypertensive", "bp_category_normal", "bp_category_severe",
	}, "gender_FEMALE", "gender_MALE"))
}

func TestLoadBundleMissingFile(t *testing.T) {
	_, err := LoadBundle(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBundleValidation(t *testing.T) {
	b := loadTestBundle(t)
	b.Classes[0].Weights.Coefficients = b.Classes[0].Weights.Coefficients[:3]
	assert.ErrorIs(t, b.Validate(), ErrInvalidBundle)

	b = loadTestBundle(t)
	b.FeatureOrder = append(b.FeatureOrder, "gender_OTHER")
	assert.ErrorIs(t, b.Validate(), ErrInvalidBundle)

	b = loadTestBundle(t)
	b.Scaler.Mean = b.Scaler.Mean[:2]
	assert.ErrorIs(t, b.Validate(), ErrInvalidBundle)

	b = loadTestBundle(t)
	b.Classes = nil
	assert.ErrorIs(t, b.Validate(), ErrInvalidBundle)
}

func TestEncode(t *testing.T) {
	enc := NewEncoder(loadTestBundle(t))
	vec := enc.Encode(Input{Gender: "FEMALE", Age: 60, BMI: 30, SysBP: 130, DiaBP: 85, HeartRate: 72})

	assert.Equal(t, []float64{
		1, 1, 0.5, 0.5, 2,
		1, 0,
		0, 1, 0, 0,
	}, vec)
}

func TestEncodeUnknownCategories(t *testing.T) {
	enc := NewEncoder(loadTestBundle(t))
	vec := enc.Encode(Input{Gender: "F", SysBP: 400})
	for _, v := range vec[5:] {
		assert.Equal(t, 0.0, v)
	}
}

func TestPredict(t *testing.T) {
	p := NewPredictor(loadTestBundle(t))
	require.True(t, p.Ready())

	out, err := p.Predict(Input{Gender: "MALE", Age: 50, BMI: 25, SysBP: 120, DiaBP: 80, HeartRate: 70})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Hypertension", out[0].Condition)
	assert.InDelta(t, 0.5, out[0].Likelihood, 1e-9)
	assert.Equal(t, "Obesity", out[1].Condition)
	assert.InDelta(t, 1/(1+math.Exp(1)), out[1].Likelihood, 1e-9)

	features, err := p.Features(Input{Gender: "MALE", SysBP: 120})
	require.NoError(t, err)
	assert.Equal(t, 1.0, features["gender_MALE"])
	assert.Equal(t, 1.0, features["bp_category_normal"])
}

func TestPredictWithoutBundle(t *testing.T) {
	var p *Predictor
	_, err := p.Predict(Input{})
	assert.ErrorIs(t, err, ErrBundleNotLoaded)

	_, err = NewPredictor(nil).Predict(Input{})
	assert.ErrorIs(t, err, ErrBundleNotLoaded)
}

func TestBundleRoundTrip(t *testing.T) {
	b := loadTestBundle(t)
	data, err := b.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bundle.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	again, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, b.FeatureOrder, again.FeatureOrder)
	assert.Equal(t, b.Classes[1].Weights, again.Classes[1].Weights)
}
