// Package training builds prediction bundles from the stored patient records.
package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/ml/linear"
	"github.com/healix-ai/backend/pkg/records"
	"github.com/healix-ai/backend/pkg/serving/predictor"
	"gorm.io/datatypes"
)

var ErrNotEnoughData = errors.New("not enough complete patient records to train")

type Trainer struct {
	store records.Store
	jobs  JobLog
	now   func() time.Time
}

func NewTrainer(store records.Store, jobs JobLog) *Trainer {
	return &Trainer{store: store, jobs: jobs, now: time.Now}
}

// Build fits one logistic model per condition over patients with complete
// vitals and a gender.
func (t *Trainer) Build(ctx context.Context, opts Options) (*predictor.Bundle, error) {
	opts = opts.withDefaults()

	patients, err := t.store.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	conditions, err := t.store.ListConditions(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing conditions: %w", err)
	}

	complete := make([]predictor.Input, 0, len(patients))
	ids := make([]string, 0, len(patients))
	genders := map[string]struct{}{}
	for _, p := range patients {
		in, ok := toInput(p)
		if !ok {
			continue
		}
		complete = append(complete, in)
		ids = append(ids, p.ID)
		genders[in.Gender] = struct{}{}
	}
	if len(complete) < 2 {
		return nil, ErrNotEnoughData
	}

	classes := topConditions(conditions, opts.TopN)
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: no conditions recorded", ErrNotEnoughData)
	}

	bundle := &predictor.Bundle{
		Version:         opts.Version,
		CreatedAt:       t.now().UTC(),
		NumericFeatures: append([]string(nil), predictor.DefaultNumericFeatures...),
		Categorical: map[string][]string{
			"gender":      sortedKeys(genders),
			"bp_category": append([]string(nil), predictor.DefaultCategorical["bp_category"]...),
		},
	}
	if bundle.Version == "" {
		bundle.Version = bundle.CreatedAt.Format("20060102_150405")
	}
	bundle.FeatureOrder = predictor.DefaultFeatureOrder(bundle.NumericFeatures, bundle.Categorical)
	bundle.Scaler = fitScaler(complete)

	encoder := predictor.NewEncoder(bundle)
	samples := make([][]float64, len(complete))
	for i, in := range complete {
		samples[i] = encoder.Encode(in)
	}

	has := patientConditions(conditions)
	for _, condition := range classes {
		labels := make([]float64, len(ids))
		for i, id := range ids {
			if has[id][condition] {
				labels[i] = 1
			}
		}
		weights, m, err := linear.TrainLogistic(samples, labels, linear.Options{
			Epochs:       opts.Epochs,
			LearningRate: opts.LearningRate,
			L2:           opts.L2,
		})
		if err != nil {
			return nil, fmt.Errorf("training %q: %w", condition, err)
		}
		bundle.Classes = append(bundle.Classes, predictor.ClassModel{Condition: condition, Weights: weights, Metrics: m})
		logger.Log.WithFields(map[string]interface{}{
			"condition": condition,
			"accuracy":  m.Accuracy,
			"loss":      m.Loss,
			"positive":  m.Positive,
		}).Debug("Trained class model")
	}

	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return bundle, nil
}

// Train builds a bundle, writes it to path and records the job.
func (t *Trainer) Train(ctx context.Context, opts Options, path string) (*Job, error) {
	opts = opts.withDefaults()
	job := &Job{
		ID:        uuid.New(),
		Status:    StatusRunning,
		Options:   datatypes.JSONMap(opts.asMap()),
		StartedAt: t.now().UTC(),
	}
	if t.jobs != nil {
		if err := t.jobs.Create(ctx, job); err != nil {
			return nil, fmt.Errorf("recording training job: %w", err)
		}
	}

	bundle, err := t.Build(ctx, opts)
	if err == nil {
		err = WriteBundle(path, bundle)
	}
	if err != nil {
		job.Status = StatusFailed
		job.ErrorMessage = err.Error()
		t.finish(ctx, job)
		return job, err
	}

	job.Status = StatusCompleted
	job.BundlePath = path
	job.Version = bundle.Version
	job.Metrics = datatypes.JSONMap(bundleMetrics(bundle))
	t.finish(ctx, job)

	logger.Log.WithFields(map[string]interface{}{
		"job_id":  job.ID.String(),
		"version": bundle.Version,
		"classes": len(bundle.Classes),
		"path":    path,
	}).Info("Model bundle written")
	return job, nil
}

func (t *Trainer) finish(ctx context.Context, job *Job) {
	now := t.now().UTC()
	job.CompletedAt = &now
	if t.jobs == nil {
		return
	}
	if err := t.jobs.Finish(ctx, job); err != nil {
		logger.Log.WithError(err).WithField("job_id", job.ID.String()).Error("Failed to finalise training job")
	}
}

// WriteBundle persists the bundle as YAML, creating parent directories.
func WriteBundle(path string, bundle *predictor.Bundle) error {
	data, err := bundle.Marshal()
	if err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func toInput(p records.Patient) (predictor.Input, bool) {
	if p.Gender == nil || strings.TrimSpace(*p.Gender) == "" || p.Age == nil ||
		p.BMI == nil || p.SysBP == nil || p.DiaBP == nil || p.HeartRate == nil {
		return predictor.Input{}, false
	}
	return predictor.Input{
		Gender:    strings.TrimSpace(*p.Gender),
		Age:       float64(*p.Age),
		BMI:       *p.BMI,
		SysBP:     *p.SysBP,
		DiaBP:     *p.DiaBP,
		HeartRate: *p.HeartRate,
	}, true
}

// fitScaler computes per-feature mean and population standard deviation.
func fitScaler(inputs []predictor.Input) predictor.Scaler {
	columns := [][]float64{}
	for _, in := range inputs {
		row := []float64{in.Age, in.BMI, in.SysBP, in.DiaBP, in.HeartRate}
		for j, v := range row {
			if j >= len(columns) {
				columns = append(columns, nil)
			}
			columns[j] = append(columns[j], v)
		}
	}
	s := predictor.Scaler{}
	for _, col := range columns {
		var mean float64
		for _, v := range col {
			mean += v
		}
		mean /= float64(len(col))
		var variance float64
		for _, v := range col {
			variance += (v - mean) * (v - mean)
		}
		std := math.Sqrt(variance / float64(len(col)))
		if std == 0 {
			std = 1
		}
		s.Mean = append(s.Mean, mean)
		s.Scale = append(s.Scale, std)
	}
	return s
}

// topConditions ranks descriptions by distinct patients, ties by name.
func topConditions(conditions []records.Condition, n int) []string {
	patients := map[string]map[string]struct{}{}
	for _, c := range conditions {
		if c.Description == nil || *c.Description == "" {
			continue
		}
		if patients[*c.Description] == nil {
			patients[*c.Description] = map[string]struct{}{}
		}
		patients[*c.Description][c.PatientID] = struct{}{}
	}
	names := make([]string, 0, len(patients))
	for name := range patients {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := len(patients[names[i]]), len(patients[names[j]])
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

func patientConditions(conditions []records.Condition) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	for _, c := range conditions {
		if c.Description == nil {
			continue
		}
		if out[c.PatientID] == nil {
			out[c.PatientID] = map[string]bool{}
		}
		out[c.PatientID][*c.Description] = true
	}
	return out
}

func bundleMetrics(b *predictor.Bundle) map[string]interface{} {
	perClass := map[string]interface{}{}
	for _, c := range b.Classes {
		perClass[c.Condition] = map[string]interface{}{
			"accuracy": c.Metrics.Accuracy,
			"loss":     c.Metrics.Loss,
			"positive": c.Metrics.Positive,
		}
	}
	samples := 0
	if len(b.Classes) > 0 {
		samples = b.Classes[0].Metrics.Samples
	}
	return map[string]interface{}{
		"classes":  len(b.Classes),
		"samples":  samples,
		"features": len(b.FeatureOrder),
		"models":   perClass,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
