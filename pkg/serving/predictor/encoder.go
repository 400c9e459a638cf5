package predictor

import (
	"sort"
	"strings"

	"github.com/healix-ai/backend/pkg/vitals"
)

// Input is one patient's clinical fields.
type Input struct {
	Gender    string
	Age       float64
	BMI       float64
	SysBP     float64
	DiaBP     float64
	HeartRate float64
}

func (in Input) numeric(name string) (float64, bool) {
	switch name {
	case "age":
		return in.Age, true
	case "bmi":
		return in.BMI, true
	case "sys_bp":
		return in.SysBP, true
	case "dia_bp":
		return in.DiaBP, true
	case "heart_rate":
		return in.HeartRate, true
	}
	return 0, false
}

// categorical returns the value one-hot encoded for field; bp_category is
// derived from systolic pressure.
func (in Input) categorical(field string) (string, bool) {
	switch field {
	case "gender":
		return strings.TrimSpace(in.Gender), true
	case "bp_category":
		return vitals.Category(in.SysBP)
	}
	return "", false
}

type slot struct {
	numeric    int
	field      string
	value      string
	isCategory bool
}

// Encoder turns an Input into the model's feature vector.
type Encoder struct {
	bundle *Bundle
	slots  []slot
	names  []string
}

func NewEncoder(b *Bundle) *Encoder {
	e := &Encoder{bundle: b, names: b.FeatureOrder}
	numericIdx := make(map[string]int, len(b.NumericFeatures))
	for i, n := range b.NumericFeatures {
		numericIdx[n] = i
	}
	for _, name := range b.FeatureOrder {
		if i, ok := numericIdx[name]; ok {
			e.slots = append(e.slots, slot{numeric: i})
			continue
		}
		field, value := splitOneHot(name, b.Categorical)
		e.slots = append(e.slots, slot{numeric: -1, field: field, value: value, isCategory: true})
	}
	return e
}

// Encode scales numeric features with (x-mean)/scale, treating a zero scale
// as one. Category values outside the vocabulary leave every one-hot column
// for that field at zero.
func (e *Encoder) Encode(in Input) []float64 {
	features := make([]float64, len(e.slots))
	for i, s := range e.slots {
		if s.isCategory {
			if v, ok := in.categorical(s.field); ok && v == s.value {
				features[i] = 1
			}
			continue
		}
		raw, _ := in.numeric(e.bundle.NumericFeatures[s.numeric])
		scale := e.bundle.Scaler.Scale[s.numeric]
		if scale == 0 {
			scale = 1
		}
		features[i] = (raw - e.bundle.Scaler.Mean[s.numeric]) / scale
	}
	return features
}

func (e *Encoder) FeatureNames() []string {
	return e.names
}

// splitOneHot finds the categorical field whose prefix matches the column.
// The longest field name wins so "bp_category_normal" is never read as a
// value of a shorter field.
func splitOneHot(name string, categorical map[string][]string) (string, string) {
	best := ""
	for field, values := range categorical {
		for _, v := range values {
			if name == field+"_"+v && len(field) > len(best) {
				best = field
			}
		}
	}
	if best == "" {
		return "", ""
	}
	return best, strings.TrimPrefix(name, best+"_")
}

func sortedFields(categorical map[string][]string) []string {
	fields := make([]string, 0, len(categorical))
	for f := range categorical {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
