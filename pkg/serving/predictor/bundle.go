package predictor

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/healix-ai/backend/pkg/ml/linear"
	"gopkg.in/yaml.v3"
)

var (
	ErrBundleNotLoaded = errors.New("model bundle not loaded")
	ErrInvalidBundle   = errors.New("invalid model bundle")
)

// Default feature layout used by bundles trained on patient vitals.
var (
	DefaultNumericFeatures = []string{"age", "bmi", "sys_bp", "dia_bp", "heart_rate"}
	DefaultCategorical     = map[string][]string{
		"gender":      {"FEMALE", "MALE"},
		"bp_category": {"crisis", "hypertensive", "normal", "severe"},
	}
)

type Scaler struct {
	Mean  []float64 `yaml:"mean"`
	Scale []float64 `yaml:"scale"`
}

type ClassModel struct {
	Condition string         `yaml:"condition"`
	Weights   linear.Weights `yaml:"weights"`
	Metrics   linear.Metrics `yaml:"metrics,omitempty"`
}

// Bundle is everything needed to score a patient: feature layout, scaler
// and one logistic model per condition.
type Bundle struct {
	Version         string              `yaml:"version"`
	CreatedAt       time.Time           `yaml:"created_at,omitempty"`
	NumericFeatures []string            `yaml:"numeric_features"`
	Categorical     map[string][]string `yaml:"categorical"`
	FeatureOrder    []string            `yaml:"feature_order"`
	Scaler          Scaler              `yaml:"scaler"`
	Classes         []ClassModel        `yaml:"classes"`
}

// DefaultFeatureOrder lists numeric columns then one-hot columns named
// "<field>_<value>", fields sorted by name.
func DefaultFeatureOrder(numeric []string, categorical map[string][]string) []string {
	order := append([]string(nil), numeric...)
	for _, field := range sortedFields(categorical) {
		for _, value := range categorical[field] {
			order = append(order, field+"_"+value)
		}
	}
	return order
}

func LoadBundle(path string) (*Bundle, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := yaml.Unmarshal(content, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Marshal renders the bundle as YAML.
func (b *Bundle) Marshal() ([]byte, error) {
	return yaml.Marshal(b)
}

func (b *Bundle) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidBundle, fmt.Sprintf(format, args...))
	}
	if len(b.NumericFeatures) == 0 && len(b.Categorical) == 0 {
		return invalid("no features")
	}
	if len(b.Scaler.Mean) != len(b.NumericFeatures) || len(b.Scaler.Scale) != len(b.NumericFeatures) {
		return invalid("scaler has %d/%d entries for %d numeric features",
			len(b.Scaler.Mean), len(b.Scaler.Scale), len(b.NumericFeatures))
	}
	if len(b.FeatureOrder) == 0 {
		return invalid("empty feature order")
	}
	for _, name := range b.FeatureOrder {
		if !b.knownFeature(name) {
			return invalid("unknown feature %q", name)
		}
	}
	if len(b.Classes) == 0 {
		return invalid("no classes")
	}
	for _, c := range b.Classes {
		if strings.TrimSpace(c.Condition) == "" {
			return invalid("class without condition name")
		}
		if len(c.Weights.Coefficients) != len(b.FeatureOrder) {
			return invalid("class %q has %d coefficients for %d features",
				c.Condition, len(c.Weights.Coefficients), len(b.FeatureOrder))
		}
	}
	return nil
}

// ClassNames returns the condition names in bundle order.
func (b *Bundle) ClassNames() []string {
	names := make([]string, len(b.Classes))
	for i, c := range b.Classes {
		names[i] = c.Condition
	}
	return names
}

func (b *Bundle) knownFeature(name string) bool {
	for _, n := range b.NumericFeatures {
		if n == name {
			return true
		}
	}
	for field, values := range b.Categorical {
		for _, v := range values {
			if name == field+"_"+v {
				return true
			}
		}
	}
	return false
}
