package predictor

import (
	"github.com/healix-ai/backend/pkg/common/models"
	"github.com/healix-ai/backend/pkg/ml/linear"
)

// Predictor scores inputs against a bundle loaded once at start-up. It is
// read-only and safe for concurrent use.
type Predictor struct {
	bundle  *Bundle
	encoder *Encoder
}

func NewPredictor(b *Bundle) *Predictor {
	if b == nil {
		return &Predictor{}
	}
	return &Predictor{bundle: b, encoder: NewEncoder(b)}
}

// Load reads and validates the bundle at path.
func Load(path string) (*Predictor, error) {
	b, err := LoadBundle(path)
	if err != nil {
		return nil, err
	}
	return NewPredictor(b), nil
}

func (p *Predictor) Ready() bool {
	return p != nil && p.bundle != nil
}

func (p *Predictor) Version() string {
	if !p.Ready() {
		return ""
	}
	return p.bundle.Version
}

// Predict returns one likelihood per class, in bundle order.
func (p *Predictor) Predict(in Input) ([]models.Likelihood, error) {
	if !p.Ready() {
		return nil, ErrBundleNotLoaded
	}
	features := p.encoder.Encode(in)
	out := make([]models.Likelihood, 0, len(p.bundle.Classes))
	for _, c := range p.bundle.Classes {
		out = append(out, models.Likelihood{
			Condition:  c.Condition,
			Likelihood: linear.Predict(c.Weights, features),
		})
	}
	return out, nil
}

// Features exposes the encoded vector keyed by column name.
func (p *Predictor) Features(in Input) (map[string]float64, error) {
	if !p.Ready() {
		return nil, ErrBundleNotLoaded
	}
	vec := p.encoder.Encode(in)
	out := make(map[string]float64, len(vec))
	for i, name := range p.encoder.FeatureNames() {
		out[name] = vec[i]
	}
	return out, nil
}
