// Package linear fits and evaluates binary logistic regression by batch
// gradient descent.
package linear

import (
	"errors"
	"fmt"
	"math"
)

var ErrNoSamples = errors.New("no training samples")

type Options struct {
	Epochs       int
	LearningRate float64
	// L2 is the ridge penalty applied to coefficients (not the bias).
	L2 float64
}

type Weights struct {
	Bias         float64   `json:"bias" yaml:"bias"`
	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
}

type Metrics struct {
	Loss     float64 `json:"loss" yaml:"loss"`
	Accuracy float64 `json:"accuracy" yaml:"accuracy"`
	Positive int     `json:"positive" yaml:"positive"`
	Samples  int     `json:"samples" yaml:"samples"`
}

// TrainLogistic fits weights for labels in {0,1}. Every sample must have the
// same width.
func TrainLogistic(samples [][]float64, labels []float64, opts Options) (Weights, Metrics, error) {
	if opts.Epochs <= 0 {
		opts.Epochs = 200
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.01
	}

	n := len(samples)
	if n == 0 {
		return Weights{}, Metrics{}, ErrNoSamples
	}
	if len(labels) != n {
		return Weights{}, Metrics{}, fmt.Errorf("have %d labels for %d samples", len(labels), n)
	}
	featureCount := len(samples[0])
	for i, sample := range samples {
		if len(sample) != featureCount {
			return Weights{}, Metrics{}, fmt.Errorf("sample %d has %d features, want %d", i, len(sample), featureCount)
		}
	}

	weights := make([]float64, featureCount)
	var bias float64
	grad := make([]float64, featureCount)

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var biasGrad float64
		for i, sample := range samples {
			residual := sigmoid(dot(weights, sample)+bias) - labels[i]
			for j := 0; j < featureCount; j++ {
				grad[j] += residual * sample[j]
			}
			biasGrad += residual
		}
		for j := 0; j < featureCount; j++ {
			weights[j] -= opts.LearningRate * (grad[j]/float64(n) + opts.L2*weights[j])
		}
		bias -= opts.LearningRate * biasGrad / float64(n)
	}

	w := Weights{Bias: bias, Coefficients: weights}
	return w, Evaluate(w, samples, labels), nil
}

func Predict(weights Weights, sample []float64) float64 {
	return sigmoid(dot(weights.Coefficients, sample) + weights.Bias)
}

// Evaluate reports mean log loss and accuracy at a 0.5 threshold.
func Evaluate(weights Weights, samples [][]float64, labels []float64) Metrics {
	m := Metrics{Samples: len(samples)}
	if len(samples) == 0 {
		return m
	}
	var correct int
	for i, sample := range samples {
		p := Predict(weights, sample)
		m.Loss += -labels[i]*math.Log(p+1e-9) - (1-labels[i])*math.Log(1-p+1e-9)
		if labels[i] == 1 {
			m.Positive++
		}
		if (p >= 0.5) == (labels[i] == 1) {
			correct++
		}
	}
	m.Loss /= float64(len(samples))
	m.Accuracy = float64(correct) / float64(len(samples))
	return m
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights) && i < len(sample); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
