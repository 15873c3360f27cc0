package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Scaler normalizes a feature vector in fitted order.
type Scaler interface {
	Transform(values []float64) ([]float64, error)
}

// StandardScaler subtracts the fitted mean and divides by the fitted scale
// per feature.
type StandardScaler struct {
	FeatureNames []string  `json:"feature_names,omitempty"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

func (s *StandardScaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(values))
	}
	out := make([]float64, len(values))
	for i, v := range values {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

func (s *StandardScaler) validate() error {
	if len(s.Mean) == 0 {
		return errors.New("mean is empty")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("mean has %d entries, scale has %d", len(s.Mean), len(s.Scale))
	}
	if len(s.Mean) != NumFeatures {
		return fmt.Errorf("fitted on %d features, want %d", len(s.Mean), NumFeatures)
	}
	if len(s.FeatureNames) == 0 {
		return nil
	}
	want := FeatureNames()
	if len(s.FeatureNames) != len(want) {
		return fmt.Errorf("feature_names has %d entries, want %d", len(s.FeatureNames), len(want))
	}
	for i, name := range s.FeatureNames {
		if name != want[i] {
			return fmt.Errorf("feature %d is %q, want %q", i, name, want[i])
		}
	}
	return nil
}

// LoadStandardScaler reads a JSON scaler artifact.
func LoadStandardScaler(path string) (*StandardScaler, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s StandardScaler
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
