// Package predictor turns patient metrics into a predicted medical
// condition using a fitted scaler and classifier loaded once at start.
package predictor

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Loader produces the fitted artifacts.
type Loader interface {
	Load() (Scaler, Classifier, error)
}

// FileLoader reads JSON artifacts from disk.
type FileLoader struct {
	ScalerPath string
	ModelPath  string
}

func (l FileLoader) Load() (Scaler, Classifier, error) {
	scaler, err := LoadStandardScaler(l.ScalerPath)
	if err != nil {
		return nil, nil, &ArtifactLoadError{Artifact: "scaler", Path: l.ScalerPath, Err: err}
	}
	model, err := LoadRandomForest(l.ModelPath)
	if err != nil {
		return nil, nil, &ArtifactLoadError{Artifact: "model", Path: l.ModelPath, Err: err}
	}
	return scaler, model, nil
}

// Prediction is the outcome of one successful Predict call.
type Prediction struct {
	Class int    `json:"class"`
	Label string `json:"label"`
	Known bool   `json:"known"`
}

type Option func(*Service)

// WithCache memoizes up to size predictions. Zero or less disables it.
func WithCache(size int) Option {
	return func(s *Service) {
		if size <= 0 {
			return
		}
		cache, err := lru.New[FeatureVector, Prediction](size)
		if err == nil {
			s.cache = cache
		}
	}
}

// Service holds the loaded artifacts. After Load returns it is read-only and
// safe for concurrent use.
type Service struct {
	loader Loader
	once   sync.Once

	scaler  Scaler
	model   Classifier
	loaded  bool
	loadErr error

	cache *lru.Cache[FeatureVector, Prediction]
}

func New(loader Loader, opts ...Option) *Service {
	s := &Service{loader: loader}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the artifacts exactly once. A failure is terminal: Load keeps
// returning false and LoadError keeps the first diagnostic.
func (s *Service) Load() bool {
	s.once.Do(func() {
		scaler, model, err := s.loader.Load()
		if err != nil {
			s.loadErr = err
			return
		}
		if scaler == nil || model == nil {
			s.loadErr = errors.New("loader returned no artifacts")
			return
		}
		s.scaler, s.model, s.loaded = scaler, model, true
	})
	return s.loaded
}

func (s *Service) Ready() bool { return s.loaded }

// LoadError returns why Load failed, or nil.
func (s *Service) LoadError() error { return s.loadErr }

// Predict scales features, classifies them, and maps the class to a label.
func (s *Service) Predict(features FeatureVector) (Prediction, error) {
	if !s.loaded {
		return Prediction{}, ErrServiceUnavailable
	}
	if s.cache != nil {
		if p, ok := s.cache.Get(features); ok {
			return p, nil
		}
	}

	class, err := s.classify(features)
	if err != nil {
		return Prediction{}, &PredictionError{Err: err}
	}
	label, known := Label(class)
	p := Prediction{Class: class, Label: label, Known: known}

	if s.cache != nil {
		s.cache.Add(features, p)
	}
	return p, nil
}

func (s *Service) classify(features FeatureVector) (class int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	scaled, err := s.scaler.Transform(features.Values())
	if err != nil {
		return 0, fmt.Errorf("scale: %w", err)
	}
	class, err = s.model.Predict(scaled)
	if err != nil {
		return 0, fmt.Errorf("classify: %w", err)
	}
	return class, nil
}
