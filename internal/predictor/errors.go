package predictor

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable is returned by Predict when the artifacts are not
// loaded. It is permanent for the life of the Service.
var ErrServiceUnavailable = errors.New("prediction service unavailable: model artifacts not loaded")

// ArtifactLoadError reports a scaler or model file that could not be read
// or decoded.
type ArtifactLoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load %s artifact %q: %v", e.Artifact, e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// PredictionError wraps any failure raised while scaling or classifying.
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }
