// Package store keeps a history of served predictions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Skufu/medpredict/internal/predictor"
)

// ErrDisabled is returned when no history backend is configured.
var ErrDisabled = errors.New("prediction history disabled")

type Record struct {
	ID        uuid.UUID               `json:"id"`
	Features  predictor.FeatureVector `json:"features"`
	Class     int                     `json:"class"`
	Label     string                  `json:"label"`
	CreatedAt time.Time               `json:"createdAt"`
}

// NewRecord stamps a prediction with a fresh ID and the current time.
func NewRecord(features predictor.FeatureVector, p predictor.Prediction) Record {
	return Record{
		ID:        uuid.New(),
		Features:  features,
		Class:     p.Class,
		Label:     p.Label,
		CreatedAt: time.Now().UTC(),
	}
}

type Recorder interface {
	Record(ctx context.Context, rec Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Ping(ctx context.Context) error
	Close()
}
