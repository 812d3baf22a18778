// Package history reads windowed sensor readings from the time-series
// store. The store computes lag context with SQL window functions so the
// pipeline receives rows ready for feature encoding.
package history

import (
	"context"
	"time"

	"automl-service/internal/models"
)

// Reader is the windowed query capability the pipeline depends on.
type Reader interface {
	// TrainingSet returns every reading for the given sensors inside the
	// lookback window, ordered by sensor and time, each with its lag
	// context attached.
	TrainingSet(ctx context.Context, sensors []string, lookback time.Duration) ([]models.WindowedReading, error)

	// LatestWindow returns at most one row per sensor: the most recent
	// reading inside the short lookback window, with lag context.
	LatestWindow(ctx context.Context, sensors []string, lookback time.Duration) ([]models.WindowedReading, error)
}
