// Package estimator provides the training capability consumed by the
// prediction pipeline. The pipeline depends only on the Estimator and Model
// contracts; the search strategy behind them is pluggable and swapping it
// requires no change to the encoder or the scheduler.
package estimator

import (
	"context"
	"fmt"
	"time"

	"automl-service/internal/features"
)

// Budget bounds a training run: a wall-clock cap, a candidate cap, early
// stopping after a number of non-improving rounds, and the improvement
// tolerance.
type Budget struct {
	MaxDuration     time.Duration
	MaxCandidates   int
	EarlyStopRounds int
	Tolerance       float64
	Seed            int64
}

// DefaultBudget returns the production training budget.
func DefaultBudget() Budget {
	return Budget{
		MaxDuration:     120 * time.Second,
		MaxCandidates:   10,
		EarlyStopRounds: 3,
		Tolerance:       0.001,
		Seed:            1,
	}
}

// Estimator trains a model from a labeled feature matrix. Training is
// deterministic for a fixed seed.
type Estimator interface {
	Train(ctx context.Context, m *features.Matrix, label string, budget Budget) (Model, error)
}

// Model is an opaque trained handle. It is written exactly once and read
// concurrently by prediction cycles, so implementations must be immutable
// after creation.
type Model interface {
	// Predict scores a label-free matrix and returns one value per row, in
	// row order. A matrix whose columns diverge from the frozen schema
	// fails with *features.SchemaMismatchError.
	Predict(ctx context.Context, m *features.Matrix) ([]float64, error)

	// Schema returns the frozen feature schema the model was trained on.
	Schema() *features.Schema
}

// TrainingFailedError is fatal at startup: the service cannot enter the
// prediction loop without a model.
type TrainingFailedError struct {
	Reason string
	Err    error
}

func (e *TrainingFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("training failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("training failed: %s", e.Reason)
}

func (e *TrainingFailedError) Unwrap() error { return e.Err }
