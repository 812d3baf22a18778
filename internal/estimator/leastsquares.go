package estimator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"automl-service/internal/features"
)

// LeastSquares is the default Estimator: a deterministic search over ridge
// regularization strengths. Each candidate is fit on a seeded training
// split, scored by validation RMSE, and the winner is refit on the full
// matrix. Singular candidates are discarded rather than failing the run.
type LeastSquares struct {
	log *zap.Logger
}

// NewLeastSquares creates the default estimator.
func NewLeastSquares(log *zap.Logger) *LeastSquares {
	return &LeastSquares{log: log}
}

// validationShare is the fraction of rows held out for candidate scoring.
const validationShare = 0.2

// minSplitRows is the smallest matrix that still gets a held-out split;
// below it candidates are scored on their own training error.
const minSplitRows = 10

// Train runs the candidate search. It fails with *TrainingFailedError when
// the matrix has no usable rows, carries no label column, or every
// candidate solve is singular.
func (ls *LeastSquares) Train(ctx context.Context, m *features.Matrix, label string, budget Budget) (Model, error) {
	if label != features.LabelColumn || !m.Schema.HasLabel() {
		return nil, &TrainingFailedError{Reason: fmt.Sprintf("matrix has no label column %q", label)}
	}
	if m.NumRows() == 0 {
		return nil, &TrainingFailedError{Reason: "no usable training rows"}
	}
	labels, err := m.Labels()
	if err != nil {
		return nil, &TrainingFailedError{Reason: "extracting labels", Err: err}
	}
	rows := m.FeatureRows()

	if budget.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget.MaxDuration)
		defer cancel()
	}

	trainRows, trainY, valRows, valY := split(rows, labels, budget.Seed)

	lambdas := ridgeCandidates(budget.MaxCandidates)
	best := -1
	bestRMSE := math.Inf(1)
	sinceImprovement := 0
	started := time.Now()

	for i, lambda := range lambdas {
		if ctx.Err() != nil {
			ls.log.Warn("training budget exhausted, stopping candidate search",
				zap.Int("candidates_tried", i),
				zap.Duration("elapsed", time.Since(started)))
			break
		}

		intercept, coefs, fitErr := fitRidge(trainRows, trainY, lambda)
		if fitErr != nil {
			ls.log.Debug("candidate solve failed", zap.Float64("lambda", lambda), zap.Error(fitErr))
			continue
		}
		score := rmse(valRows, valY, intercept, coefs)
		ls.log.Debug("candidate scored",
			zap.Float64("lambda", lambda),
			zap.Float64("validation_rmse", score))

		if score < bestRMSE-budget.Tolerance {
			best = i
			bestRMSE = score
			sinceImprovement = 0
		} else {
			sinceImprovement++
			if budget.EarlyStopRounds > 0 && sinceImprovement >= budget.EarlyStopRounds {
				break
			}
		}
	}

	if best < 0 {
		return nil, &TrainingFailedError{Reason: "no candidate produced a solvable model", Err: ctx.Err()}
	}

	// Refit the winning regularization on the full matrix.
	intercept, coefs, err := fitRidge(rows, labels, lambdas[best])
	if err != nil {
		return nil, &TrainingFailedError{Reason: "refit of best candidate", Err: err}
	}

	schema := m.Schema.WithoutLabel()
	ls.log.Info("training complete",
		zap.Int("rows", m.NumRows()),
		zap.Int("columns", len(schema.Columns)),
		zap.Float64("lambda", lambdas[best]),
		zap.Float64("validation_rmse", bestRMSE),
		zap.Duration("elapsed", time.Since(started)))

	return &linearModel{
		schema:    schema,
		intercept: intercept,
		coefs:     coefs,
		lambda:    lambdas[best],
		trainedAt: time.Now().UTC(),
	}, nil
}

// ridgeCandidates yields the regularization strengths to try: ordinary
// least squares first, then a geometric ladder.
func ridgeCandidates(max int) []float64 {
	out := []float64{0}
	lambda := 1e-4
	for len(out) < max {
		out = append(out, lambda)
		lambda *= 10
	}
	if max <= 0 {
		return out[:1]
	}
	return out[:max]
}

// split deals rows into train/validation partitions with a seeded shuffle
// so training is reproducible. Small matrices are not split.
func split(rows [][]float64, y []float64, seed int64) (tr [][]float64, trY []float64, val [][]float64, valY []float64) {
	n := len(rows)
	if n < minSplitRows {
		return rows, y, rows, y
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	nVal := int(float64(n) * validationShare)
	if nVal < 1 {
		nVal = 1
	}
	for i, p := range perm {
		if i < nVal {
			val = append(val, rows[p])
			valY = append(valY, y[p])
		} else {
			tr = append(tr, rows[p])
			trY = append(trY, y[p])
		}
	}
	return tr, trY, val, valY
}

// fitRidge solves (XᵀX + λI)w = Xᵀy with an unpenalized intercept column.
func fitRidge(rows [][]float64, y []float64, lambda float64) (intercept float64, coefs []float64, err error) {
	n := len(rows)
	if n == 0 {
		return 0, nil, fmt.Errorf("no rows to fit")
	}
	d := len(rows[0])

	x := mat.NewDense(n, d+1, nil)
	for i, row := range rows {
		x.Set(i, 0, 1)
		for j, v := range row {
			x.Set(i, j+1, v)
		}
	}
	yv := mat.NewVecDense(n, y)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j := 1; j <= d; j++ {
		xtx.Set(j, j, xtx.At(j, j)+lambda)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), yv)

	var w mat.VecDense
	if err := w.SolveVec(&xtx, &xty); err != nil {
		return 0, nil, fmt.Errorf("normal equation solve: %w", err)
	}

	coefs = make([]float64, d)
	for j := 0; j < d; j++ {
		coefs[j] = w.AtVec(j + 1)
	}
	return w.AtVec(0), coefs, nil
}

// rmse scores a fitted candidate on held-out rows.
func rmse(rows [][]float64, y []float64, intercept float64, coefs []float64) float64 {
	if len(rows) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i, row := range rows {
		pred := intercept
		for j, v := range row {
			pred += coefs[j] * v
		}
		diff := pred - y[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(rows)))
}

// linearModel is the trained handle. Immutable after creation; safe for
// concurrent reads.
type linearModel struct {
	schema    *features.Schema
	intercept float64
	coefs     []float64
	lambda    float64
	trainedAt time.Time
}

func (m *linearModel) Schema() *features.Schema { return m.schema }

func (m *linearModel) Predict(_ context.Context, batch *features.Matrix) ([]float64, error) {
	if err := batch.Conform(m.schema); err != nil {
		return nil, err
	}
	out := make([]float64, batch.NumRows())
	for i, row := range batch.Rows {
		pred := m.intercept
		for j, v := range row {
			pred += m.coefs[j] * v
		}
		out[i] = pred
	}
	return out, nil
}
