package estimator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"automl-service/internal/features"
)

// syntheticMatrix builds a noise-free training matrix for
// y = 5 + 2*x1 - 3*x2 so ordinary least squares can recover the plane
// exactly.
func syntheticMatrix(n int) *features.Matrix {
	m := &features.Matrix{
		Schema: &features.Schema{
			Version: features.SchemaVersion,
			Columns: []string{features.LabelColumn, "x1", "x2"},
		},
	}
	for i := 0; i < n; i++ {
		x1 := float64(i)
		x2 := float64(i%7) - 3
		y := 5 + 2*x1 - 3*x2
		m.Rows = append(m.Rows, []float64{y, x1, x2})
		m.Sensors = append(m.Sensors, "s")
	}
	return m
}

func inferenceMatrix(rows [][]float64) *features.Matrix {
	m := &features.Matrix{
		Schema: &features.Schema{
			Version: features.SchemaVersion,
			Columns: []string{"x1", "x2"},
		},
		Rows: rows,
	}
	for range rows {
		m.Sensors = append(m.Sensors, "s")
	}
	return m
}

func TestTrainRecoversLinearRelation(t *testing.T) {
	ls := NewLeastSquares(zap.NewNop())

	model, err := ls.Train(context.Background(), syntheticMatrix(40), features.LabelColumn, DefaultBudget())
	require.NoError(t, err)

	preds, err := model.Predict(context.Background(), inferenceMatrix([][]float64{
		{50, 1},  // 5 + 100 - 3 = 102
		{0, 0},   // 5
		{10, -2}, // 5 + 20 + 6 = 31
	}))
	require.NoError(t, err)
	require.Len(t, preds, 3)
	assert.InDelta(t, 102, preds[0], 1e-6)
	assert.InDelta(t, 5, preds[1], 1e-6)
	assert.InDelta(t, 31, preds[2], 1e-6)
}

func TestTrainDeterministicForFixedSeed(t *testing.T) {
	ls := NewLeastSquares(zap.NewNop())
	budget := DefaultBudget()

	a, err := ls.Train(context.Background(), syntheticMatrix(25), features.LabelColumn, budget)
	require.NoError(t, err)
	b, err := ls.Train(context.Background(), syntheticMatrix(25), features.LabelColumn, budget)
	require.NoError(t, err)

	in := inferenceMatrix([][]float64{{3, 1}, {7, -1}})
	pa, err := a.Predict(context.Background(), in)
	require.NoError(t, err)
	pb, err := b.Predict(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestTrainFailsWithoutRows(t *testing.T) {
	ls := NewLeastSquares(zap.NewNop())

	empty := &features.Matrix{
		Schema: &features.Schema{
			Version: features.SchemaVersion,
			Columns: []string{features.LabelColumn, "x1"},
		},
	}
	_, err := ls.Train(context.Background(), empty, features.LabelColumn, DefaultBudget())

	var failed *TrainingFailedError
	require.ErrorAs(t, err, &failed)
}

func TestTrainFailsWithoutLabelColumn(t *testing.T) {
	ls := NewLeastSquares(zap.NewNop())

	m := inferenceMatrix([][]float64{{1, 2}})
	_, err := ls.Train(context.Background(), m, features.LabelColumn, DefaultBudget())

	var failed *TrainingFailedError
	require.ErrorAs(t, err, &failed)
}

func TestPredictRejectsSchemaMismatch(t *testing.T) {
	ls := NewLeastSquares(zap.NewNop())
	model, err := ls.Train(context.Background(), syntheticMatrix(20), features.LabelColumn, DefaultBudget())
	require.NoError(t, err)

	wrong := &features.Matrix{
		Schema: &features.Schema{
			Version: features.SchemaVersion,
			Columns: []string{"x1", "x2", "x3"},
		},
		Rows:    [][]float64{{1, 2, 3}},
		Sensors: []string{"s"},
	}
	_, err = model.Predict(context.Background(), wrong)

	var mismatch *features.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ls := NewLeastSquares(zap.NewNop())
	model, err := ls.Train(context.Background(), syntheticMatrix(30), features.LabelColumn, DefaultBudget())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, Save(path, model))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.Schema().Equal(model.Schema()))

	in := inferenceMatrix([][]float64{{4, 2}, {9, 0}})
	want, err := model.Predict(context.Background(), in)
	require.NoError(t, err)
	got, err := loaded.Predict(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRejectsSchemaVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	stale := modelFile{
		SchemaVersion: features.SchemaVersion + 1,
		Columns:       []string{"x1"},
		Coefficients:  map[string]float64{"x1": 1},
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
