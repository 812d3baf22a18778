package estimator

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"automl-service/internal/features"
)

// modelFile is the on-disk JSON form of a trained model. Coefficients are
// keyed by column name so the file stays readable and a column reorder
// cannot silently shift weights.
type modelFile struct {
	SchemaVersion int                `json:"schema_version"`
	Columns       []string           `json:"columns"`
	Intercept     float64            `json:"intercept"`
	Coefficients  map[string]float64 `json:"coefficients"`
	Lambda        float64            `json:"lambda"`
	TrainedAt     time.Time          `json:"trained_at"`
}

// Load reads a pre-trained model from disk. The file's schema version must
// match the version this build encodes; otherwise the caller falls back to
// fresh training.
func Load(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	if mf.SchemaVersion != features.SchemaVersion {
		return nil, fmt.Errorf("model schema version %d does not match %d", mf.SchemaVersion, features.SchemaVersion)
	}
	if len(mf.Columns) == 0 {
		return nil, fmt.Errorf("model file has no feature columns")
	}

	coefs := make([]float64, len(mf.Columns))
	for i, col := range mf.Columns {
		coefs[i] = mf.Coefficients[col]
	}

	return &linearModel{
		schema:    &features.Schema{Version: mf.SchemaVersion, Columns: mf.Columns},
		intercept: mf.Intercept,
		coefs:     coefs,
		lambda:    mf.Lambda,
		trainedAt: mf.TrainedAt,
	}, nil
}

// Save writes a trained model to disk in the same JSON form Load reads.
func Save(path string, m Model) error {
	lm, ok := m.(*linearModel)
	if !ok {
		return fmt.Errorf("model type %T cannot be serialized", m)
	}

	mf := modelFile{
		SchemaVersion: lm.schema.Version,
		Columns:       lm.schema.Columns,
		Intercept:     lm.intercept,
		Coefficients:  make(map[string]float64, len(lm.coefs)),
		Lambda:        lm.lambda,
		TrainedAt:     lm.trainedAt,
	}
	for i, col := range lm.schema.Columns {
		mf.Coefficients[col] = lm.coefs[i]
	}

	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}
