package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPredictionEnvelope(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	rec := PredictionRecord{
		SensorID:  "oil-production",
		Timestamp: time.Date(2024, 6, 1, 7, 0, 0, 0, loc),
		Value:     1234.5,
	}

	env := NewPredictionEnvelope(rec)
	assert.Equal(t, "2024-06-01T12:00:00Z", env.Timestamp)
	assert.Equal(t, EnvelopeTypePrediction, env.Type)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "oil-production", got["sensor_id"])
	assert.Equal(t, 1234.5, got["value"])
	assert.Equal(t, "prediction", got["type"])
	assert.Equal(t, "2024-06-01T12:00:00Z", got["timestamp"])
}
