package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automl-service/internal/models"
)

func testVocab(t *testing.T, ids ...string) *Vocabulary {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"pressure-1", "temp-1", "flow-1"}
	}
	v, err := NewVocabulary(ids)
	require.NoError(t, err)
	return v
}

func windowed(sensor string, ts time.Time, value float64, prev [3]float64, delta [3]float64) models.WindowedReading {
	return models.WindowedReading{
		SensorID:  sensor,
		Timestamp: ts,
		Value:     value,
		Prev:      prev,
		Delta:     delta,
		PrevCount: 3,
	}
}

func TestSchemaColumnOrderSharedBetweenModes(t *testing.T) {
	enc := NewEncoder(testVocab(t))

	train := enc.Schema(Training)
	infer := enc.Schema(Inference)

	require.True(t, train.HasLabel())
	require.False(t, infer.HasLabel())
	// Non-label columns must be identical in name and order.
	assert.Equal(t, train.FeatureColumns(), infer.Columns)

	want := []string{
		"value",
		"year", "month", "day", "hour", "minute", "second", "dayofweek",
		"prev_value_1", "prev_value_2", "prev_value_3",
		"rate_of_change_1", "rate_of_change_2",
		"sensor_id_pressure-1", "sensor_id_temp-1", "sensor_id_flow-1",
	}
	assert.Equal(t, want, train.Columns)
}

func TestEncodeRowCalendarDecomposesInUTC(t *testing.T) {
	enc := NewEncoder(testVocab(t))

	loc := time.FixedZone("UTC+9", 9*3600)
	// 2024-03-05 01:30:45 +09:00 is 2024-03-04 16:30:45 UTC, a Monday.
	ts := time.Date(2024, 3, 5, 1, 30, 45, 0, loc)

	vec, err := enc.EncodeRow(windowed("temp-1", ts, 20, [3]float64{19, 18, 17}, [3]float64{10, 20, 30}), Inference)
	require.NoError(t, err)

	schema := enc.Schema(Inference)
	get := func(name string) float64 {
		i, ok := schema.ColumnIndex(name)
		require.True(t, ok, name)
		return vec[i]
	}
	assert.Equal(t, 2024.0, get("year"))
	assert.Equal(t, 3.0, get("month"))
	assert.Equal(t, 4.0, get("day"))
	assert.Equal(t, 16.0, get("hour"))
	assert.Equal(t, 30.0, get("minute"))
	assert.Equal(t, 45.0, get("second"))
	assert.Equal(t, float64(time.Monday), get("dayofweek"))
}

func TestEncodeRowUnknownSensor(t *testing.T) {
	enc := NewEncoder(testVocab(t))

	_, err := enc.EncodeRow(windowed("bogus-9", time.Now(), 1, [3]float64{1, 1, 1}, [3]float64{1, 2, 3}), Inference)

	var unknown *UnknownSensorError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "bogus-9", unknown.SensorID)
	assert.True(t, IsSkip(err))
}

func TestEncodeRowInsufficientHistory(t *testing.T) {
	enc := NewEncoder(testVocab(t))

	r := windowed("temp-1", time.Now(), 1, [3]float64{1, 1, 0}, [3]float64{1, 2, 0})
	r.PrevCount = 2

	_, err := enc.EncodeRow(r, Inference)

	var short *InsufficientHistoryError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 2, short.Have)
	assert.Equal(t, 3, short.Need)
	assert.True(t, IsSkip(err))
}

func TestEncodeRowOneHotSumsToOne(t *testing.T) {
	vocab := testVocab(t)
	enc := NewEncoder(vocab)
	schema := enc.Schema(Inference)

	for _, id := range vocab.IDs() {
		vec, err := enc.EncodeRow(windowed(id, time.Now(), 5, [3]float64{4, 3, 2}, [3]float64{5, 10, 15}), Inference)
		require.NoError(t, err)

		sum := 0.0
		nonzero := 0
		for i, col := range schema.Columns {
			if len(col) > len(SensorColumnPrefix) && col[:len(SensorColumnPrefix)] == SensorColumnPrefix {
				sum += vec[i]
				if vec[i] != 0 {
					nonzero++
				}
			}
		}
		assert.Equal(t, 1.0, sum, id)
		assert.Equal(t, 1, nonzero, id)

		hot, ok := schema.ColumnIndex(SensorColumnPrefix + id)
		require.True(t, ok)
		assert.Equal(t, 1.0, vec[hot], id)
	}
}

func TestEncodeRowRateOfChange(t *testing.T) {
	enc := NewEncoder(testVocab(t))
	schema := enc.Schema(Inference)
	roc1, _ := schema.ColumnIndex("rate_of_change_1")
	roc2, _ := schema.ColumnIndex("rate_of_change_2")

	// Values 10, 12, 15 with the predecessors 10 and 20 seconds back:
	// rate_of_change_1 = (15-12)/10, rate_of_change_2 = (15-10)/20.
	vec, err := enc.EncodeRow(windowed("flow-1", time.Now(), 15, [3]float64{12, 10, 8}, [3]float64{10, 20, 30}), Inference)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, vec[roc1], 1e-12)
	assert.InDelta(t, 0.25, vec[roc2], 1e-12)

	// Identical timestamps define the rate as 0 instead of dividing by zero.
	vec, err = enc.EncodeRow(windowed("flow-1", time.Now(), 15, [3]float64{12, 10, 8}, [3]float64{0, -5, 30}), Inference)
	require.NoError(t, err)
	assert.Equal(t, 0.0, vec[roc1])
	assert.Equal(t, 0.0, vec[roc2])
}

func TestEncodeRowTrainingCarriesLabelFirst(t *testing.T) {
	enc := NewEncoder(testVocab(t))

	r := windowed("temp-1", time.Now(), 42.5, [3]float64{40, 39, 38}, [3]float64{10, 20, 30})

	trainVec, err := enc.EncodeRow(r, Training)
	require.NoError(t, err)
	inferVec, err := enc.EncodeRow(r, Inference)
	require.NoError(t, err)

	assert.Equal(t, 42.5, trainVec[0])
	assert.Equal(t, inferVec, trainVec[1:])
}

func TestEncodeRowDeterministic(t *testing.T) {
	enc := NewEncoder(testVocab(t))
	r := windowed("pressure-1", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), 7.5, [3]float64{7, 6, 5}, [3]float64{30, 60, 90})

	a, err := enc.EncodeRow(r, Training)
	require.NoError(t, err)
	b, err := enc.EncodeRow(r, Training)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeBatchSkipsWithoutFailing(t *testing.T) {
	enc := NewEncoder(testVocab(t))
	now := time.Now()

	short := windowed("temp-1", now, 2, [3]float64{1, 0, 0}, [3]float64{5, 0, 0})
	short.PrevCount = 1

	rows := []models.WindowedReading{
		windowed("pressure-1", now, 3, [3]float64{2, 1, 0.5}, [3]float64{5, 10, 15}),
		short,
		windowed("unknown-x", now, 9, [3]float64{8, 7, 6}, [3]float64{5, 10, 15}),
		windowed("flow-1", now, 4, [3]float64{3, 2, 1}, [3]float64{5, 10, 15}),
	}

	m, skipped, err := enc.EncodeBatch(rows, Inference)
	require.NoError(t, err)

	assert.Equal(t, []string{"pressure-1", "flow-1"}, m.Sensors)
	assert.Equal(t, 2, m.NumRows())
	require.Len(t, skipped, 2)
	assert.Equal(t, "temp-1", skipped[0].SensorID)
	assert.Equal(t, "unknown-x", skipped[1].SensorID)
}
