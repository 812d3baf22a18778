package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"automl-service/internal/models"
)

// Timescale implements Reader on a TimescaleDB sensor_data hypertable.
type Timescale struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewTimescale connects a pooled client to the history store and verifies
// connectivity.
func NewTimescale(ctx context.Context, databaseURL string, log *zap.Logger) (*Timescale, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("connected to history store")
	return &Timescale{pool: pool, log: log}, nil
}

// Close releases the connection pool.
func (t *Timescale) Close() {
	t.pool.Close()
}

// windowedColumns is the shared projection: each reading with its three
// previous values and the elapsed seconds to each, computed per sensor in
// timestamp order. Readings early in a partition carry NULL lag columns;
// the encoder decides whether such rows are usable.
const windowedColumns = `
	sensor_id,
	timestamp,
	value,
	LAG(value, 1) OVER w AS prev_value_1,
	LAG(value, 2) OVER w AS prev_value_2,
	LAG(value, 3) OVER w AS prev_value_3,
	EXTRACT(EPOCH FROM (timestamp - LAG(timestamp, 1) OVER w))::float8 AS time_delta_1,
	EXTRACT(EPOCH FROM (timestamp - LAG(timestamp, 2) OVER w))::float8 AS time_delta_2,
	EXTRACT(EPOCH FROM (timestamp - LAG(timestamp, 3) OVER w))::float8 AS time_delta_3`

const trainingSetQuery = `
	SELECT` + windowedColumns + `
	FROM sensor_data
	WHERE sensor_id = ANY($1) AND timestamp >= $2
	WINDOW w AS (PARTITION BY sensor_id ORDER BY timestamp)
	ORDER BY sensor_id, timestamp`

const latestWindowQuery = `
	WITH windowed AS (
		SELECT` + windowedColumns + `,
		ROW_NUMBER() OVER (PARTITION BY sensor_id ORDER BY timestamp DESC) AS rn
		FROM sensor_data
		WHERE sensor_id = ANY($1) AND timestamp >= $2
		WINDOW w AS (PARTITION BY sensor_id ORDER BY timestamp)
	)
	SELECT sensor_id, timestamp, value,
	       prev_value_1, prev_value_2, prev_value_3,
	       time_delta_1, time_delta_2, time_delta_3
	FROM windowed
	WHERE rn = 1
	ORDER BY sensor_id`

// TrainingSet fetches the bulk training window for the given sensors.
func (t *Timescale) TrainingSet(ctx context.Context, sensors []string, lookback time.Duration) ([]models.WindowedReading, error) {
	since := time.Now().UTC().Add(-lookback)
	rows, err := t.pool.Query(ctx, trainingSetQuery, sensors, since)
	if err != nil {
		return nil, fmt.Errorf("training set query: %w", err)
	}
	defer rows.Close()

	readings, err := scanWindowed(rows)
	if err != nil {
		return nil, fmt.Errorf("training set scan: %w", err)
	}
	t.log.Info("fetched training set",
		zap.Int("rows", len(readings)),
		zap.Int("sensors", len(sensors)),
		zap.Time("since", since))
	return readings, nil
}

// LatestWindow fetches the newest windowed reading per sensor inside the
// short lookback window.
func (t *Timescale) LatestWindow(ctx context.Context, sensors []string, lookback time.Duration) ([]models.WindowedReading, error) {
	since := time.Now().UTC().Add(-lookback)
	rows, err := t.pool.Query(ctx, latestWindowQuery, sensors, since)
	if err != nil {
		return nil, fmt.Errorf("latest window query: %w", err)
	}
	defer rows.Close()

	readings, err := scanWindowed(rows)
	if err != nil {
		return nil, fmt.Errorf("latest window scan: %w", err)
	}
	return readings, nil
}

// scanWindowed reads rows in the windowedColumns projection. NULL lag
// columns cap PrevCount so downstream code never consumes an invalid slot.
func scanWindowed(rows pgx.Rows) ([]models.WindowedReading, error) {
	var out []models.WindowedReading
	for rows.Next() {
		var (
			r     models.WindowedReading
			prev  [3]*float64
			delta [3]*float64
		)
		err := rows.Scan(
			&r.SensorID, &r.Timestamp, &r.Value,
			&prev[0], &prev[1], &prev[2],
			&delta[0], &delta[1], &delta[2],
		)
		if err != nil {
			return nil, err
		}
		for k := 0; k < 3; k++ {
			if prev[k] == nil || delta[k] == nil {
				break
			}
			r.Prev[k] = *prev[k]
			r.Delta[k] = *delta[k]
			r.PrevCount = k + 1
		}
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
