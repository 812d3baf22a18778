package models

import "time"

// RawReading is a single sensor measurement as stored in TimescaleDB.
// Readings are produced externally and never mutated after being read.
type RawReading struct {
	SensorID  string    `json:"sensor_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Quality   *string   `json:"quality,omitempty"`
}

// WindowedReading is a raw reading together with its lag context: the three
// chronologically previous values of the same sensor and the elapsed seconds
// to each of them. The history store computes the window with SQL LAG
// functions so the pipeline never re-sorts raw rows.
type WindowedReading struct {
	SensorID  string    `json:"sensor_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`

	// Prev[k] is the (k+1)-th previous value; Delta[k] is the elapsed time
	// to it in seconds. Only the first PrevCount entries are valid.
	Prev      [3]float64 `json:"prev"`
	Delta     [3]float64 `json:"delta"`
	PrevCount int        `json:"prev_count"`
}

// PredictionRecord is one short-horizon prediction for one sensor,
// created once per cycle and handed straight to the publisher.
type PredictionRecord struct {
	SensorID  string    `json:"sensor_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
