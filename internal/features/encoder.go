package features

import (
	"automl-service/internal/models"
)

// Encoder is the deterministic transform from windowed readings to
// fixed-schema numeric vectors. Training and inference share the same code
// path so the two can never drift apart; the only difference is whether
// the label column is present.
//
// Encoding is pure: no state beyond the immutable vocabulary.
type Encoder struct {
	vocab *Vocabulary
}

// NewEncoder creates an encoder over a frozen vocabulary.
func NewEncoder(vocab *Vocabulary) *Encoder {
	return &Encoder{vocab: vocab}
}

// Schema returns the column layout the encoder produces in the given mode.
func (e *Encoder) Schema(mode Mode) *Schema {
	return NewSchema(e.vocab, mode)
}

// Vocabulary returns the encoder's frozen vocabulary.
func (e *Encoder) Vocabulary() *Vocabulary { return e.vocab }

// EncodeRow turns one windowed reading into a feature vector.
//
// Rejections are typed: a sensor outside the vocabulary yields
// *UnknownSensorError and a reading with fewer than three prior values
// yields *InsufficientHistoryError. Both are skip-class (see IsSkip);
// callers drop the row and continue.
func (e *Encoder) EncodeRow(r models.WindowedReading, mode Mode) ([]float64, error) {
	hot, ok := e.vocab.Index(r.SensorID)
	if !ok {
		return nil, &UnknownSensorError{SensorID: r.SensorID}
	}
	if r.PrevCount < lagDepth {
		return nil, &InsufficientHistoryError{SensorID: r.SensorID, Have: r.PrevCount, Need: lagDepth}
	}

	vec := make([]float64, 0, e.vectorWidth(mode))
	if mode == Training {
		vec = append(vec, r.Value)
	}

	// Calendar decomposition is always in UTC so the same instant encodes
	// identically regardless of the host timezone.
	ts := r.Timestamp.UTC()
	vec = append(vec,
		float64(ts.Year()),
		float64(ts.Month()),
		float64(ts.Day()),
		float64(ts.Hour()),
		float64(ts.Minute()),
		float64(ts.Second()),
		float64(ts.Weekday()),
	)

	vec = append(vec, r.Prev[0], r.Prev[1], r.Prev[2])
	vec = append(vec, rateOfChange(r.Value, r.Prev[0], r.Delta[0]))
	vec = append(vec, rateOfChange(r.Value, r.Prev[1], r.Delta[1]))

	for i := 0; i < e.vocab.Size(); i++ {
		if i == hot {
			vec = append(vec, 1)
		} else {
			vec = append(vec, 0)
		}
	}
	return vec, nil
}

// Skipped records a row that was dropped from a batch and why.
type Skipped struct {
	SensorID string
	Reason   error
}

// EncodeBatch encodes a sequence of readings into a matrix. Skip-class
// rejections are collected and returned alongside the surviving rows; any
// other error aborts the batch.
func (e *Encoder) EncodeBatch(rows []models.WindowedReading, mode Mode) (*Matrix, []Skipped, error) {
	m := &Matrix{
		Schema:  e.Schema(mode),
		Sensors: make([]string, 0, len(rows)),
		Rows:    make([][]float64, 0, len(rows)),
	}
	var skipped []Skipped
	for _, r := range rows {
		vec, err := e.EncodeRow(r, mode)
		if err != nil {
			if IsSkip(err) {
				skipped = append(skipped, Skipped{SensorID: r.SensorID, Reason: err})
				continue
			}
			return nil, nil, err
		}
		m.Sensors = append(m.Sensors, r.SensorID)
		m.Rows = append(m.Rows, vec)
	}
	return m, skipped, nil
}

// rateOfChange is the first difference over elapsed seconds. A zero or
// negative delta (duplicate or non-monotonic timestamps) defines the rate
// as 0 rather than dividing by zero.
func rateOfChange(value, prev, deltaSeconds float64) float64 {
	if deltaSeconds <= 0 {
		return 0
	}
	return (value - prev) / deltaSeconds
}

func (e *Encoder) vectorWidth(mode Mode) int {
	w := len(calendarColumns) + len(lagColumns) + e.vocab.Size()
	if mode == Training {
		w++
	}
	return w
}
