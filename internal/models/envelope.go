package models

import "time"

// EnvelopeTypePrediction is the message type tag carried by every
// published prediction.
const EnvelopeTypePrediction = "prediction"

// PredictionEnvelope is the JSON payload published per sensor per cycle.
// The timestamp is serialized as an RFC 3339 UTC instant.
type PredictionEnvelope struct {
	Timestamp string  `json:"timestamp"`
	SensorID  string  `json:"sensor_id"`
	Value     float64 `json:"value"`
	Type      string  `json:"type"`
}

// NewPredictionEnvelope wraps a prediction record into its wire form.
func NewPredictionEnvelope(rec PredictionRecord) PredictionEnvelope {
	return PredictionEnvelope{
		Timestamp: rec.Timestamp.UTC().Format(time.RFC3339),
		SensorID:  rec.SensorID,
		Value:     rec.Value,
		Type:      EnvelopeTypePrediction,
	}
}
