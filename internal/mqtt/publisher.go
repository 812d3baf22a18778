package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"automl-service/internal/models"
)

// Publisher emits one prediction envelope per sensor per cycle onto the
// topic <prefix>/<sensor_id>. Delivery is at-most-once (QoS 0, never
// retained): a message may be lost but the publisher never duplicates it.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	timeout     time.Duration
	log         *zap.Logger
}

// NewPublisher creates a prediction publisher over an established paho
// client. The timeout bounds how long one publish may block the cycle.
func NewPublisher(client mqtt.Client, topicPrefix string, timeout time.Duration, log *zap.Logger) *Publisher {
	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		timeout:     timeout,
		log:         log,
	}
}

// PublishPrediction serializes and publishes a single prediction record.
// Failures are returned to the caller, which logs and moves on to the next
// sensor in the batch.
func (p *Publisher) PublishPrediction(rec models.PredictionRecord) error {
	payload, err := json.Marshal(models.NewPredictionEnvelope(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal prediction envelope: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", p.topicPrefix, rec.SensorID)
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s timed out after %s", topic, p.timeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}

	p.log.Debug("published prediction",
		zap.String("topic", topic),
		zap.Float64("value", rec.Value))
	return nil
}
