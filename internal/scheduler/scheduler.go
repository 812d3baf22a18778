// Package scheduler drives the recurring prediction cycle:
// FETCH → ENCODE → PREDICT → PUBLISH → IDLE. Cycles run sequentially on a
// single logical thread of control; the model handle is written once at
// startup and only read afterwards.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"automl-service/internal/estimator"
	"automl-service/internal/features"
	"automl-service/internal/history"
	"automl-service/internal/models"
)

// Publisher is the fire-and-forget prediction sink.
type Publisher interface {
	PublishPrediction(rec models.PredictionRecord) error
}

// Config holds the scheduler's timing and sensor parameters.
type Config struct {
	// Sensors is the configured sensor set to predict each cycle.
	Sensors []string
	// Interval is the configured spacing between cycle starts.
	Interval time.Duration
	// Lookback is the short history window fetched each cycle.
	Lookback time.Duration
	// OpTimeout bounds each blocking collaborator call (fetch, predict),
	// so a stalled collaborator costs at most one degraded cycle.
	OpTimeout time.Duration
}

// Scheduler runs the prediction loop against a frozen model and schema.
type Scheduler struct {
	history history.Reader
	encoder *features.Encoder
	model   estimator.Model
	pub     Publisher
	cfg     Config
	log     *zap.Logger

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// New wires a scheduler and verifies the encoder's inference layout against
// the model's frozen schema, so a mismatch surfaces at startup instead of
// on the first cycle.
func New(reader history.Reader, encoder *features.Encoder, model estimator.Model, pub Publisher, cfg Config, log *zap.Logger) (*Scheduler, error) {
	if !encoder.Schema(features.Inference).Equal(model.Schema()) {
		return nil, &features.SchemaMismatchError{
			Want: model.Schema().Columns,
			Got:  encoder.Schema(features.Inference).Columns,
		}
	}
	return &Scheduler{
		history: reader,
		encoder: encoder,
		model:   model,
		pub:     pub,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		sleep:   sleepCtx,
	}, nil
}

// Run executes cycles until the context is cancelled. Every per-cycle error
// is contained: it is logged, the cycle becomes a no-op, and the loop idles
// for the full configured interval before trying again.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("prediction loop starting",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("lookback", s.cfg.Lookback),
		zap.Int("sensors", len(s.cfg.Sensors)))

	for {
		if ctx.Err() != nil {
			s.log.Info("prediction loop stopped")
			return
		}

		start := s.now()
		log := s.log.With(zap.String("cycle_id", uuid.NewString()))

		if err := s.runCycle(ctx, log); err != nil {
			if ctx.Err() != nil {
				s.log.Info("prediction loop stopped")
				return
			}
			log.Error("prediction cycle failed", zap.Error(err))
			if !s.sleep(ctx, s.cfg.Interval) {
				s.log.Info("prediction loop stopped")
				return
			}
			continue
		}

		elapsed := s.now().Sub(start)
		idle := nextSleep(s.cfg.Interval, elapsed)
		log.Info("cycle complete",
			zap.Duration("elapsed", elapsed),
			zap.Duration("sleep", idle))
		if !s.sleep(ctx, idle) {
			s.log.Info("prediction loop stopped")
			return
		}
	}
}

// runCycle performs one FETCH → ENCODE → PREDICT → PUBLISH pass.
func (s *Scheduler) runCycle(ctx context.Context, log *zap.Logger) error {
	// FETCH
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	rows, err := s.history.LatestWindow(fetchCtx, s.cfg.Sensors, s.cfg.Lookback)
	cancel()
	if err != nil {
		return fmt.Errorf("history unavailable: %w", err)
	}
	if len(rows) == 0 {
		log.Warn("no recent readings for any sensor, skipping cycle")
		return nil
	}

	// ENCODE: skip-class sensors sit this cycle out; a schema-level
	// failure aborts the whole batch with no partial publish.
	matrix, skipped, err := s.encoder.EncodeBatch(rows, features.Inference)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	for _, sk := range skipped {
		log.Info("sensor excluded from cycle",
			zap.String("sensor_id", sk.SensorID),
			zap.String("reason", sk.Reason.Error()))
	}
	if matrix.NumRows() == 0 {
		log.Warn("no sensors survived encoding, skipping cycle",
			zap.Int("excluded", len(skipped)))
		return nil
	}
	if err := matrix.Conform(s.model.Schema()); err != nil {
		return err
	}

	// PREDICT
	predictCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	predictions, err := s.model.Predict(predictCtx, matrix)
	cancel()
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	if len(predictions) != matrix.NumRows() {
		return fmt.Errorf("predict returned %d values for %d rows", len(predictions), matrix.NumRows())
	}

	// PUBLISH: per-sensor failures are logged and do not block the rest
	// of the batch.
	cycleTime := s.now().UTC()
	published := 0
	for i, sensorID := range matrix.Sensors {
		rec := models.PredictionRecord{
			SensorID:  sensorID,
			Timestamp: cycleTime,
			Value:     predictions[i],
		}
		if err := s.pub.PublishPrediction(rec); err != nil {
			log.Error("publish failed",
				zap.String("sensor_id", sensorID),
				zap.Error(err))
			continue
		}
		published++
	}

	log.Info("predictions published",
		zap.Int("published", published),
		zap.Int("excluded", len(skipped)))
	return nil
}

// nextSleep self-corrects for cycles that overrun the interval: the result
// is never negative so an overrun starts the next cycle immediately
// without compounding drift.
func nextSleep(interval, elapsed time.Duration) time.Duration {
	if elapsed >= interval {
		return 0
	}
	return interval - elapsed
}

// sleepCtx sleeps for d honoring cancellation. Returns false when the
// context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
