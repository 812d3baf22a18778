package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"automl-service/internal/estimator"
	"automl-service/internal/features"
	"automl-service/internal/history"
	"automl-service/internal/mqtt"
	"automl-service/internal/scheduler"
	"automl-service/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet; stderr is all we have.
		panic(err)
	}

	log := newLogger(cfg.Debug)
	defer log.Sync()

	log.Info("starting automl prediction service",
		zap.Int("sensors", len(cfg.Sensors)),
		zap.Duration("interval", cfg.PredictionInterval()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// History store.
	store, err := history.NewTimescale(ctx, cfg.DatabaseURL(), log)
	if err != nil {
		log.Fatal("failed to connect to history store", zap.Error(err))
	}
	defer store.Close()

	// Pub/sub transport.
	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		BrokerURL: cfg.BrokerURL(),
		ClientID:  cfg.MQTTClientID,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to MQTT broker", zap.Error(err))
	}
	defer mqttClient.Close()

	publisher := mqtt.NewPublisher(mqttClient.NativeClient(), cfg.PredictionTopicPrefix, cfg.OpTimeout(), log)

	// Freeze the sensor vocabulary and the feature schema.
	vocab, err := features.NewVocabulary(cfg.Sensors)
	if err != nil {
		log.Fatal("invalid sensor vocabulary", zap.Error(err))
	}
	encoder := features.NewEncoder(vocab)

	// Acquire a model: load a pre-trained one when configured, else train
	// fresh. Failure here is fatal; the service cannot run a prediction
	// loop without a model.
	model, err := acquireModel(ctx, cfg, encoder, store, log)
	if err != nil {
		log.Fatal("failed to acquire a model", zap.Error(err))
	}

	sched, err := scheduler.New(store, encoder, model, publisher, scheduler.Config{
		Sensors:   cfg.Sensors,
		Interval:  cfg.PredictionInterval(),
		Lookback:  cfg.PredictionLookback(),
		OpTimeout: cfg.OpTimeout(),
	}, log)
	if err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}

	// Blocks until SIGINT/SIGTERM.
	sched.Run(ctx)

	log.Info("shutdown complete")
}

// acquireModel implements the startup model source policy: try the
// configured pre-trained model first, fall back to fresh training when
// loading fails or the loaded schema does not fit the current vocabulary.
func acquireModel(ctx context.Context, cfg *config.Config, encoder *features.Encoder, store history.Reader, log *zap.Logger) (estimator.Model, error) {
	if cfg.ModelPath != "" {
		model, err := estimator.Load(cfg.ModelPath)
		switch {
		case err != nil:
			log.Warn("failed to load pre-trained model, training fresh",
				zap.String("path", cfg.ModelPath), zap.Error(err))
		case !model.Schema().Equal(encoder.Schema(features.Inference)):
			log.Warn("pre-trained model schema does not match vocabulary, training fresh",
				zap.String("path", cfg.ModelPath))
		default:
			log.Info("loaded pre-trained model", zap.String("path", cfg.ModelPath))
			return model, nil
		}
	}

	model, err := trainFresh(ctx, cfg, encoder, store, log)
	if err != nil {
		return nil, err
	}

	if cfg.SaveModelPath != "" {
		if err := estimator.Save(cfg.SaveModelPath, model); err != nil {
			log.Warn("failed to persist trained model", zap.String("path", cfg.SaveModelPath), zap.Error(err))
		} else {
			log.Info("trained model persisted", zap.String("path", cfg.SaveModelPath))
		}
	}
	return model, nil
}

// trainFresh pulls the bulk training window, encodes it, and runs the
// estimator's candidate search once.
func trainFresh(ctx context.Context, cfg *config.Config, encoder *features.Encoder, store history.Reader, log *zap.Logger) (estimator.Model, error) {
	started := time.Now()

	rows, err := store.TrainingSet(ctx, cfg.Sensors, cfg.TrainingLookback())
	if err != nil {
		return nil, &estimator.TrainingFailedError{Reason: "fetching training data", Err: err}
	}

	matrix, skipped, err := encoder.EncodeBatch(rows, features.Training)
	if err != nil {
		return nil, &estimator.TrainingFailedError{Reason: "encoding training data", Err: err}
	}
	if matrix.NumRows() == 0 {
		return nil, &estimator.TrainingFailedError{Reason: "no usable training rows"}
	}
	log.Info("training matrix encoded",
		zap.Int("rows", matrix.NumRows()),
		zap.Int("excluded", len(skipped)),
		zap.Int("columns", len(matrix.Schema.Columns)))

	ls := estimator.NewLeastSquares(log)
	model, err := ls.Train(ctx, matrix, features.LabelColumn, estimator.Budget{
		MaxDuration:     time.Duration(cfg.TrainingMaxRuntimeSeconds) * time.Second,
		MaxCandidates:   cfg.TrainingMaxCandidates,
		EarlyStopRounds: cfg.TrainingEarlyStopRounds,
		Tolerance:       cfg.TrainingTolerance,
		Seed:            cfg.TrainingSeed,
	})
	if err != nil {
		return nil, err
	}

	log.Info("model trained", zap.Duration("elapsed", time.Since(started)))
	return model, nil
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		return zap.Must(zap.NewDevelopment())
	}
	return zap.Must(zap.NewProduction())
}
