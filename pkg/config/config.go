// Package config loads the service configuration from the environment.
// A local .env file is honored when present; every option has the default
// used by the deployed stack.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enumerates every environment-sourced option.
type Config struct {
	// History datastore (TimescaleDB)
	DBUser     string `envconfig:"POSTGRES_USER" default:"default_user"`
	DBPassword string `envconfig:"POSTGRES_PASSWORD" default:"default_password"`
	DBHost     string `envconfig:"TIMESCALEDB_HOST" default:"timescaledb"`
	DBPort     int    `envconfig:"TIMESCALEDB_PORT" default:"5432"`
	DBName     string `envconfig:"POSTGRES_DB" default:"scada_db"`

	// Pub/sub broker
	MQTTBrokerHost string `envconfig:"MQTT_BROKER_HOST" default:"mqtt-broker"`
	MQTTBrokerPort int    `envconfig:"MQTT_BROKER_PORT" default:"1883"`
	MQTTUsername   string `envconfig:"MQTT_USERNAME" default:"automl-service"`
	MQTTPassword   string `envconfig:"MQTT_PASSWORD" default:""`
	MQTTClientID   string `envconfig:"MQTT_CLIENT_ID" default:"automl-service-client"`

	// Prediction pipeline
	PredictionTopicPrefix     string   `envconfig:"MQTT_PREDICTION_TOPIC_PREFIX" default:"ai_scada/predictions"`
	PredictionIntervalSeconds int      `envconfig:"PREDICTION_INTERVAL_SECONDS" default:"30"`
	PredictionLookbackSeconds int      `envconfig:"PREDICTION_LOOKBACK_SECONDS" default:"300"`
	TrainingLookbackHours     int      `envconfig:"TRAINING_LOOKBACK_HOURS" default:"168"`
	OpTimeoutSeconds          int      `envconfig:"OP_TIMEOUT_SECONDS" default:"15"`
	Sensors                   []string `envconfig:"SENSORS_TO_PREDICT" default:"pressure-1,temp-1,flow-1,pressure-2,flow-2,vibration-1,pressure-3,flow-3,temp-2,oil-production,gas-production,water-cut,valve-inlet,valve-gas,valve-water,valve-oil,temp-3"`

	// Startup model source: load a pre-trained model file when set, else
	// train fresh. Optionally persist the trained model for later reuse.
	ModelPath     string `envconfig:"MODEL_PATH" default:""`
	SaveModelPath string `envconfig:"SAVE_MODEL_PATH" default:""`

	// Training budget
	TrainingMaxRuntimeSeconds int     `envconfig:"TRAINING_MAX_RUNTIME_SECONDS" default:"120"`
	TrainingMaxCandidates     int     `envconfig:"TRAINING_MAX_CANDIDATES" default:"10"`
	TrainingEarlyStopRounds   int     `envconfig:"TRAINING_EARLY_STOP_ROUNDS" default:"3"`
	TrainingTolerance         float64 `envconfig:"TRAINING_STOPPING_TOLERANCE" default:"0.001"`
	TrainingSeed              int64   `envconfig:"TRAINING_SEED" default:"1"`

	Debug bool `envconfig:"DEBUG" default:"false"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Sensors) == 0 {
		return fmt.Errorf("SENSORS_TO_PREDICT must name at least one sensor")
	}
	if c.PredictionIntervalSeconds <= 0 {
		return fmt.Errorf("PREDICTION_INTERVAL_SECONDS must be positive, got %d", c.PredictionIntervalSeconds)
	}
	if c.OpTimeoutSeconds <= 0 {
		return fmt.Errorf("OP_TIMEOUT_SECONDS must be positive, got %d", c.OpTimeoutSeconds)
	}
	return nil
}

// DatabaseURL builds the TimescaleDB connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword),
		c.DBHost, c.DBPort, c.DBName)
}

// BrokerURL builds the MQTT broker address.
func (c *Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBrokerHost, c.MQTTBrokerPort)
}

// PredictionInterval returns the cycle interval as a duration.
func (c *Config) PredictionInterval() time.Duration {
	return time.Duration(c.PredictionIntervalSeconds) * time.Second
}

// PredictionLookback returns the per-cycle fetch window.
func (c *Config) PredictionLookback() time.Duration {
	return time.Duration(c.PredictionLookbackSeconds) * time.Second
}

// TrainingLookback returns the bulk training window.
func (c *Config) TrainingLookback() time.Duration {
	return time.Duration(c.TrainingLookbackHours) * time.Hour
}

// OpTimeout returns the per-operation bound inside a cycle.
func (c *Config) OpTimeout() time.Duration {
	return time.Duration(c.OpTimeoutSeconds) * time.Second
}
