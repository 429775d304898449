package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/UKPLab/aacl2022-TexPrax/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                        string `env:"ENV" envDefault:"production"`
	ChatGateway                string `env:"CHAT_GATEWAY" envDefault:"matrix"`
	MatrixHomeserverURL        string `env:"MATRIX_HOMESERVER_URL"`
	MatrixUserID               string `env:"MATRIX_USER_ID"`
	MatrixAccessToken          string `env:"MATRIX_ACCESS_TOKEN"`
	DiscordToken               string `env:"DISCORD_TOKEN"`
	CommandPrefix              string `env:"COMMAND_PREFIX"`
	DatabaseType               string `env:"DATABASE_TYPE" envDefault:"sqlite"`
	DatabaseURL                string `env:"DATABASE_URL" envDefault:"./data/recorderbot.db"`
	RedisURL                   string `env:"REDIS_URL"`
	ClassifierBackend          string `env:"CLASSIFIER_BACKEND" envDefault:"http"`
	ClassifierURL              string `env:"CLASSIFIER_URL"`
	GenAIAPIKey                string `env:"GENAI_API_KEY"`
	GenAIModel                 string `env:"GENAI_MODEL" envDefault:"gemini-2.0-flash"`
	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudLocation        string `env:"GOOGLE_CLOUD_LOCATION" envDefault:"europe-west4"`
	TrackingBaseURL            string `env:"TRACKING_BASE_URL"`
	TrackingUsername           string `env:"TRACKING_USERNAME"`
	TrackingPassword           string `env:"TRACKING_PASSWORD"`
	TrackingGroup              string `env:"TRACKING_GROUP" envDefault:"Key User"`
	JoinAttempts               int    `env:"JOIN_ATTEMPTS" envDefault:"3"`
	EventQueueSize             int    `env:"EVENT_QUEUE_SIZE" envDefault:"256"`
	EventTimeoutSec            int    `env:"EVENT_TIMEOUT_SEC" envDefault:"60"`
	ConsentTimeoutMin          int    `env:"CONSENT_TIMEOUT_MIN" envDefault:"0"`
	HTTPAddr                   string `env:"HTTP_ADDR"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*internalconfig.Config, error) {
	_ = godotenv.Load()

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		ChatGateway:                raw.ChatGateway,
		MatrixHomeserverURL:        raw.MatrixHomeserverURL,
		MatrixUserID:               raw.MatrixUserID,
		MatrixAccessToken:          raw.MatrixAccessToken,
		DiscordToken:               raw.DiscordToken,
		CommandPrefix:              raw.CommandPrefix,
		DatabaseType:               raw.DatabaseType,
		DatabaseURL:                raw.DatabaseURL,
		RedisURL:                   raw.RedisURL,
		ClassifierBackend:          raw.ClassifierBackend,
		ClassifierURL:              raw.ClassifierURL,
		GenAIAPIKey:                raw.GenAIAPIKey,
		GenAIModel:                 raw.GenAIModel,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudLocation:        raw.GoogleCloudLocation,
		TrackingBaseURL:            raw.TrackingBaseURL,
		TrackingUsername:           raw.TrackingUsername,
		TrackingPassword:           raw.TrackingPassword,
		TrackingGroup:              raw.TrackingGroup,
		JoinAttempts:               raw.JoinAttempts,
		EventQueueSize:             raw.EventQueueSize,
		EventTimeoutSec:            raw.EventTimeoutSec,
		ConsentTimeoutMin:          raw.ConsentTimeoutMin,
		HTTPAddr:                   raw.HTTPAddr,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
