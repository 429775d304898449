package config

import (
	"fmt"
	"time"
)

const (
	GatewayMatrix  = "matrix"
	GatewayDiscord = "discord"

	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"

	ClassifierHTTP  = "http"
	ClassifierGenAI = "genai"
)

type Config struct {
	Env                        string
	ChatGateway                string
	MatrixHomeserverURL        string
	MatrixUserID               string
	MatrixAccessToken          string
	DiscordToken               string
	CommandPrefix              string
	DatabaseType               string
	DatabaseURL                string
	RedisURL                   string
	ClassifierBackend          string
	ClassifierURL              string
	GenAIAPIKey                string
	GenAIModel                 string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudLocation        string
	TrackingBaseURL            string
	TrackingUsername           string
	TrackingPassword           string
	TrackingGroup              string
	JoinAttempts               int
	EventQueueSize             int
	EventTimeoutSec            int
	ConsentTimeoutMin          int
	HTTPAddr                   string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.ChatGateway {
	case GatewayMatrix, GatewayDiscord:
	default:
		return fmt.Errorf("CHAT_GATEWAY must be %q or %q, got %q", GatewayMatrix, GatewayDiscord, c.ChatGateway)
	}
	switch c.DatabaseType {
	case DatabaseSQLite, DatabasePostgres:
	default:
		return fmt.Errorf("DATABASE_TYPE must be %q or %q, got %q", DatabaseSQLite, DatabasePostgres, c.DatabaseType)
	}
	switch c.ClassifierBackend {
	case ClassifierHTTP, ClassifierGenAI:
	default:
		return fmt.Errorf("CLASSIFIER_BACKEND must be %q or %q, got %q", ClassifierHTTP, ClassifierGenAI, c.ClassifierBackend)
	}
	if c.ClassifierBackend == ClassifierGenAI && c.GenAIAPIKey == "" && (c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "") {
		return fmt.Errorf("GENAI_API_KEY or GOOGLE_CLOUD_PROJECT_ID with GOOGLE_CLOUD_CREDENTIALS_JSON is required when CLASSIFIER_BACKEND=genai")
	}
	if c.JoinAttempts <= 0 {
		return fmt.Errorf("JOIN_ATTEMPTS must be positive, got %d", c.JoinAttempts)
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("EVENT_QUEUE_SIZE must be positive, got %d", c.EventQueueSize)
	}
	if c.EventTimeoutSec <= 0 {
		return fmt.Errorf("EVENT_TIMEOUT_SEC must be positive, got %d", c.EventTimeoutSec)
	}
	if c.ConsentTimeoutMin < 0 {
		return fmt.Errorf("CONSENT_TIMEOUT_MIN must not be negative, got %d", c.ConsentTimeoutMin)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	fields := []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "TRACKING_BASE_URL", value: c.TrackingBaseURL},
		{name: "TRACKING_USERNAME", value: c.TrackingUsername},
		{name: "TRACKING_PASSWORD", value: c.TrackingPassword},
	}
	switch c.ChatGateway {
	case GatewayMatrix:
		fields = append(fields,
			requiredEnvField{name: "MATRIX_HOMESERVER_URL", value: c.MatrixHomeserverURL},
			requiredEnvField{name: "MATRIX_USER_ID", value: c.MatrixUserID},
			requiredEnvField{name: "MATRIX_ACCESS_TOKEN", value: c.MatrixAccessToken},
		)
	case GatewayDiscord:
		fields = append(fields, requiredEnvField{name: "DISCORD_TOKEN", value: c.DiscordToken})
	}
	if c.ClassifierBackend == ClassifierHTTP {
		fields = append(fields, requiredEnvField{name: "CLASSIFIER_URL", value: c.ClassifierURL})
	}
	return fields
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) EventTimeout() time.Duration {
	return time.Duration(c.EventTimeoutSec) * time.Second
}

// ConsentTimeout is zero when unconfirmed rooms are never swept.
func (c *Config) ConsentTimeout() time.Duration {
	return time.Duration(c.ConsentTimeoutMin) * time.Minute
}
