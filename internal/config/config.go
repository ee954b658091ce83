package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Backend   BackendConfig
	Workflow  WorkflowConfig
	Messaging MessagingConfig
	Auth      AuthConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WsLogFilePath      string
	CorsAllowedOrigins string
}

type BackendConfig struct {
	URL     string
	UseMock bool
	// Artificial latency applied by the fixture client.
	MockDelay time.Duration
	UserId    string
}

type WorkflowConfig struct {
	SessionTTL time.Duration
	// Cron expression for the status poller. Empty disables polling.
	StatusPollSpec string
}

// MessagingConfig leaves a broker disabled when its URL is empty.
type MessagingConfig struct {
	NatsURL  string
	RedisURL string
}

type AuthConfig struct {
	// Empty secret means requests run as Backend.UserId without a token.
	JwtSecret string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			WsLogFilePath:      getEnv("WS_LOG_FILE_PATH", "websocket.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3001"),
		},
		Backend: BackendConfig{
			URL:       getEnv("BACKEND_URL", "http://localhost:8000"),
			UseMock:   getEnvAsBool("USE_MOCK", false),
			MockDelay: time.Duration(getEnvAsInt("MOCK_DELAY_MS", 0)) * time.Millisecond,
			UserId:    getEnv("DEFAULT_USER_ID", "user123"),
		},
		Workflow: WorkflowConfig{
			SessionTTL:     time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
			StatusPollSpec: getEnv("STATUS_POLL_SPEC", "@every 30s"),
		},
		Messaging: MessagingConfig{
			NatsURL:  getEnv("NATS_URL", ""),
			RedisURL: getEnv("REDIS_URL", ""),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "testcase-workflow-be"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
