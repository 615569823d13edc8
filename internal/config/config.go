package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Feed     FeedConfig
	Pipeline PipelineConfig
	Stage    StageConfig
	Bridge   BridgeConfig
}

type AppConfig struct {
	Port               string `validate:"required"`
	Environment        string
	LogFilePath        string `validate:"required"`
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	StoreDriver        string `validate:"oneof=postgres memory"`
	JWTSecret          string
}

type DatabaseConfig struct {
	Connection string `validate:"required_if=Driver postgres"`
	Driver     string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
	AlertTo    string `validate:"omitempty,email"`
}

type FeedConfig struct {
	Name         string        `validate:"required"`
	BatchSize    int           `validate:"min=1,max=1000"`
	PollInterval time.Duration `validate:"gt=0"`
	MaxBackoff   time.Duration `validate:"gt=0"`
}

type PipelineConfig struct {
	Workers         int           `validate:"min=1"`
	MaxAttempts     int           `validate:"min=1"`
	RetryBaseDelay  time.Duration `validate:"gt=0"`
	RetryMaxDelay   time.Duration `validate:"gtefield=RetryBaseDelay"`
	AggregatePolicy string        `validate:"oneof=owned active"`
}

type StageConfig struct {
	DefaultTimeout time.Duration `validate:"gt=0"`
	File           string
	// Mode "nats" calls remote stage workers; "local" runs the built-in
	// deterministic agents in process.
	Mode  string `validate:"oneof=nats local"`
	Queue string
}

type BridgeConfig struct {
	Port      string        `validate:"required"`
	Durable   string        `validate:"required"`
	DedupTTL  time.Duration `validate:"gt=0"`
	JWTSecret string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	storeDriver := getEnv("STORE_DRIVER", "postgres")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "pipeline.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			StoreDriver:        storeDriver,
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			Driver:     storeDriver,
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Curate Pipeline"),
			AlertTo:    getEnv("ALERT_EMAIL_TO", ""),
		},
		Feed: FeedConfig{
			Name:         getEnv("FEED_NAME", "pipeline"),
			BatchSize:    getEnvAsInt("FEED_BATCH_SIZE", 100),
			PollInterval: getEnvAsDuration("FEED_POLL_INTERVAL", time.Second),
			MaxBackoff:   getEnvAsDuration("FEED_MAX_BACKOFF", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			Workers:         getEnvAsInt("PIPELINE_WORKERS", 25),
			MaxAttempts:     getEnvAsInt("PIPELINE_MAX_ATTEMPTS", 3),
			RetryBaseDelay:  getEnvAsDuration("PIPELINE_RETRY_BASE_DELAY", 2*time.Second),
			RetryMaxDelay:   getEnvAsDuration("PIPELINE_RETRY_MAX_DELAY", time.Minute),
			AggregatePolicy: getEnv("PIPELINE_AGGREGATE_POLICY", "owned"),
		},
		Stage: StageConfig{
			DefaultTimeout: getEnvAsDuration("STAGE_DEFAULT_TIMEOUT", 60*time.Second),
			File:           getEnv("STAGES_FILE", "stages.yaml"),
			Mode:           getEnv("STAGE_MODE", "nats"),
			Queue:          getEnv("STAGE_QUEUE", "stage-workers"),
		},
		Bridge: BridgeConfig{
			Port:      getEnv("BRIDGE_PORT", "3001"),
			Durable:   getEnv("BRIDGE_DURABLE", "pipeline-bridge"),
			DedupTTL:  getEnvAsDuration("BRIDGE_DEDUP_TTL", 10*time.Minute),
			JWTSecret: getEnv("BRIDGE_JWT_SECRET", ""),
		},
	}
}

// Validate checks the loaded values with struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
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

// getEnvAsDuration accepts Go durations ("1500ms") or bare seconds ("30").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
