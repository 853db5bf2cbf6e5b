package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values shared by the API and worker
// processes.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	EventSubject      string
	GeminiAPIKey      string
	RubricModel       string
	GradingModel      string
	InferenceTimeout  time.Duration
	WorkerConcurrency int
	JobMaxRetry       int
	JobTimeout        time.Duration
	GradingAutoStart  bool
	StatusCacheTTL    time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EVALIA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Evalia API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("event.subject", "evalia.evaluation.status")
	v.SetDefault("rubric.model", "gemini-2.5-pro")
	v.SetDefault("grading.model", "gemini-2.5-flash")
	v.SetDefault("grading.auto_start", false)
	v.SetDefault("inference.timeout", "8m")
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("job.max_retry", 5)
	v.SetDefault("job.timeout", "15m")
	v.SetDefault("status.cache_ttl", "5s")

	inferenceTimeout, err := time.ParseDuration(v.GetString("inference.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid inference timeout: %w", err)
	}

	jobTimeout, err := time.ParseDuration(v.GetString("job.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid job timeout: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("status.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid status cache ttl: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		EventSubject:      v.GetString("event.subject"),
		GeminiAPIKey:      v.GetString("gemini_api_key"),
		RubricModel:       v.GetString("rubric.model"),
		GradingModel:      v.GetString("grading.model"),
		InferenceTimeout:  inferenceTimeout,
		WorkerConcurrency: v.GetInt("worker.concurrency"),
		JobMaxRetry:       v.GetInt("job.max_retry"),
		JobTimeout:        jobTimeout,
		GradingAutoStart:  v.GetBool("grading.auto_start"),
		StatusCacheTTL:    cacheTTL,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("redis url must be provided")
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 10
	}

	if cfg.JobMaxRetry <= 0 {
		cfg.JobMaxRetry = 5
	}

	return cfg, nil
}
