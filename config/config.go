package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"dev"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MongoURI         string `env:"MONGO_URI"`
	MongoDB          string `env:"MONGO_DB" envDefault:"yoocv"`
	MongoForceTLS12  bool   `env:"MONGO_FORCE_TLS_CONFIG" envDefault:"false"`
	MongoInsecureTLS bool   `env:"MONGO_INSECURE_TLS" envDefault:"false"`
	PostgresURI      string `env:"POSTGRES_URI"`
	RedisAddr        string `env:"REDIS_ADDR"`

	JWTSecret string `env:"JWT_SECRET"`

	// StorageBackend is "gcs" or "minio".
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"gcs"`
	GCSBucket      string `env:"GCS_BUCKET"`
	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET" envDefault:"documents"`
	MinIOLocation  string `env:"MINIO_LOCATION" envDefault:"us-east-1"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	SignedURLTTL time.Duration `env:"SIGNED_URL_TTL" envDefault:"15m"`

	// LLMProvider is "vertex" or "gemini".
	LLMProvider  string `env:"LLM_PROVIDER" envDefault:"vertex"`
	GCPProjectID string `env:"GCP_PROJECT_ID"`
	GCPLocation  string `env:"GCP_LOCATION" envDefault:"us-central1"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	LLMModel     string `env:"LLM_MODEL" envDefault:"gemini-2.0-flash"`

	TikaURL     string        `env:"TIKA_URL" envDefault:"http://localhost:9998"`
	TikaTimeout time.Duration `env:"TIKA_TIMEOUT" envDefault:"60s"`

	JobSearchURL     string        `env:"JOB_SEARCH_URL" envDefault:"https://jsearch.p.rapidapi.com"`
	JobSearchAPIKey  string        `env:"JOB_SEARCH_API_KEY"`
	JobSearchAPIHost string        `env:"JOB_SEARCH_API_HOST" envDefault:"jsearch.p.rapidapi.com"`
	JobSearchTimeout time.Duration `env:"JOB_SEARCH_TIMEOUT" envDefault:"15s"`

	WorkerCount     int           `env:"WORKER_COUNT" envDefault:"4"`
	TaskTimeout     time.Duration `env:"TASK_TIMEOUT" envDefault:"5m"`
	TaskStream      string        `env:"TASK_STREAM" envDefault:"pipeline:tasks"`
	MaxUploadMB     int64         `env:"MAX_UPLOAD_MB" envDefault:"10"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"20s"`
}

// Load reads .env when present, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is not set"))
	}
	if c.PostgresURI == "" {
		errs = append(errs, errors.New("POSTGRES_URI is not set"))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is not set"))
	}
	switch strings.ToLower(c.StorageBackend) {
	case "gcs":
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for the gcs backend"))
		}
	case "minio":
		if c.MinIOEndpoint == "" || c.MinIOAccessKey == "" || c.MinIOSecretKey == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	switch strings.ToLower(c.LLMProvider) {
	case "vertex":
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New("GCP_PROJECT_ID is required for the vertex provider"))
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.WorkerCount < 0 {
		errs = append(errs, errors.New("WORKER_COUNT must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }

func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }
