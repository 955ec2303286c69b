package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	Env                string
	CORSAllowedOrigins []string
	APIMaxBodyBytes    int64
	AcceptMaxBodyBytes int64
	ReadHeaderTimeout  time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	RateLimitPerMinute int
	RateLimitMaxIPs    int
	APIKeyHashes       []string

	SchemaName    string
	DeliveryTable string
	ServiceTable  string

	S3 S3Config
}

type S3Config struct {
	Bucket         string
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	UsePathStyle   bool
	PresignExpires time.Duration
}

// Enabled reports whether attachment links can be signed.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:               getEnv("API_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Env:                getEnv("APP_ENV", "dev"),
		CORSAllowedOrigins: getEnvCSV("CORS_ALLOWED_ORIGINS", []string{"*"}),
		APIMaxBodyBytes:    int64(getEnvInt("API_MAX_BODY_MB", 2)) * 1024 * 1024,
		AcceptMaxBodyBytes: int64(getEnvInt("ACCEPT_MAX_BODY_KB", 256)) * 1024,
		ReadHeaderTimeout:  time.Duration(getEnvInt("API_READ_HEADER_TIMEOUT_SEC", 5)) * time.Second,
		ReadTimeout:        time.Duration(getEnvInt("API_READ_TIMEOUT_SEC", 15)) * time.Second,
		WriteTimeout:       time.Duration(getEnvInt("API_WRITE_TIMEOUT_SEC", 60)) * time.Second,
		IdleTimeout:        time.Duration(getEnvInt("API_IDLE_TIMEOUT_SEC", 60)) * time.Second,
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitMaxIPs:    getEnvInt("RATE_LIMIT_MAX_IPS", 10000),
		APIKeyHashes:       getEnvCSV("API_KEY_HASHES", nil),
		SchemaName:         getEnv("SCHEMA_NAME", "public"),
		DeliveryTable:      getEnv("DELIVERY_TABLE", "delivery_tickets"),
		ServiceTable:       getEnv("SERVICE_TABLE", "service_jobs"),
		S3: S3Config{
			Bucket:         os.Getenv("S3_BUCKET"),
			Endpoint:       os.Getenv("S3_ENDPOINT"),
			Region:         getEnv("S3_REGION", "us-east-1"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			UsePathStyle:   getEnvBool("S3_USE_PATH_STYLE", false),
			PresignExpires: time.Duration(getEnvInt("S3_PRESIGN_MINUTES", 15)) * time.Minute,
		},
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Env == "prod" && len(cfg.APIKeyHashes) == 0 {
		return Config{}, fmt.Errorf("API_KEY_HASHES is required when APP_ENV=prod")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvCSV(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
