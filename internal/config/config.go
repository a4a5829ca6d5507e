package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultMaxImageSizeBytes = 50 * 1024 * 1024
	defaultThumbnailHeight   = 200
	defaultImageQuality      = 80
)

type Config struct {
	App     AppConfig
	DB      DatabaseConfig
	Auth    AuthConfig
	Blob    BlobConfig
	Image   ImageConfig
	Limiter LimiterConfig
}

type AppConfig struct {
	Env   string `validate:"oneof=local development production"`
	Port  string `validate:"required,numeric"`
	Debug bool
}

type DatabaseConfig struct {
	DSN string `validate:"required"`
}

type AuthConfig struct {
	SessionSecret string `validate:"required,min=16"`
	GoogleKey     string
	GoogleSecret  string
	CallbackURL   string `validate:"required,url"`
	// SecureCookies is enabled in production.
	SecureCookies bool
}

type BlobConfig struct {
	Backend         string `validate:"oneof=s3 minio"`
	AccountID       string `validate:"required_if=Backend s3"`
	AccessKeyID     string `validate:"required"`
	AccessKeySecret string `validate:"required"`
	Bucket          string `validate:"required"`
	MinioEndpoint   string `validate:"required_if=Backend minio"`
	MinioSecure     bool
	PublicURL       string
}

type ImageConfig struct {
	Backend           string `validate:"oneof=vips go"`
	MaxSizeBytes      int    `validate:"gt=0"`
	ThumbnailHeightPx int    `validate:"gt=0"`
	Quality           int    `validate:"gte=1,lte=100"`
	DedupStrategy     string `validate:"oneof=length digest"`
}

type LimiterConfig struct {
	RequestsPerMinute int `validate:"gt=0"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	env := getEnv("ENV", "local")
	cfg := &Config{
		App: AppConfig{
			Env:   env,
			Port:  getEnv("PORT", "3000"),
			Debug: getEnvBool("DEBUG", false),
		},
		DB: DatabaseConfig{
			DSN: os.Getenv("DSN"),
		},
		Auth: AuthConfig{
			SessionSecret: os.Getenv("SESSION_SECRET"),
			GoogleKey:     os.Getenv("GOOGLE_KEY"),
			GoogleSecret:  os.Getenv("GOOGLE_SECRET"),
			CallbackURL:   getEnv("OAUTH_CALLBACK_URL", "http://localhost:3000/auth/google/callback"),
			SecureCookies: env == "production",
		},
		Blob: BlobConfig{
			Backend:         getEnv("BLOB_BACKEND", "s3"),
			AccountID:       os.Getenv("ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("BUCKET_NAME"),
			MinioEndpoint:   os.Getenv("MINIO_ENDPOINT"),
			MinioSecure:     getEnvBool("MINIO_SECURE", true),
			PublicURL:       os.Getenv("PUBLIC_URL"),
		},
		Image: ImageConfig{
			Backend:           getEnv("IMAGE_BACKEND", "vips"),
			MaxSizeBytes:      getEnvInt("MAX_IMAGE_SIZE_BYTES", defaultMaxImageSizeBytes),
			ThumbnailHeightPx: getEnvInt("THUMBNAIL_HEIGHT_PX", defaultThumbnailHeight),
			Quality:           getEnvInt("IMAGE_QUALITY", defaultImageQuality),
			DedupStrategy:     getEnv("DEDUP_STRATEGY", "length"),
		},
		Limiter: LimiterConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
