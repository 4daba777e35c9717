package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// メディアバックエンドの種別
const (
	MediaBackendHost = "host"
	MediaBackendS3   = "s3"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`

	// Server
	ServerPort string `env:"SERVER_PORT" env-default:"8080"`
	BaseURL    string `env:"BASE_URL"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" env-default:"http://localhost:3000"`

	// Rate Limit（1ユーザーあたりの毎分リクエスト数）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" env-default:"120"`
	RateLimitUpload  int `env:"RATE_LIMIT_UPLOAD" env-default:"10"`

	// Upload
	UploadTempDir string `env:"UPLOAD_TEMP_DIR"`
	UploadMaxSize int64  `env:"UPLOAD_MAX_SIZE" env-default:"536870912"`

	Media MediaConfig

	Reaper ReaperConfig

	// Session
	SessionRetentionDays int `env:"SESSION_RETENTION_DAYS" env-default:"7"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
}

// MediaConfig はメディアバックエンドの設定。
type MediaConfig struct {
	Backend    string        `env:"MEDIA_BACKEND" env-default:"host"`
	HostURL    string        `env:"MEDIA_HOST_URL"`
	HostAPIKey string        `env:"MEDIA_HOST_API_KEY"`
	Timeout    time.Duration `env:"MEDIA_TIMEOUT" env-default:"2m"`

	S3Region          string `env:"S3_REGION" env-default:"us-east-1"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
	S3PublicBaseURL   string `env:"S3_PUBLIC_BASE_URL"`
	S3Prefix          string `env:"S3_PREFIX"`
}

// ReaperConfig は孤立メディア回収ワーカーの設定。
type ReaperConfig struct {
	Interval      time.Duration `env:"REAPER_INTERVAL" env-default:"5m"`
	BatchSize     int           `env:"REAPER_BATCH_SIZE" env-default:"50"`
	MaxConcurrent int           `env:"REAPER_MAX_CONCURRENT" env-default:"4"`
	MaxAttempts   int           `env:"REAPER_MAX_ATTEMPTS" env-default:"8"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	// Required fields
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	require("DATABASE_URL", cfg.DatabaseURL)
	require("BASE_URL", cfg.BaseURL)

	switch cfg.Media.Backend {
	case MediaBackendHost:
		require("MEDIA_HOST_URL", cfg.Media.HostURL)
		require("MEDIA_HOST_API_KEY", cfg.Media.HostAPIKey)
	case MediaBackendS3:
		require("S3_BUCKET", cfg.Media.S3Bucket)
		require("S3_PUBLIC_BASE_URL", cfg.Media.S3PublicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported MEDIA_BACKEND %q (want %q or %q)", cfg.Media.Backend, MediaBackendHost, MediaBackendS3)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.RateLimitGeneral <= 0 || cfg.RateLimitUpload <= 0 {
		return nil, fmt.Errorf("rate limits must be positive: general=%d upload=%d", cfg.RateLimitGeneral, cfg.RateLimitUpload)
	}
	if cfg.Reaper.BatchSize <= 0 || cfg.Reaper.MaxConcurrent <= 0 || cfg.Reaper.MaxAttempts <= 0 {
		return nil, fmt.Errorf("reaper settings must be positive: batch=%d concurrent=%d attempts=%d",
			cfg.Reaper.BatchSize, cfg.Reaper.MaxConcurrent, cfg.Reaper.MaxAttempts)
	}

	if cfg.UploadTempDir == "" {
		cfg.UploadTempDir = os.TempDir()
	}
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}
