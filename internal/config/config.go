// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストアドライバー
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	// Admin auth
	JWTSecret         string
	TokenTTL          time.Duration
	AdminEmail        string
	AdminPassword     string
	AdminPasswordHash string

	// Server
	ServerPort    string
	ClientURL     string
	PublicSiteURL string
	TrustProxy    bool

	// Rate Limit
	RateLimitSweepInterval time.Duration

	// Mail
	MailHost         string
	MailPort         int
	MailUsername     string
	MailPassword     string
	MailFrom         string
	MailToFallback   string
	MailBatchSize    int
	MailSendInterval time.Duration
	NotifyOnPublish  bool

	// AI
	AIProvider string
	AIAPIKey   string
	AIModel    string
	AITimeout  time.Duration

	// Media
	ImageProviderURL string
	UploadDir        string
	UploadMaxBytes   int64
	ImageMaxWidth    int

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込むが、設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.StoreDriver = strings.ToLower(getEnvString("STORE_DRIVER", StoreDriverPostgres))
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreDriverMongo:
		cfg.MongoURI = os.Getenv("MONGODB_URI")
		if cfg.MongoURI == "" {
			missing = append(missing, "MONGODB_URI")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q (want %q or %q)", cfg.StoreDriver, StoreDriverPostgres, StoreDriverMongo)
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.AdminEmail = os.Getenv("ADMIN_EMAIL")
	if cfg.AdminEmail == "" {
		missing = append(missing, "ADMIN_EMAIL")
	}

	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	if cfg.AdminPassword == "" && cfg.AdminPasswordHash == "" {
		missing = append(missing, "ADMIN_PASSWORD or ADMIN_PASSWORD_HASH")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.MongoDatabase = getEnvString("MONGODB_DATABASE", "WriteFlow")
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 12*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")
	cfg.ClientURL = getEnvString("CLIENT_URL", "http://localhost:5173")
	cfg.PublicSiteURL = getEnvString("PUBLIC_SITE_URL", cfg.ClientURL)
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", false)
	cfg.RateLimitSweepInterval = getEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute)

	cfg.MailHost = getEnvString("MAIL_HOST", "")
	cfg.MailPort = getEnvInt("MAIL_PORT", 587)
	cfg.MailUsername = getEnvString("MAIL_USERNAME", "")
	cfg.MailPassword = getEnvString("MAIL_PASSWORD", "")
	cfg.MailFrom = getEnvString("MAIL_FROM", cfg.MailUsername)
	cfg.MailToFallback = getEnvString("MAIL_TO_FALLBACK", cfg.MailFrom)
	cfg.MailBatchSize = getEnvInt("MAIL_BATCH_SIZE", 50)
	cfg.MailSendInterval = getEnvDuration("MAIL_SEND_INTERVAL", time.Second)
	cfg.NotifyOnPublish = getEnvBool("NOTIFY_ON_PUBLISH", false)

	cfg.AIProvider = strings.ToLower(getEnvString("AI_PROVIDER", "gemini"))
	cfg.AIAPIKey = getEnvString("AI_API_KEY", "")
	cfg.AIModel = getEnvString("AI_MODEL", "")
	cfg.AITimeout = getEnvDuration("AI_TIMEOUT", 30*time.Second)

	cfg.ImageProviderURL = getEnvString("IMAGE_PROVIDER_URL", "https://image.pollinations.ai/prompt/")
	cfg.UploadDir = getEnvString("UPLOAD_DIR", "./uploads")
	cfg.UploadMaxBytes = getEnvInt64("UPLOAD_MAX_BYTES", 10<<20)
	cfg.ImageMaxWidth = getEnvInt("IMAGE_MAX_WIDTH", 1280)

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// loadDotEnv はpathの.envファイルを読み込む。ファイルが存在しない場合は何もしない。
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
