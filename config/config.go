package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Admin     AdminConfig
	Email     EmailConfig
	Video     VideoConfig
	YouTube   YouTubeConfig
	AWS       AWSConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	PublicBaseURL      string // used for links in emails, e.g. https://community.example.com
	SiteName           string
	Timezone           string   // IANA zone for export timestamps
	TrustedProxies     []string // CIDRs or IPs allowed to set X-Forwarded-For; empty trusts none
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// JWTConfig holds admin JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AdminConfig is the bootstrap admin account created when no admin exists yet.
type AdminConfig struct {
	Email    string
	Password string
	FullName string
}

// EmailConfig is the SMTP fallback used when the settings table has no smtp_* rows.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// VideoConfig controls protected lesson access tokens.
type VideoConfig struct {
	TokenSecret     string
	TokenTTLMinutes int
	MaxViews        int
	BindIP          bool
}

// YouTubeConfig holds the YouTube Data API v3 key (read-only metadata).
type YouTubeConfig struct {
	APIKey string
}

// AWSConfig holds AWS credentials and the media bucket for uploaded images.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	MediaBucket          string
	PresignExpireMinutes int
}

// WorkerConfig holds cron schedules for background jobs.
type WorkerConfig struct {
	MarkPastEventsSpec string
	PurgeTokensSpec    string
}

// RateLimitConfig limits public form submissions per client IP.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
			SiteName:           getEnv("SITE_NAME", "Community Hub"),
			Timezone:           getEnv("TIMEZONE", "Asia/Ho_Chi_Minh"),
			TrustedProxies:     getEnvList("TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "community"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			FullName: getEnv("ADMIN_FULL_NAME", "Administrator"),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Community Hub"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		Video: VideoConfig{
			TokenSecret:     getEnv("VIDEO_TOKEN_SECRET", ""),
			TokenTTLMinutes: getEnvInt("VIDEO_TOKEN_TTL_MINUTES", 120),
			MaxViews:        getEnvInt("VIDEO_MAX_VIEWS", 3),
			BindIP:          getEnvBool("VIDEO_BIND_IP", true),
		},
		YouTube: YouTubeConfig{
			APIKey: getEnv("YOUTUBE_API_KEY", ""),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			MediaBucket:          getEnv("AWS_S3_MEDIA_BUCKET", "community-media"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Worker: WorkerConfig{
			MarkPastEventsSpec: getEnv("CRON_MARK_PAST_EVENTS", "*/15 * * * *"),
			PurgeTokensSpec:    getEnv("CRON_PURGE_VIDEO_TOKENS", "30 3 * * *"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
			Burst:     getEnvInt("RATE_LIMIT_BURST", 5),
		},
	}
	if cfg.Video.TokenSecret == "" {
		cfg.Video.TokenSecret = cfg.JWT.Secret
	}
	if cfg.Video.MaxViews <= 0 {
		return nil, fmt.Errorf("VIDEO_MAX_VIEWS must be positive, got %d", cfg.Video.MaxViews)
	}
	if cfg.Video.TokenTTLMinutes <= 0 {
		return nil, fmt.Errorf("VIDEO_TOKEN_TTL_MINUTES must be positive, got %d", cfg.Video.TokenTTLMinutes)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
