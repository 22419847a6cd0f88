package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	LiveKit  LiveKitConfig
	AWS      AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/multispeaker?sslmode=disable)
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
}

// JWTConfig holds session token signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// LiveKitConfig holds the media server connection and token settings.
type LiveKitConfig struct {
	URL            string // ws(s):// URL handed to clients
	APIKey         string
	APISecret      string
	TokenTTLHours  int
	CallTimeoutSec int // timeout for room-service/egress API calls
}

// AWSConfig holds AWS credentials and the recordings bucket.
type AWSConfig struct {
	Region              string
	AccessKeyID         string
	SecretAccessKey     string
	RecordingsBucket    string
	PresignExpireSec    int // default TTL for signed download URLs
	PresignMaxExpireSec int // upper bound a caller may request
	CallTimeoutSec      int // timeout for object-store API calls
}

// DSN returns the PostgreSQL connection string. If DatabaseConfig.URL is set
// (DATABASE_URL env), it is used as-is; otherwise built from components.
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
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "multispeaker"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		LiveKit: LiveKitConfig{
			URL:            getEnv("LIVEKIT_URL", "ws://localhost:7880"),
			APIKey:         getEnv("LIVEKIT_API_KEY", ""),
			APISecret:      getEnv("LIVEKIT_API_SECRET", ""),
			TokenTTLHours:  getEnvInt("LIVEKIT_TOKEN_TTL_HOURS", 6),
			CallTimeoutSec: getEnvInt("LIVEKIT_CALL_TIMEOUT_SEC", 10),
		},
		AWS: AWSConfig{
			Region:              getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:         getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
			RecordingsBucket:    getEnv("AWS_S3_RECORDINGS_BUCKET", "multispeaker-recordings"),
			PresignExpireSec:    getEnvInt("AWS_PRESIGN_EXPIRE_SEC", 3600),
			PresignMaxExpireSec: getEnvInt("AWS_PRESIGN_MAX_EXPIRE_SEC", 86400),
			CallTimeoutSec:      getEnvInt("AWS_CALL_TIMEOUT_SEC", 10),
		},
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
