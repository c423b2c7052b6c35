package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds every runtime setting. Values come from the environment,
// optionally seeded from a .env file.
type Config struct {
	DatabaseURL string
	AutoMigrate bool
	Port        string

	JWTSecret string
	JWKSURL   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string

	ReceiptPrefix       string
	PendingCacheTTL     time.Duration
	OverdueScanInterval time.Duration
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("PORT", "8080")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWKS_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_BUCKET", "fee-receipts")
	v.SetDefault("RECEIPT_PREFIX", "RCP")
	v.SetDefault("PENDING_CACHE_TTL", 2*time.Minute)
	v.SetDefault("OVERDUE_SCAN_INTERVAL", 15*time.Minute)
	v.AutomaticEnv()
	return v
}

// Load reads .env (when dotEnvPath exists) and the process environment.
func Load(dotEnvPath string) (*Config, error) {
	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "load %s", dotEnvPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
		} else {
			log.Infof("no %s file found, using environment only", dotEnvPath)
		}
	}
	return fromViper(newViper())
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabaseURL:         v.GetString("DATABASE_URL"),
		AutoMigrate:         v.GetBool("AUTO_MIGRATE"),
		Port:                v.GetString("PORT"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		JWKSURL:             v.GetString("JWKS_URL"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             v.GetInt("REDIS_DB"),
		MinioEndpoint:       v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey:      v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey:      v.GetString("MINIO_SECRET_KEY"),
		MinioUseSSL:         v.GetBool("MINIO_USE_SSL"),
		MinioBucket:         v.GetString("MINIO_BUCKET"),
		ReceiptPrefix:       strings.ToUpper(strings.TrimSpace(v.GetString("RECEIPT_PREFIX"))),
		PendingCacheTTL:     v.GetDuration("PENDING_CACHE_TTL"),
		OverdueScanInterval: v.GetDuration("OVERDUE_SCAN_INTERVAL"),
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWTSecret == "" && c.JWKSURL == "" {
		return errors.New("one of JWT_SECRET or JWKS_URL is required")
	}
	if c.ReceiptPrefix == "" {
		return errors.New("RECEIPT_PREFIX must not be empty")
	}
	if c.OverdueScanInterval < time.Minute {
		return errors.New("OVERDUE_SCAN_INTERVAL must be at least 1m")
	}
	return nil
}

// MinioEnabled reports whether receipt archiving is configured.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}
