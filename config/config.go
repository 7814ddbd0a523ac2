package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все настройки приложения
type Config struct {
	Env     string
	Port    string
	DSN     string
	BaseURL string
	// SecretKey подписывает ссылки подтверждения
	SecretKey            string
	ActivationTimeout    time.Duration
	PasswordResetTimeout time.Duration
	TokenTypeTTL         map[string]time.Duration
	PageSize             int
	CORSOrigins          []string
	LogLevel             string

	RedisAddr     string
	RedisPassword string
	NoticeLimit   int64

	Storage StorageConfig
	Mail    MailConfig
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Production сообщает, запущено ли приложение в боевом режиме.
func (c *Config) Production() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Load читает .env (если есть) и возвращает заполненный Config
func Load() (*Config, error) {
	// Попробуем загрузить файл .env; если его нет, просто пропускаем
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		return nil, fmt.Errorf("DB_DSN must be set")
	}
	secret := os.Getenv("SECRET_KEY")
	if secret == "" {
		return nil, fmt.Errorf("SECRET_KEY must be set")
	}

	port := getEnv("PORT", "8080")
	cfg := &Config{
		Env:       getEnv("APP_ENV", "dev"),
		Port:      port,
		DSN:       dsn,
		BaseURL:   strings.TrimRight(getEnv("BASE_URL", "http://localhost:"+port), "/"),
		SecretKey: secret,
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		Storage: StorageConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", "markbox"),
		},
		Mail: MailConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("MAIL_FROM", "webmaster@localhost"),
		},
	}

	var err error
	if cfg.ActivationTimeout, err = seconds("ACTIVATION_TIMEOUT_SECONDS", 60*60*24); err != nil {
		return nil, err
	}
	if cfg.PasswordResetTimeout, err = seconds("PASSWORD_RESET_TIMEOUT_SECONDS", 60*60*24*3); err != nil {
		return nil, err
	}
	access, err := duration("ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refresh, err := duration("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.TokenTypeTTL = map[string]time.Duration{"access": access, "refresh": refresh}

	if cfg.PageSize, err = integer("PAGE_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("PAGE_SIZE must be positive")
	}
	limit, err := integer("NOTICE_LIMIT", 20)
	if err != nil {
		return nil, err
	}
	cfg.NoticeLimit = int64(limit)
	if cfg.Mail.Port, err = integer("SMTP_PORT", 25); err != nil {
		return nil, err
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if cfg.Storage.UseSSL, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("MINIO_USE_SSL: %w", err)
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func integer(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func seconds(key string, fallback int) (time.Duration, error) {
	n, err := integer(key, fallback)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return time.Duration(n) * time.Second, nil
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
