package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AuthMode 控制台登录校验方式，必须显式配置
type AuthMode string

const (
	AuthEnforced AuthMode = "enforced"
	AuthDisabled AuthMode = "disabled"
)

// GatewayMode 控制台访问社区服务的方式
type GatewayMode string

const (
	GatewayRemote GatewayMode = "remote"
	GatewayLocal  GatewayMode = "local"
)

var (
	ErrAuthModeMissing = errors.New("CONSOLE_AUTH_MODE must be set to enforced or disabled")
	ErrAuthModeInvalid = errors.New("CONSOLE_AUTH_MODE must be enforced or disabled")
)

// Config 控制台与社区服务共用的配置
type Config struct {
	HTTP struct {
		ConsoleAddr string // 控制台监听地址
		APIAddr     string // 社区服务监听地址
	}

	Auth struct {
		Mode          AuthMode
		AccessSecret  string
		RefreshSecret string
		AccessTTL     time.Duration
		RefreshTTL    time.Duration
	}

	Gateway struct {
		Mode     GatewayMode
		BaseURL  string
		APIToken string
		Timeout  time.Duration
	}

	Database struct {
		DSN string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Kafka struct {
		Brokers []string
		Topic   string
	}

	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
		NotifyTo string // 部署结果通知收件人，为空则不发
	}

	Telegram struct {
		Verify  bool
		BaseURL string
	}

	Deploy struct {
		HandoffDelay time.Duration
	}

	RateLimit struct {
		PerSecond float64
		Burst     int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.ConsoleAddr = getEnv("CONSOLE_ADDR", ":8081")
	cfg.HTTP.APIAddr = getEnv("API_ADDR", ":8080")

	mode, err := parseAuthMode(os.Getenv("CONSOLE_AUTH_MODE"))
	if err != nil {
		return nil, err
	}
	cfg.Auth.Mode = mode
	cfg.Auth.AccessSecret = getEnv("JWT_ACCESS_SECRET", "")
	cfg.Auth.RefreshSecret = getEnv("JWT_REFRESH_SECRET", "")
	cfg.Auth.AccessTTL = parseDuration("JWT_ACCESS_TTL", 30*time.Minute)
	cfg.Auth.RefreshTTL = parseDuration("JWT_REFRESH_TTL", 24*time.Hour)
	if mode == AuthEnforced && (cfg.Auth.AccessSecret == "" || cfg.Auth.RefreshSecret == "") {
		return nil, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required when auth is enforced")
	}

	switch gm := GatewayMode(getEnv("GATEWAY_MODE", string(GatewayRemote))); gm {
	case GatewayRemote, GatewayLocal:
		cfg.Gateway.Mode = gm
	default:
		return nil, fmt.Errorf("GATEWAY_MODE must be remote or local, got %q", gm)
	}
	cfg.Gateway.BaseURL = getEnv("GATEWAY_BASE_URL", "http://localhost:8080")
	cfg.Gateway.APIToken = getEnv("GATEWAY_API_TOKEN", "")
	cfg.Gateway.Timeout = parseDuration("GATEWAY_TIMEOUT", 15*time.Second)

	cfg.Database.DSN = getEnv("DB_DSN", "user:password@tcp(127.0.0.1:3306)/powerhause?charset=utf8mb4&parseTime=True")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt("REDIS_DB", 0)

	cfg.Kafka.Brokers = splitList(getEnv("KAFKA_BROKERS", "localhost:9092"))
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", "community.events")

	cfg.SMTP.Host = getEnv("SMTP_HOST", "")
	cfg.SMTP.Port = parseInt("SMTP_PORT", 587)
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", "")
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", "")
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.Username)
	cfg.SMTP.NotifyTo = getEnv("NOTIFY_EMAIL", "")

	cfg.Telegram.Verify = parseBool("TELEGRAM_VERIFY", false)
	cfg.Telegram.BaseURL = getEnv("TELEGRAM_API_URL", "https://api.telegram.org")

	cfg.Deploy.HandoffDelay = parseDuration("DEPLOY_HANDOFF_DELAY", 2*time.Second)

	cfg.RateLimit.PerSecond = parseFloat("RATE_LIMIT_RPS", 5)
	cfg.RateLimit.Burst = parseInt("RATE_LIMIT_BURST", 10)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func parseAuthMode(v string) (AuthMode, error) {
	switch AuthMode(strings.ToLower(strings.TrimSpace(v))) {
	case "":
		return "", ErrAuthModeMissing
	case AuthEnforced:
		return AuthEnforced, nil
	case AuthDisabled:
		return AuthDisabled, nil
	}
	return "", fmt.Errorf("%w, got %q", ErrAuthModeInvalid, v)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
