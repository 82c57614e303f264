package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWTSecret signs session tokens. An empty secret disables token minting
	// and every mint attempt becomes a hard configuration failure.
	JWTSecret     string
	JWTExpiryDays int

	VerifyBaseURL string
	VerifyAPIKey  string
	VerifyTimeout time.Duration
	VerifyMaxRPS  int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string

	CooldownWindow   time.Duration
	ResendDailyLimit int
	EmailOTPTTL      time.Duration
	// DegradeOpen controls what happens when the cooldown/resend cache is
	// unreachable: true permits the guarded action (logged), false denies it.
	DegradeOpen bool

	Throttle ThrottleConfig

	AllowedOrigins []string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts      string
	Notifications string
}

// ThrottleConfig holds the fixed-window ceilings per route class.
type ThrottleConfig struct {
	AuthWindow time.Duration
	AuthMax    int
	OTPWindow  time.Duration
	OTPMax     int
	APIWindow  time.Duration
	APIMax     int
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Accounts:      getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			Notifications: getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
		},

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTExpiryDays: getEnvInt("JWT_EXPIRY_DAYS", 7),

		VerifyBaseURL: getEnv("VERIFY_BASE_URL", ""),
		VerifyAPIKey:  getEnv("VERIFY_API_KEY", ""),
		VerifyTimeout: getEnvDuration("VERIFY_TIMEOUT", 10*time.Second),
		VerifyMaxRPS:  getEnvInt("VERIFY_MAX_RPS", 20),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@bandhan.app"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SNSRegion:    getEnv("SNS_REGION", "us-east-1"),

		CooldownWindow:   getEnvDuration("COOLDOWN_WINDOW", 24*time.Hour),
		ResendDailyLimit: getEnvInt("OTP_RESEND_DAILY_LIMIT", 5),
		EmailOTPTTL:      getEnvDuration("EMAIL_OTP_TTL", 10*time.Minute),
		DegradeOpen:      getEnvBool("DEGRADE_OPEN", true),

		Throttle: ThrottleConfig{
			AuthWindow: getEnvDuration("THROTTLE_AUTH_WINDOW", 15*time.Minute),
			AuthMax:    getEnvInt("THROTTLE_AUTH_MAX", 20),
			OTPWindow:  getEnvDuration("THROTTLE_OTP_WINDOW", 15*time.Minute),
			OTPMax:     getEnvInt("THROTTLE_OTP_MAX", 10),
			APIWindow:  getEnvDuration("THROTTLE_API_WINDOW", time.Minute),
			APIMax:     getEnvInt("THROTTLE_API_MAX", 120),
		},

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
