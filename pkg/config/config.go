package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Cache         CacheConfig
	Payments      PaymentsConfig
	Mail          MailConfig
	Notifications NotificationsConfig
	Classifier    ClassifierConfig
	Sentry        SentryConfig
	Enrollment    EnrollmentConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig tunes cached read models.
type CacheConfig struct {
	ProgressTTL time.Duration
	ScheduleTTL time.Duration
}

// PaymentsConfig configures the checkout provider and seat admission.
type PaymentsConfig struct {
	SecretKey       string
	WebhookSecret   string
	Currency        string
	SuccessURL      string
	CancelURL       string
	ProviderTimeout time.Duration
	SeatHoldTTL     time.Duration
	ReconcileSpec   string
	ReconcileAfter  time.Duration
	ReconcileWindow time.Duration
}

// MailConfig configures outbound notification email.
type MailConfig struct {
	SendGridAPIKey string
	FromName       string
	FromAddress    string
	Timeout        time.Duration
}

// NotificationsConfig sizes the notification worker pool.
type NotificationsConfig struct {
	Workers     int
	Retries     int
	RetryDelay  time.Duration
	SendTimeout time.Duration
}

// ClassifierConfig points at the identity document classifier.
type ClassifierConfig struct {
	URL               string
	Timeout           time.Duration
	DocumentThreshold float64
}

type SentryConfig struct {
	DSN     string
	Release string
}

// EnrollmentConfig toggles optional admission rules.
type EnrollmentConfig struct {
	EnforceStudentSchedule bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		ProgressTTL: parseDuration(v.GetString("PROGRESS_CACHE_TTL"), 5*time.Minute),
		ScheduleTTL: parseDuration(v.GetString("SCHEDULE_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Payments = PaymentsConfig{
		SecretKey:       v.GetString("STRIPE_SECRET_KEY"),
		WebhookSecret:   v.GetString("STRIPE_WEBHOOK_SECRET"),
		Currency:        strings.ToLower(v.GetString("PAYMENT_CURRENCY")),
		SuccessURL:      v.GetString("PAYMENT_SUCCESS_URL"),
		CancelURL:       v.GetString("PAYMENT_CANCEL_URL"),
		ProviderTimeout: parseDuration(v.GetString("PAYMENT_PROVIDER_TIMEOUT"), 10*time.Second),
		SeatHoldTTL:     parseDuration(v.GetString("SEAT_HOLD_TTL"), 35*time.Minute),
		ReconcileSpec:   v.GetString("PAYMENT_RECONCILE_SPEC"),
		ReconcileAfter:  parseDuration(v.GetString("PAYMENT_RECONCILE_AFTER"), 5*time.Minute),
		ReconcileWindow: parseDuration(v.GetString("PAYMENT_RECONCILE_WINDOW"), 24*time.Hour),
	}

	cfg.Mail = MailConfig{
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
		Timeout:        parseDuration(v.GetString("MAIL_TIMEOUT"), 10*time.Second),
	}

	cfg.Notifications = NotificationsConfig{
		Workers:     v.GetInt("NOTIFICATION_WORKERS"),
		Retries:     v.GetInt("NOTIFICATION_RETRIES"),
		RetryDelay:  parseDuration(v.GetString("NOTIFICATION_RETRY_DELAY"), 5*time.Second),
		SendTimeout: parseDuration(v.GetString("NOTIFICATION_SEND_TIMEOUT"), 30*time.Second),
	}

	cfg.Classifier = ClassifierConfig{
		URL:               v.GetString("CLASSIFIER_URL"),
		Timeout:           parseDuration(v.GetString("CLASSIFIER_TIMEOUT"), 15*time.Second),
		DocumentThreshold: v.GetFloat64("DOCUMENT_THRESHOLD"),
	}

	cfg.Sentry = SentryConfig{
		DSN:     v.GetString("SENTRY_DSN"),
		Release: v.GetString("SENTRY_RELEASE"),
	}

	cfg.Enrollment = EnrollmentConfig{
		EnforceStudentSchedule: v.GetBool("ENFORCE_STUDENT_SCHEDULE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "edu_scheduling")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "edu-scheduling-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PROGRESS_CACHE_TTL", "5m")
	v.SetDefault("SCHEDULE_CACHE_TTL", "10m")

	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("PAYMENT_CURRENCY", "usd")
	v.SetDefault("PAYMENT_SUCCESS_URL", "http://localhost:5173/payments/success")
	v.SetDefault("PAYMENT_CANCEL_URL", "http://localhost:5173/payments/cancel")
	v.SetDefault("PAYMENT_PROVIDER_TIMEOUT", "10s")
	v.SetDefault("SEAT_HOLD_TTL", "35m")
	v.SetDefault("PAYMENT_RECONCILE_SPEC", "@every 10m")
	v.SetDefault("PAYMENT_RECONCILE_AFTER", "5m")
	v.SetDefault("PAYMENT_RECONCILE_WINDOW", "24h")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "Edu Scheduling")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@localhost")
	v.SetDefault("MAIL_TIMEOUT", "10s")

	v.SetDefault("NOTIFICATION_WORKERS", 2)
	v.SetDefault("NOTIFICATION_RETRIES", 3)
	v.SetDefault("NOTIFICATION_RETRY_DELAY", "5s")
	v.SetDefault("NOTIFICATION_SEND_TIMEOUT", "30s")

	v.SetDefault("CLASSIFIER_URL", "http://localhost:8001")
	v.SetDefault("CLASSIFIER_TIMEOUT", "15s")
	v.SetDefault("DOCUMENT_THRESHOLD", 0.70)

	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("SENTRY_RELEASE", "")

	v.SetDefault("ENFORCE_STUDENT_SCHEDULE", false)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
