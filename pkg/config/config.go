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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Mail      MailConfig
	Documents DocumentsConfig
	Club      ClubConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MailConfig configures the transactional mail provider.
type MailConfig struct {
	Enabled     bool
	APIKey      string
	FromAddress string
	ReplyTo     string
}

// DocumentsConfig controls training plan storage.
type DocumentsConfig struct {
	StorageDir string
}

// ClubConfig seeds the persisted club settings record on first read.
// The live values come from the settings table afterwards.
type ClubConfig struct {
	CancellationDeadlineHours   int
	CancellationReasonMinLen    int
	AbsenceAlertThreshold       int
	AbsenceAlertWindowDays      int
	AbsenceAlertCooldownDays    int
	SessionGenerationDaysAhead  int
	MaxUploadSizeMB             int
	AbsenceCountCacheTTLSeconds int
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
		if !errors.As(err, &notFound) {
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Mail = MailConfig{
		Enabled:     v.GetBool("MAIL_ENABLED"),
		APIKey:      v.GetString("MAIL_API_KEY"),
		FromAddress: v.GetString("MAIL_FROM_ADDRESS"),
		ReplyTo:     v.GetString("MAIL_REPLY_TO"),
	}

	cfg.Documents = DocumentsConfig{
		StorageDir: v.GetString("DOCUMENTS_STORAGE_DIR"),
	}

	cfg.Club = ClubConfig{
		CancellationDeadlineHours:   v.GetInt("CANCELLATION_DEADLINE_HOURS"),
		CancellationReasonMinLen:    v.GetInt("CANCELLATION_REASON_MIN_LENGTH"),
		AbsenceAlertThreshold:       v.GetInt("ABSENCE_ALERT_THRESHOLD"),
		AbsenceAlertWindowDays:      v.GetInt("ABSENCE_ALERT_WINDOW_DAYS"),
		AbsenceAlertCooldownDays:    v.GetInt("ABSENCE_ALERT_COOLDOWN_DAYS"),
		SessionGenerationDaysAhead:  v.GetInt("SESSION_GENERATION_DAYS_AHEAD"),
		MaxUploadSizeMB:             v.GetInt("MAX_UPLOAD_SIZE_MB"),
		AbsenceCountCacheTTLSeconds: v.GetInt("ABSENCE_COUNT_CACHE_TTL_SECONDS"),
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
	v.SetDefault("DB_NAME", "gymclub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "gymclub-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MAIL_ENABLED", false)
	v.SetDefault("MAIL_API_KEY", "")
	v.SetDefault("MAIL_FROM_ADDRESS", "noreply@gymclub.local")
	v.SetDefault("MAIL_REPLY_TO", "")

	v.SetDefault("DOCUMENTS_STORAGE_DIR", "./documents")

	v.SetDefault("CANCELLATION_DEADLINE_HOURS", 24)
	v.SetDefault("CANCELLATION_REASON_MIN_LENGTH", 10)
	v.SetDefault("ABSENCE_ALERT_THRESHOLD", 3)
	v.SetDefault("ABSENCE_ALERT_WINDOW_DAYS", 30)
	v.SetDefault("ABSENCE_ALERT_COOLDOWN_DAYS", 14)
	v.SetDefault("SESSION_GENERATION_DAYS_AHEAD", 28)
	v.SetDefault("MAX_UPLOAD_SIZE_MB", 10)
	v.SetDefault("ABSENCE_COUNT_CACHE_TTL_SECONDS", 60)
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
