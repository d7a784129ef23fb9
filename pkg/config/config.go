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

// Counter backends supported for complaint number allocation.
const (
	CounterBackendPostgres = "postgres"
	CounterBackendRedis    = "redis"
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
	Geocoder      GeocoderConfig
	Complaints    ComplaintsConfig
	Locations     LocationSessionConfig
	Evidence      EvidenceConfig
	Notifications NotificationsConfig
	Exports       ExportsConfig
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
	PoolSize int

	// DialTimeout bounds both connection setup and the startup ping.
	DialTimeout time.Duration
}

// JWTConfig holds the verification settings for tokens issued by the identity service.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GeocoderConfig configures the forward/reverse geocoding collaborator.
type GeocoderConfig struct {
	BaseURL         string
	UserAgent       string
	Email           string
	Timeout         time.Duration
	RatePerSecond   float64
	Burst           int
	CacheTTL        time.Duration
	Debounce        time.Duration
	MinQueryLength  int
	SuggestionLimit int
}

// ComplaintsConfig controls intake numbering and the externally supplied SLA policy.
type ComplaintsConfig struct {
	CounterBackend string
	Timezone       string
	SLA            map[string]time.Duration
}

// LocationSessionConfig bounds the lifetime of per-citizen resolver sessions.
type LocationSessionConfig struct {
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// EvidenceConfig controls evidence blob storage & validation.
type EvidenceConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// NotificationsConfig toggles the status-change event queue.
type NotificationsConfig struct {
	Enabled           bool
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
}

// ExportsConfig toggles staff exports of the complaint register.
type ExportsConfig struct {
	Enabled bool
	MaxRows int
	// ExcelBOM prefixes CSV output with a UTF-8 byte order mark so spreadsheet tools
	// decode Devanagari addresses correctly.
	ExcelBOM bool
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
		PoolSize: v.GetInt("REDIS_POOL_SIZE"),

		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 3*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: v.GetString("JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Geocoder = GeocoderConfig{
		BaseURL:         strings.TrimRight(v.GetString("GEOCODER_BASE_URL"), "/"),
		UserAgent:       v.GetString("GEOCODER_USER_AGENT"),
		Email:           v.GetString("GEOCODER_EMAIL"),
		Timeout:         parseDuration(v.GetString("GEOCODER_TIMEOUT"), 5*time.Second),
		RatePerSecond:   v.GetFloat64("GEOCODER_RATE_PER_SECOND"),
		Burst:           v.GetInt("GEOCODER_BURST"),
		CacheTTL:        parseDuration(v.GetString("GEOCODER_CACHE_TTL"), 24*time.Hour),
		Debounce:        parseDuration(v.GetString("GEOCODER_DEBOUNCE"), 500*time.Millisecond),
		MinQueryLength:  v.GetInt("GEOCODER_MIN_QUERY"),
		SuggestionLimit: v.GetInt("GEOCODER_SUGGESTION_LIMIT"),
	}

	cfg.Complaints = ComplaintsConfig{
		CounterBackend: strings.ToLower(v.GetString("COMPLAINT_COUNTER_BACKEND")),
		Timezone:       v.GetString("COMPLAINT_TIMEZONE"),
		SLA:            make(map[string]time.Duration),
	}
	for _, priority := range []string{"LOW", "MEDIUM", "HIGH", "URGENT"} {
		if d := parseDuration(v.GetString("SLA_"+priority), 0); d > 0 {
			cfg.Complaints.SLA[priority] = d
		}
	}

	cfg.Locations = LocationSessionConfig{
		SessionTTL:    parseDuration(v.GetString("LOCATION_SESSION_TTL"), 30*time.Minute),
		SweepInterval: parseDuration(v.GetString("LOCATION_SWEEP_INTERVAL"), 5*time.Minute),
	}

	maxEvidenceSize := v.GetInt64("EVIDENCE_MAX_FILE_SIZE")
	if maxEvidenceSize <= 0 {
		maxEvidenceSize = 5 * 1024 * 1024
	}
	cfg.Evidence = EvidenceConfig{
		StorageDir:       v.GetString("EVIDENCE_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("EVIDENCE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("EVIDENCE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxEvidenceSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("EVIDENCE_ALLOWED_MIME_TYPES")),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:           v.GetBool("ENABLE_NOTIFICATIONS"),
		WorkerConcurrency: v.GetInt("NOTIFICATIONS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("NOTIFICATIONS_WORKER_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
		MaxRows: v.GetInt("EXPORTS_MAX_ROWS"),

		ExcelBOM: v.GetBool("EXPORTS_CSV_BOM"),
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
	v.SetDefault("DB_NAME", "sns_grievance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "3s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("GEOCODER_USER_AGENT", "sns-grievance-api/0.1")
	v.SetDefault("GEOCODER_EMAIL", "")
	v.SetDefault("GEOCODER_TIMEOUT", "5s")
	v.SetDefault("GEOCODER_RATE_PER_SECOND", 1.0)
	v.SetDefault("GEOCODER_BURST", 1)
	v.SetDefault("GEOCODER_CACHE_TTL", "24h")
	v.SetDefault("GEOCODER_DEBOUNCE", "500ms")
	v.SetDefault("GEOCODER_MIN_QUERY", 3)
	v.SetDefault("GEOCODER_SUGGESTION_LIMIT", 5)

	v.SetDefault("COMPLAINT_COUNTER_BACKEND", CounterBackendPostgres)
	v.SetDefault("COMPLAINT_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("SLA_LOW", "")
	v.SetDefault("SLA_MEDIUM", "")
	v.SetDefault("SLA_HIGH", "")
	v.SetDefault("SLA_URGENT", "")

	v.SetDefault("LOCATION_SESSION_TTL", "30m")
	v.SetDefault("LOCATION_SWEEP_INTERVAL", "5m")

	v.SetDefault("EVIDENCE_STORAGE_DIR", "./evidence")
	v.SetDefault("EVIDENCE_SIGNED_URL_SECRET", "dev_evidence_secret")
	v.SetDefault("EVIDENCE_SIGNED_URL_TTL", "30m")
	v.SetDefault("EVIDENCE_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("EVIDENCE_ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/webp")

	v.SetDefault("ENABLE_NOTIFICATIONS", true)
	v.SetDefault("NOTIFICATIONS_WORKER_CONCURRENCY", 2)
	v.SetDefault("NOTIFICATIONS_WORKER_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "2s")

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_MAX_ROWS", 1000)
	v.SetDefault("EXPORTS_CSV_BOM", true)
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such file")
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
