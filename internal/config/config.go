package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Environment constants
const (
	EnvProduction = "production"
)

// Config holds all application configuration.
type Config struct {
	App         AppConfig
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
	Permissions PermissionsConfig
	Audit       AuditConfig
	Stream      StreamConfig
	Worker      WorkerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration // Per-request handler timeout
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host          string
	Port          int
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	TLSEnabled    bool
	TLSSkipVerify bool
	MaxRetries    int
	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string

	SkipHealthLogs     bool // Skip logging health check endpoints
	SlowRequestSeconds int  // Log requests slower than this as warnings

	// Repeated messages beyond SamplingThreshold per second are written at
	// SamplingRate.
	SamplingEnabled   bool
	SamplingThreshold int
	SamplingRate      float64
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled         bool
	RequestsPerSec  float64
	Burst           int
	CleanupInterval time.Duration
}

// PermissionsConfig holds resolver table and caching configuration.
type PermissionsConfig struct {
	// PresetsFile is an optional YAML file replacing the built-in catalog
	// and presets. An s3://bucket/key location is fetched from S3.
	PresetsFile string
	// S3 configures access to an s3:// PresetsFile. Empty keys fall back to
	// the default AWS credential chain.
	S3 S3Config
	// DefaultPreset is applied to participants created without a preset.
	DefaultPreset string
	// CacheTTL is how long resolved records stay in Redis. Zero disables caching.
	CacheTTL time.Duration
}

// S3Config holds S3 access settings.
type S3Config struct {
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	RoleARN    string
	ExternalID string
}

// AuditConfig holds audit log retention settings.
type AuditConfig struct {
	// RetentionDays is how long audit events are kept. Zero keeps them forever.
	RetentionDays int
	// RetentionSchedule is the cron expression the purge runs on.
	RetentionSchedule string
}

// StreamConfig holds the live permission change stream settings.
type StreamConfig struct {
	Enabled bool
	// MaxSubscriptions caps the channels a single connection may join.
	MaxSubscriptions int
}

// WorkerConfig holds background job configuration.
type WorkerConfig struct {
	Enabled     bool
	Concurrency int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "dealroom"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 1<<20), // 1MB default
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "dealroom"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "dealroom"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			PoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:  getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			TLSEnabled:    getEnvBool("REDIS_TLS_ENABLED", false),
			TLSSkipVerify: getEnvBool("REDIS_TLS_SKIP_VERIFY", false),
			MaxRetries:    getEnvInt("REDIS_MAX_RETRIES", 3),
			MinRetryDelay: getEnvDuration("REDIS_MIN_RETRY_DELAY", 100*time.Millisecond),
			MaxRetryDelay: getEnvDuration("REDIS_MAX_RETRY_DELAY", 3*time.Second),
		},
		Log: LogConfig{
			Level:              getEnv("LOG_LEVEL", "info"),
			Format:             getEnv("LOG_FORMAT", "json"),
			SkipHealthLogs:     getEnvBool("LOG_SKIP_HEALTH", true),
			SlowRequestSeconds: getEnvInt("LOG_SLOW_REQUEST_SECONDS", 5),
			SamplingEnabled:    getEnvBool("LOG_SAMPLING_ENABLED", false),
			SamplingThreshold:  getEnvInt("LOG_SAMPLING_THRESHOLD", 100),
			SamplingRate:       getEnvFloat("LOG_SAMPLING_RATE", 0.1),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Accept", "Content-Type", "Content-Encoding", "X-Request-ID", "X-Actor-ID"}),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 86400),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSec:  getEnvFloat("RATE_LIMIT_RPS", 100),
			Burst:           getEnvInt("RATE_LIMIT_BURST", 200),
			CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP", time.Minute),
		},
		Permissions: PermissionsConfig{
			PresetsFile:   getEnv("PERMISSIONS_PRESETS_FILE", ""),
			DefaultPreset: getEnv("PERMISSIONS_DEFAULT_PRESET", "participant"),
			CacheTTL:      getEnvDuration("PERMISSIONS_CACHE_TTL", 5*time.Minute),
			S3: S3Config{
				Region:     getEnv("PERMISSIONS_S3_REGION", ""),
				Endpoint:   getEnv("PERMISSIONS_S3_ENDPOINT", ""),
				AccessKey:  getEnv("PERMISSIONS_S3_ACCESS_KEY", ""),
				SecretKey:  getEnv("PERMISSIONS_S3_SECRET_KEY", ""),
				RoleARN:    getEnv("PERMISSIONS_S3_ROLE_ARN", ""),
				ExternalID: getEnv("PERMISSIONS_S3_EXTERNAL_ID", ""),
			},
		},
		Audit: AuditConfig{
			RetentionDays:     getEnvInt("AUDIT_RETENTION_DAYS", 365),
			RetentionSchedule: getEnv("AUDIT_RETENTION_SCHEDULE", "0 3 * * *"),
		},
		Stream: StreamConfig{
			Enabled:          getEnvBool("STREAM_ENABLED", true),
			MaxSubscriptions: getEnvInt("STREAM_MAX_SUBSCRIPTIONS", 50),
		},
		Worker: WorkerConfig{
			Enabled:     getEnvBool("WORKER_ENABLED", true),
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration. All problems are reported at once.
func (c *Config) Validate() error {
	errs := []error{
		c.validateBasic(),
		c.validateLog(),
		c.validatePermissions(),
		c.validateAudit(),
	}
	if c.IsProduction() {
		errs = append(errs, c.validateProduction())
	}
	return errors.Join(errs...)
}

func (c *Config) validateBasic() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("SERVER_MAX_BODY_SIZE must be positive, got %d", c.Server.MaxBodySize))
	}
	if c.Database.Host == "" {
		errs = append(errs, errors.New("database host is required"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSec <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled"))
	}
	if c.Worker.Enabled && c.Worker.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.Worker.Concurrency))
	}
	return errors.Join(errs...)
}

func (c *Config) validateLog() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_FORMAT: %s (must be json or text)", c.Log.Format))
	}
	if c.Log.SlowRequestSeconds < 0 {
		errs = append(errs, fmt.Errorf("LOG_SLOW_REQUEST_SECONDS must be non-negative, got %d", c.Log.SlowRequestSeconds))
	}
	if c.Log.SamplingEnabled {
		if c.Log.SamplingThreshold < 1 {
			errs = append(errs, fmt.Errorf("LOG_SAMPLING_THRESHOLD must be at least 1, got %d", c.Log.SamplingThreshold))
		}
		if c.Log.SamplingRate < 0 || c.Log.SamplingRate > 1 {
			errs = append(errs, fmt.Errorf("LOG_SAMPLING_RATE must be between 0 and 1, got %v", c.Log.SamplingRate))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validatePermissions() error {
	var errs []error
	if c.Permissions.DefaultPreset == "" {
		errs = append(errs, errors.New("PERMISSIONS_DEFAULT_PRESET is required"))
	}
	if c.Permissions.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("PERMISSIONS_CACHE_TTL must be non-negative, got %v", c.Permissions.CacheTTL))
	}
	if c.Permissions.PresetsFile != "" && !c.Permissions.PresetsFromS3() {
		if _, err := os.Stat(c.Permissions.PresetsFile); err != nil {
			errs = append(errs, fmt.Errorf("PERMISSIONS_PRESETS_FILE: %w", err))
		}
	}
	s3 := c.Permissions.S3
	if (s3.AccessKey == "") != (s3.SecretKey == "") {
		errs = append(errs, errors.New("PERMISSIONS_S3_ACCESS_KEY and PERMISSIONS_S3_SECRET_KEY must be set together"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateAudit() error {
	var errs []error
	if c.Audit.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("AUDIT_RETENTION_DAYS must be non-negative, got %d", c.Audit.RetentionDays))
	}
	if c.Audit.RetentionDays > 0 {
		if _, err := cron.ParseStandard(c.Audit.RetentionSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid AUDIT_RETENTION_SCHEDULE %q: %w", c.Audit.RetentionSchedule, err))
		}
	}
	if c.Stream.Enabled && c.Stream.MaxSubscriptions < 1 {
		errs = append(errs, fmt.Errorf("STREAM_MAX_SUBSCRIPTIONS must be at least 1, got %d", c.Stream.MaxSubscriptions))
	}
	return errors.Join(errs...)
}

// PresetsFromS3 reports whether the presets file lives in S3.
func (c *PermissionsConfig) PresetsFromS3() bool {
	return strings.HasPrefix(c.PresetsFile, "s3://")
}

// Retention returns the audit retention window, zero when disabled.
func (c *AuditConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *Config) validateProduction() error {
	var errs []error
	if c.App.Debug {
		errs = append(errs, errors.New("debug mode must be disabled in production"))
	}
	if strings.EqualFold(c.Log.Level, "debug") {
		errs = append(errs, errors.New("log level should not be 'debug' in production"))
	}
	if c.Database.SSLMode == "disable" {
		errs = append(errs, errors.New("database SSL must be enabled in production"))
	}
	if c.Redis.Password == "" {
		errs = append(errs, errors.New("redis password must be set in production"))
	}
	if c.Redis.TLSSkipVerify {
		errs = append(errs, errors.New("redis TLS skip verify must be false in production"))
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if origin == "*" {
			errs = append(errs, errors.New("CORS wildcard origin is not allowed in production"))
			break
		}
	}
	return errors.Join(errs...)
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP server address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if the application is in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction returns true if the application is in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
