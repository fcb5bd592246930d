package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"roombook/pkg/client"
	kafkaconfig "roombook/pkg/kafka/config"
	"roombook/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	StorageDriver string

	PostgresDSN             string
	PostgresMaxOpenConns    int
	PostgresMaxIdleConns    int
	PostgresConnMaxLifetime time.Duration
	TracingEnabled          bool

	LockBackend string
	LockTimeout time.Duration
	LockTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka is nil when KAFKA_BROKERS is unset; events are then dropped.
	Kafka      *kafkaconfig.Config
	KafkaTopic string

	JWTSecret string

	RoomsServiceURL   string
	SearchConcurrency int

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the environment (and a .env file when present), validates the
// result and exits the process on invalid configuration.
func Load(serviceName string) *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env file: %v\n", err)
	}

	cfg := FromEnv(serviceName)
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from environment variables without validating it.
func FromEnv(serviceName string) *Config {
	cfg := &Config{
		ServiceName: serviceName,

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		StorageDriver: strings.ToLower(getEnvStr(EnvStorageDriver, DefaultStorageDriver)),

		PostgresDSN:             getEnvStr(EnvPostgresDSN, DefaultPostgresDSN),
		PostgresMaxOpenConns:    getEnvNum(EnvPostgresMaxOpenConns, DefaultPostgresMaxOpenConns),
		PostgresMaxIdleConns:    getEnvNum(EnvPostgresMaxIdleConns, DefaultPostgresMaxIdleConns),
		PostgresConnMaxLifetime: getEnvDuration(EnvPostgresConnMaxLifetime, DefaultPostgresConnMaxLifetime),
		TracingEnabled:          getEnvBool(EnvTracingEnabled, false),

		LockBackend: strings.ToLower(getEnvStr(EnvLockBackend, DefaultLockBackend)),
		LockTimeout: getEnvDuration(EnvLockTimeout, DefaultLockTimeout),
		LockTTL:     getEnvDuration(EnvLockTTL, DefaultLockTTL),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, 0),

		KafkaTopic: getEnvStr(EnvKafkaTopic, DefaultKafkaTopic),

		JWTSecret: getEnvStr(EnvJWTSecret, ""),

		RoomsServiceURL:   strings.TrimRight(getEnvStr(EnvRoomsServiceURL, DefaultRoomsServiceURL), "/"),
		SearchConcurrency: getEnvNum(EnvSearchConcurrency, DefaultSearchConcurrency),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if os.Getenv(kafkaconfig.EnvKafkaBrokers) != "" {
		cfg.Kafka = kafkaconfig.Load()
	}

	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, client.MongoOptions{
		URI:         cfg.MongoURI,
		AppName:     "roombook-" + cfg.ServiceName,
		ConnTimeout: cfg.MongoConnTimeout,
	})
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, client.PostgresOptions{
		DSN:             cfg.PostgresDSN,
		MaxOpenConns:    cfg.PostgresMaxOpenConns,
		MaxIdleConns:    cfg.PostgresMaxIdleConns,
		ConnMaxLifetime: cfg.PostgresConnMaxLifetime,
		Tracing:         cfg.TracingEnabled,
	})
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

// SetStorage connects every backend the configured storage driver and lock
// backend need.
func (cfg *Config) SetStorage() {
	if cfg.StorageDriver == DriverMongo || cfg.LockBackend == DriverMongo {
		cfg.SetMongo()
	}
	if cfg.StorageDriver == DriverPostgres || cfg.LockBackend == DriverPostgres {
		cfg.SetPostgres()
	}
	if cfg.LockBackend == DriverRedis {
		cfg.SetRedis()
	}
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageDriver {
	case DriverMongo, DriverPostgres:
	default:
		errors = append(errors, fmt.Sprintf("StorageDriver must be one of [mongo, postgres], got: %s", cfg.StorageDriver))
	}

	switch cfg.LockBackend {
	case DriverMongo, DriverPostgres, DriverRedis:
	default:
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [mongo, postgres, redis], got: %s", cfg.LockBackend))
	}

	if cfg.usesMongo() {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	}

	if cfg.usesPostgres() {
		if !regexp.MustCompile(`^postgres(ql)?://`).MatchString(cfg.PostgresDSN) {
			errors = append(errors, fmt.Sprintf("PostgresDSN must start with 'postgres://' or 'postgresql://', got: %s", redactURI(cfg.PostgresDSN)))
		}
		if cfg.PostgresMaxOpenConns <= 0 {
			errors = append(errors, fmt.Sprintf("PostgresMaxOpenConns must be positive, got: %d", cfg.PostgresMaxOpenConns))
		}
		if cfg.PostgresMaxIdleConns < 0 || cfg.PostgresMaxIdleConns > cfg.PostgresMaxOpenConns {
			errors = append(errors, fmt.Sprintf("PostgresMaxIdleConns must be between 0 and PostgresMaxOpenConns (%d), got: %d", cfg.PostgresMaxOpenConns, cfg.PostgresMaxIdleConns))
		}
	}

	if cfg.LockBackend == DriverRedis && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty when LockBackend is redis")
	}

	if cfg.LockTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("LockTimeout must be positive, got: %s", cfg.LockTimeout))
	}
	if cfg.LockTTL <= cfg.LockTimeout {
		errors = append(errors, fmt.Sprintf("LockTTL (%s) must be greater than LockTimeout (%s)", cfg.LockTTL, cfg.LockTimeout))
	}

	if cfg.KafkaTopic == "" {
		errors = append(errors, "KafkaTopic cannot be empty")
	}
	if cfg.Kafka != nil {
		if err := cfg.Kafka.Validate(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(cfg.JWTSecret) < 16 {
		errors = append(errors, "JWTSecret must be set and at least 16 characters long")
	}

	if !regexp.MustCompile(`^https?://`).MatchString(cfg.RoomsServiceURL) {
		errors = append(errors, fmt.Sprintf("RoomsServiceURL must start with 'http://' or 'https://', got: %s", cfg.RoomsServiceURL))
	}
	if cfg.SearchConcurrency <= 0 {
		errors = append(errors, fmt.Sprintf("SearchConcurrency must be positive, got: %d", cfg.SearchConcurrency))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) usesMongo() bool {
	return cfg.StorageDriver == DriverMongo || cfg.LockBackend == DriverMongo
}

func (cfg *Config) usesPostgres() bool {
	return cfg.StorageDriver == DriverPostgres || cfg.LockBackend == DriverPostgres
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_driver", cfg.StorageDriver,
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"postgres_dsn", redactURI(cfg.PostgresDSN),
		"postgres_max_open_conns", cfg.PostgresMaxOpenConns,
		"tracing_enabled", cfg.TracingEnabled,
		"lock_backend", cfg.LockBackend,
		"lock_timeout", cfg.LockTimeout,
		"lock_ttl", cfg.LockTTL,
		"redis_addr", cfg.RedisAddr,
		"kafka_enabled", cfg.Kafka != nil,
		"kafka_topic", cfg.KafkaTopic,
		"jwt_secret_set", cfg.JWTSecret != "",
		"rooms_service_url", cfg.RoomsServiceURL,
		"search_concurrency", cfg.SearchConcurrency,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
	if cfg.Kafka != nil {
		cfg.Kafka.LogConfiguration(cfg.Log.Info)
	}
}

var credentialRegex = regexp.MustCompile(`^([a-z+]+://)[^:/@]+:[^@]+@`)

func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
