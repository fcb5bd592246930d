package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvStorageDriver = "STORAGE_DRIVER"

	EnvPostgresDSN             = "POSTGRES_DSN"
	EnvPostgresMaxOpenConns    = "POSTGRES_MAX_OPEN_CONNS"
	EnvPostgresMaxIdleConns    = "POSTGRES_MAX_IDLE_CONNS"
	EnvPostgresConnMaxLifetime = "POSTGRES_CONN_MAX_LIFETIME"
	EnvTracingEnabled          = "TRACING_ENABLED"

	EnvLockBackend = "LOCK_BACKEND"
	EnvLockTimeout = "LOCK_TIMEOUT"
	EnvLockTTL     = "LOCK_TTL"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvKafkaTopic = "KAFKA_TOPIC"

	EnvJWTSecret = "JWT_SECRET"

	EnvRoomsServiceURL   = "ROOMS_SERVICE_URL"
	EnvSearchConcurrency = "SEARCH_CONCURRENCY"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
