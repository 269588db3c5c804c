package config

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port" env:"PORT" validate:"gt=0"`
	// BaseURL is the externally reachable address producers post data to.
	BaseURL             string `yaml:"baseURL" env:"BASE_URL" validate:"required,url"`
	ReadTimeoutSeconds  int    `yaml:"readTimeoutSeconds" env:"READ_TIMEOUT_SECONDS" validate:"gte=0"`
	WriteTimeoutSeconds int    `yaml:"writeTimeoutSeconds" env:"WRITE_TIMEOUT_SECONDS" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
}

// PostgresConfig contains the record store connection. Empty DSN selects the memory store.
type PostgresConfig struct {
	DSN      string `yaml:"dsn" env:"DSN"`
	MaxConns int32  `yaml:"maxConns" env:"MAX_CONNS" validate:"gte=0"`
}

// RedisConfig contains the delay queue and validation error store connection.
type RedisConfig struct {
	URL                     string `yaml:"url" env:"URL" validate:"omitempty,url"`
	ValidationErrorTTLHours int    `yaml:"validationErrorTTLHours" env:"VALIDATION_ERROR_TTL_HOURS" validate:"gte=0"`
}

// ObjectStoreConfig contains the S3-compatible bucket used for archives and snapshots.
type ObjectStoreConfig struct {
	Endpoint       string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey      string `yaml:"accessKey" env:"ACCESS_KEY"`
	SecretKey      string `yaml:"secretKey" env:"SECRET_KEY"`
	Bucket         string `yaml:"bucket" env:"BUCKET" validate:"required"`
	Region         string `yaml:"region" env:"REGION"`
	UseSSL         bool   `yaml:"useSSL" env:"USE_SSL"`
	ArchivePrefix  string `yaml:"archivePrefix" env:"ARCHIVE_PREFIX"`
	PresignSeconds int    `yaml:"presignSeconds" env:"PRESIGN_SECONDS" validate:"gte=0"`
}

// SecretsConfig selects where producer credentials are stored. Backend
// "auto" uses the system keyring when it answers and memory otherwise.
type SecretsConfig struct {
	Backend string `yaml:"backend" env:"BACKEND" validate:"oneof=auto keyring memory"`
	Service string `yaml:"service" env:"SERVICE" validate:"required"`
}

// ProducerConfig contains upstream producer subscription settings
type ProducerConfig struct {
	RequestorRef            string `yaml:"requestorRef" env:"REQUESTOR_REF" validate:"required"`
	TimeoutSeconds          int    `yaml:"timeoutSeconds" env:"TIMEOUT_SECONDS" validate:"gte=0"`
	HeartbeatIntervalSecs   int    `yaml:"heartbeatIntervalSeconds" env:"HEARTBEAT_INTERVAL_SECONDS" validate:"gte=0"`
	HeartbeatTimeoutSeconds int    `yaml:"heartbeatTimeoutSeconds" env:"HEARTBEAT_TIMEOUT_SECONDS" validate:"gte=0"`
	MaxHeartbeatAttempts    int    `yaml:"maxHeartbeatAttempts" env:"MAX_HEARTBEAT_ATTEMPTS" validate:"gte=0"`
}

// IngestConfig contains inbound data gateway settings
type IngestConfig struct {
	MaxBodyBytes int64 `yaml:"maxBodyBytes" env:"MAX_BODY_BYTES" validate:"gte=0"`
}

// GTFSConfig contains the scheduled-service reference data source
type GTFSConfig struct {
	StaticURL string `yaml:"staticURL" env:"STATIC_URL" validate:"omitempty,url"`
	LocalPath string `yaml:"localPath" env:"LOCAL_PATH"`
	// CachePath, when set, stores the parsed index so restarts skip the zip.
	CachePath string `yaml:"cachePath" env:"CACHE_PATH"`
}

// FeedConfig contains aggregated feed and snapshot settings
type FeedConfig struct {
	ProducerRef             string `yaml:"producerRef" env:"PRODUCER_REF" validate:"required"`
	SiriVMKey               string `yaml:"sirivmKey" env:"SIRIVM_KEY" validate:"required"`
	GTFSRTKey               string `yaml:"gtfsrtKey" env:"GTFSRT_KEY" validate:"required"`
	SnapshotIntervalSeconds int    `yaml:"snapshotIntervalSeconds" env:"SNAPSHOT_INTERVAL_SECONDS" validate:"gte=0"`
	ValidUntilSeconds       int    `yaml:"validUntilSeconds" env:"VALID_UNTIL_SECONDS" validate:"gte=0"`
}

// FanoutConfig contains consumer delivery settings
type FanoutConfig struct {
	QueueName              string `yaml:"queueName" env:"QUEUE_NAME" validate:"required"`
	Concurrency            int    `yaml:"concurrency" env:"CONCURRENCY" validate:"gt=0"`
	MaxBatch               int    `yaml:"maxBatch" env:"MAX_BATCH" validate:"gt=0"`
	DeliveryTimeoutSeconds int    `yaml:"deliveryTimeoutSeconds" env:"DELIVERY_TIMEOUT_SECONDS" validate:"gt=0"`
	MaxFailedAttempts      int    `yaml:"maxFailedAttempts" env:"MAX_FAILED_ATTEMPTS" validate:"gt=0"`
	PollIntervalMS         int    `yaml:"pollIntervalMS" env:"POLL_INTERVAL_MS" validate:"gt=0"`
	RearmIntervalSeconds   int    `yaml:"rearmIntervalSeconds" env:"REARM_INTERVAL_SECONDS" validate:"gte=0"`
}

// QueueConfig contains delay queue redelivery settings
type QueueConfig struct {
	MaxAttempts       int `yaml:"maxAttempts" env:"MAX_ATTEMPTS" validate:"gt=0"`
	RetryDelaySeconds int `yaml:"retryDelaySeconds" env:"RETRY_DELAY_SECONDS" validate:"gte=0"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server      ServerConfig      `yaml:"server" envPrefix:"SERVER_" validate:"required"`
	Logging     LoggingConfig     `yaml:"logging" envPrefix:"LOG_"`
	Postgres    PostgresConfig    `yaml:"postgres" envPrefix:"POSTGRES_"`
	Redis       RedisConfig       `yaml:"redis" envPrefix:"REDIS_"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore" envPrefix:"OBJECT_STORE_"`
	Secrets     SecretsConfig     `yaml:"secrets" envPrefix:"SECRETS_"`
	Producer    ProducerConfig    `yaml:"producer" envPrefix:"PRODUCER_"`
	Ingest      IngestConfig      `yaml:"ingest" envPrefix:"INGEST_"`
	GTFS        GTFSConfig        `yaml:"gtfs" envPrefix:"GTFS_"`
	Feed        FeedConfig        `yaml:"feed" envPrefix:"FEED_"`
	Fanout      FanoutConfig      `yaml:"fanout" envPrefix:"FANOUT_"`
	Queue       QueueConfig       `yaml:"queue" envPrefix:"QUEUE_"`
}
