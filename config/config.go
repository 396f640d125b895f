package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreJSONFile = "jsonfile"
	StorePostgres = "postgres"
)

type Config struct {
	ServerPort    int    `env:"SERVER_PORT" env-default:"8080"`
	AdminPort     int    `env:"ADMIN_PORT" env-default:"9090"`
	StoreDriver   string `env:"STORE_DRIVER" env-default:"jsonfile"`
	DataDir       string `env:"DATA_DIR" env-default:"data"`
	Database      DatabaseConfig
	Session       SessionConfig
	Redis         RedisConfig
	MQ            MQConfig
	ObjectStorage ObjectStorageConfig
	History       HistoryConfig
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     int    `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"lumen"`
	Password string `env:"DB_PASSWORD" env-default:"password"`
	DBName   string `env:"DB_NAME" env-default:"lumen_db"`
	UseSSL   bool   `env:"DB_SSL" env-default:"false"`
}

type SessionConfig struct {
	JWTSecret    string        `env:"JWT_SECRET"`
	TTL          time.Duration `env:"SESSION_TTL" env-default:"168h"`
	Store        string        `env:"SESSION_STORE" env-default:"buntdb"`
	BuntPath     string        `env:"SESSION_DB_PATH" env-default:"data/sessions.db"`
	CookieSecure bool          `env:"COOKIE_SECURE" env-default:"false"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:""`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type HistoryConfig struct {
	// CacheTTL of zero disables the Redis history cache.
	CacheTTL time.Duration `env:"HISTORY_CACHE_TTL" env-default:"0s"`
}

type MQConfig struct {
	Driver        string `env:"MQ_DRIVER" env-default:"none"`
	LedgerChannel string `env:"LEDGER_EVENTS_CHANNEL" env-default:"ledger.transactions"`
	RabbitMQ      RabbitMQConfig
	PubSub        PubSubConfig
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" env-default:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" env-default:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH" env-default:"10"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" env-default:"-sub"`
}

type ObjectStorageConfig struct {
	Driver string `env:"OBJECT_STORAGE" env-default:"none"`
	Minio  MinioConfig
	GCS    GCSConfig
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" env-default:"statements"`
	UseSSL    bool   `env:"MINIO_SSL" env-default:"false"`
}

type GCSConfig struct {
	ProjectID       string `env:"GCS_PROJECT_ID"`
	Bucket          string `env:"GCS_BUCKET"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

// LoadConfig reads configuration from the environment. In the dev
// environment a local .env file is loaded first.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.StoreDriver != StoreJSONFile && cfg.StoreDriver != StorePostgres {
		return Config{}, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}

// Validate checks settings required to serve HTTP traffic.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Session.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	switch c.Session.Store {
	case "buntdb", "redis":
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.Session.Store)
	}
	if (c.Session.Store == "redis" || c.History.CacheTTL > 0) && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("REDIS_ADDR is required for the redis session store and history cache")
	}
	return nil
}
