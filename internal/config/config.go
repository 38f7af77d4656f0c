package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Pass     PassConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	RoutePrefix    string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type DatabaseConfig struct {
	Driver         string
	PostgresDSN    string
	MySQLDSN       string
	SQLiteDSN      string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	ConnectRetries int
	AutoMigrate    bool
}

type RedisConfig struct {
	Enabled bool
	Addr    string
	LockTTL time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	GroupID string
	Topics  TopicConfig
}

type TopicConfig struct {
	EventCreated          string
	RegistrationCreated   string
	RegistrationCancelled string
}

// All returns every topic the service produces to.
func (t TopicConfig) All() []string {
	return []string{t.EventCreated, t.RegistrationCreated, t.RegistrationCancelled}
}

type PassConfig struct {
	SecretKey string
}

type LogConfig struct {
	Dir   string
	Level string
}

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", ":8085"),
			RoutePrefix:    getEnv("ROUTE_PREFIX", "/api/v1/event"),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			PostgresDSN:    getEnv("POSTGRES_DSN", ""),
			MySQLDSN:       getEnv("MYSQL_DSN", ""),
			SQLiteDSN:      getEnv("SQLITE_DSN", "file:events.db?cache=shared"),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:    time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
			AutoMigrate:    getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled: getEnvBool("REDIS_ENABLED", true),
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			LockTTL: time.Duration(getEnvInt("REGISTRATION_LOCK_TTL_SECONDS", 10)) * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID: getEnv("KAFKA_GROUP_ID", "event-service-audit"),
			Topics: TopicConfig{
				EventCreated:          getEnv("KAFKA_TOPIC_EVENT_CREATED", "events.event.created"),
				RegistrationCreated:   getEnv("KAFKA_TOPIC_REGISTRATION_CREATED", "events.registration.created"),
				RegistrationCancelled: getEnv("KAFKA_TOPIC_REGISTRATION_CANCELLED", "events.registration.cancelled"),
			},
		},
		Pass: PassConfig{
			SecretKey: getEnv("PASS_SECRET_KEY", "change-me"),
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", "logs"),
			Level: strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
