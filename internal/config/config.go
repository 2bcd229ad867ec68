package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Status store backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Auth modes.
const (
	AuthOIDC = "oidc"
	AuthHMAC = "hmac"
	AuthNone = "none"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Checkin  CheckinConfig
	Tickets  TicketConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	MigrationsDir string
	AutoMigrate   bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	PaymentSucceeded string
	CheckinEvents    string
}

type AuthConfig struct {
	Mode       string
	OIDCIssuer string
	HMACSecret string
}

// CheckinConfig selects and locates the check-in status store.
type CheckinConfig struct {
	StoreBackend   string
	StatusFile     string
	FallbackDir    string
	RedisKeyPrefix string
	SeedFile       string
}

type TicketConfig struct {
	Prefix      string
	QRSecret    string
	FontPath    string
	EventName   string
	EventVenue  string
	EventDates  string
	QRImageSize int
}

type LogConfig struct {
	Dir   string
	Level string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8084"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 5)) * time.Second,
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID: getEnv("KAFKA_GROUP_ID", "checkin-service"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				PaymentSucceeded: getEnv("KAFKA_TOPIC_PAYMENT_SUCCEEDED", "ticketly.payment.succeeded"),
				CheckinEvents:    getEnv("KAFKA_TOPIC_CHECKIN", "ticketly.checkin.toggled"),
			},
		},
		Auth: AuthConfig{
			Mode:       strings.ToLower(getEnv("AUTH_MODE", AuthOIDC)),
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
			HMACSecret: getEnv("AUTH_HMAC_SECRET", ""),
		},
		Checkin: CheckinConfig{
			StoreBackend:   strings.ToLower(getEnv("CHECKIN_STORE_BACKEND", BackendFile)),
			StatusFile:     getEnv("CHECKIN_STATUS_FILE", "./data/checkins.json"),
			FallbackDir:    getEnv("CHECKIN_FALLBACK_DIR", os.TempDir()),
			RedisKeyPrefix: getEnv("CHECKIN_REDIS_PREFIX", "checkin:status:"),
			SeedFile:       getEnv("CHECKIN_SEED_FILE", ""),
		},
		Tickets: TicketConfig{
			Prefix:      strings.ToUpper(getEnv("TICKET_PREFIX", "CONF")),
			QRSecret:    getEnv("QR_SECRET_KEY", ""),
			FontPath:    getEnv("TICKET_FONT_PATH", "./fonts/DejaVuSans.ttf"),
			EventName:   getEnv("EVENT_NAME", "Conference"),
			EventVenue:  getEnv("EVENT_VENUE", ""),
			EventDates:  getEnv("EVENT_DATES", ""),
			QRImageSize: getEnvInt("QR_IMAGE_SIZE", 256),
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", "logs"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Checkin.StoreBackend {
	case BackendFile:
		if c.Checkin.StatusFile == "" {
			return fmt.Errorf("CHECKIN_STATUS_FILE is required for the file backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown CHECKIN_STORE_BACKEND %q (want %q or %q)", c.Checkin.StoreBackend, BackendFile, BackendRedis)
	}

	switch c.Auth.Mode {
	case AuthOIDC:
		if c.Auth.OIDCIssuer == "" {
			return fmt.Errorf("OIDC_ISSUER is required when AUTH_MODE=oidc")
		}
	case AuthHMAC:
		if c.Auth.HMACSecret == "" {
			return fmt.Errorf("AUTH_HMAC_SECRET is required when AUTH_MODE=hmac")
		}
	case AuthNone:
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN not set")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	return nil
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
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
