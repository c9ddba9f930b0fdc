// Package config loads application configuration from environment variables.
// A .env file in the working directory is read first when present; values
// already set in the process environment win.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Storage drivers accepted in STORAGE_DRIVER.
const (
	DriverMySQL = "mysql"
	DriverMongo = "mongo"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; grouped settings live in their own structs.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	StorageDriver  string // "mysql" or "mongo"
	DB             DBConfig
	Mongo          MongoConfig
	MigrateOnStart bool   // apply embedded MySQL migrations at boot
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	RabbitURL      string // AMQP URL; empty disables booking events
	ConsumerOn     bool   // run the booking event consumer in-process
	BookingLogPath string // file the consumer appends events to
	CompletionCron string // schedule of the booking completion sweep
	Log            LogConfig
	RateLimit      RateLimitConfig
	Cache          CacheConfig
	Redis          RedisConfig
}

// DBConfig holds the MySQL connection and pool settings.
type DBConfig struct {
	User string
	Pass string
	Host string
	Port string
	Name string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the go-sql-driver/mysql data source name.  parseTime maps
// DATE/DATETIME to time.Time and loc=UTC keeps times consistent.
// clientFoundRows makes UPDATE report matched rather than changed rows.
func (c DBConfig) DSN() string {
	auth := c.User
	if c.Pass != "" {
		auth = fmt.Sprintf("%s:%s", c.User, c.Pass)
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, c.Host, c.Port, c.Name)
}

// MongoConfig holds the MongoDB connection settings.
type MongoConfig struct {
	URI      string
	Database string
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string // panic..trace
	Format string // "text" or "json"
}

// Load reads configuration values from the environment and returns a
// Config.  Required variables are enforced by must() and missing values
// terminate the process.
func Load() Config {
	_ = godotenv.Load()

	c := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           must("APP_PORT"),
		StorageDriver:  envStr("STORAGE_DRIVER", DriverMySQL),
		MigrateOnStart: envBool("DB_MIGRATE", true),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		RabbitURL:      os.Getenv("RABBITMQ_URL"),
		ConsumerOn:     envBool("BOOKING_CONSUMER_ENABLED", false),
		BookingLogPath: envStr("BOOKING_LOG_PATH", "logs/booking.log"),
		CompletionCron: envStr("COMPLETION_CRON", "@every 15m"),
		Log: LogConfig{
			Level:  envStr("LOG_LEVEL", "info"),
			Format: envStr("LOG_FORMAT", "text"),
		},
		RateLimit: LoadRateLimitConfig(),
		Cache:     LoadCacheConfig(),
		Redis:     LoadRedisConfig(),
	}

	switch c.StorageDriver {
	case DriverMySQL:
		c.DB = DBConfig{
			User: must("DB_USER"),
			Pass: os.Getenv("DB_PASS"), // empty allowed
			Host: must("DB_HOST"),
			Port: envStr("DB_PORT", "3306"),
			Name: must("DB_NAME"),

			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		}
		if c.DB.MaxIdleConns > c.DB.MaxOpenConns && c.DB.MaxOpenConns > 0 {
			c.DB.MaxIdleConns = c.DB.MaxOpenConns
		}
	case DriverMongo:
		c.Mongo = MongoConfig{
			URI:      must("MONGO_URI"),
			Database: envStr("MONGO_DB", "lang_test_booking"),
		}
	default:
		log.Fatalf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	return c
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
