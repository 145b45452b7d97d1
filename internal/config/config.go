package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    Server
	Database  Database
	Auth      Auth
	Logger    Logger
	Redis     Redis
	Kafka     Kafka
	Sweeper   Sweeper
	RateLimit RateLimit
}

type Server struct {
	Port           string
	GinMode        string
	AllowedOrigins []string
}

type Database struct {
	Driver          string // postgres or sqlite
	DSN             string // used as-is when set
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Auth struct {
	JWTSecret string
}

type Logger struct {
	Level       string
	Encoding    string
	Development bool
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Kafka struct {
	Brokers []string
	Topic   string
}

type Sweeper struct {
	Enabled  bool
	Interval time.Duration
	LockTTL  time.Duration
}

type RateLimit struct {
	Verify string
}

const devJWTSecret = "default_super_secret_key"

// Load reads configs/.env when present and then the process environment.
func Load() Config {
	_ = godotenv.Load("configs/.env")

	ginMode := getEnv("GIN_MODE", "debug")
	development := ginMode != "release"

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" && development {
		secret = devJWTSecret // development fallback only
	}

	encoding := "json"
	level := "info"
	if development {
		encoding = "console"
		level = "debug"
	}

	return Config{
		Server: Server{
			Port:           getEnv("PORT", "8080"),
			GinMode:        ginMode,
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		},
		Database: Database{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			DSN:             os.Getenv("DB_DSN"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "postgres"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Auth: Auth{JWTSecret: secret},
		Logger: Logger{
			Level:       getEnv("LOG_LEVEL", level),
			Encoding:    getEnv("LOG_ENCODING", encoding),
			Development: development,
		},
		Redis: Redis{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Kafka: Kafka{
			Brokers: getList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "reservation-events"),
		},
		Sweeper: Sweeper{
			Enabled:  getBool("SWEEPER_ENABLED", true),
			Interval: getDuration("SWEEP_INTERVAL", 5*time.Minute),
			LockTTL:  getDuration("SWEEP_LOCK_TTL", 2*time.Minute),
		},
		RateLimit: RateLimit{
			Verify: getEnv("RATE_LIMIT_VERIFY", "30-M"),
		},
	}
}

func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in release mode")
	}
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.Sweeper.Interval)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Server.Port)
}

// PostgresDSN builds the connection string unless DB_DSN overrides it.
func (d Database) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
