package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	Logger LoggerConfig
	Lock   LockConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBSQLitePath      string

	// AllocationConfigPath overrides the directory searched for allocation.yml.
	AllocationConfigPath string
}

type LoggerConfig struct {
	Level  string
	Format string
}

// LockConfig configures the redis lock used to serialize line item cost
// allocation across processes. Disabled when RedisAddr is empty.
type LockConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

func (c LockConfig) Enabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewAllocationConfigHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "customsledger"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Logger: LoggerConfig{
			Level:  strings.ToLower(getenv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getenv("LOG_FORMAT", "json")),
		},
		Lock: LockConfig{
			RedisAddr:     strings.TrimSpace(getenv("LOCK_REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("LOCK_REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("LOCK_REDIS_DB", 0),
			TTLSeconds:    getenvInt("LOCK_TTL_SECONDS", 30),
		},
		DBType:               getenv("DATABASE_TYPE", "postgres"),
		DBHost:               getenv("DATABASE_HOST", "localhost"),
		DBPort:               getenv("DATABASE_PORT", "5432"),
		DBName:               getenv("DATABASE_NAME", "customsledger"),
		DBUser:               getenv("DATABASE_USER", "postgres"),
		DBPassword:           getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:            getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:        getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:        getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime:    getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime:    getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBSQLitePath:         getenv("DATABASE_SQLITE_PATH", "customsledger.db"),
		AllocationConfigPath: strings.TrimSpace(getenv("ALLOCATION_CONFIG_PATH", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
