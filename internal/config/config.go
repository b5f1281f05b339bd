package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	AppName string
	Env     string
	Host    string
	Port    int

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	PostgresURL   string
	SQLitePath    string

	JWTSecret         string
	TokenTTLMinutes   int
	WSRequireToken    bool
	RelayAllowUnbound bool

	EncryptKey        string
	EncryptLegacyKeys []string

	CORSOrigins       []string
	RateLimitRPM      int
	RateLimitBurst    int
	WSEventsPerMinute int
	WSMaxMessageBytes int64

	UploadDir      string
	MaxUploadBytes int64
	MaxHistory     int

	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

func Load() (*Config, error) {
	dbHost := getEnv("POSTGRES_HOST", "localhost")
	dbPort := getEnv("POSTGRES_PORT", "5432")
	dbUser := getEnv("POSTGRES_USER", "postgres")
	dbPass := getEnv("POSTGRES_PASSWORD", "postgres")
	dbName := getEnv("POSTGRES_DB", "hustlex")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(dbUser, dbPass),
		Host:     fmt.Sprintf("%s:%s", dbHost, dbPort),
		Path:     dbName,
		RawQuery: "sslmode=" + getEnv("POSTGRES_SSLMODE", "disable"),
	}

	cfg := &Config{
		AppName: getEnv("APP_NAME", "HustleX Messaging Relay"),
		Env:     getEnv("APP_ENV", "development"),
		Host:    getEnv("HTTP_HOST", "0.0.0.0"),
		Port:    getEnvAsInt("HTTP_PORT", 5000),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "hustlex"),
		PostgresURL:   u.String(),
		SQLitePath:    getEnv("SQLITE_PATH", "hustlex.db"),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		TokenTTLMinutes:   getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24*7),
		WSRequireToken:    getEnvAsBool("WS_REQUIRE_TOKEN", false),
		RelayAllowUnbound: getEnvAsBool("RELAY_ALLOW_UNBOUND", false),

		EncryptKey:        os.Getenv("ENCRYPTION_KEY"),
		EncryptLegacyKeys: getEnvAsList("ENCRYPTION_LEGACY_KEYS", nil),

		CORSOrigins:       getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		RateLimitRPM:      getEnvAsInt("RATE_LIMIT_RPM", 100),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 20),
		WSEventsPerMinute: getEnvAsInt("WS_EVENTS_PER_MINUTE", 120),
		WSMaxMessageBytes: int64(getEnvAsInt("WS_MAX_MESSAGE_BYTES", 10<<20)),

		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 50<<20)),
		MaxHistory:     getEnvAsInt("MAX_MESSAGES_PER_CONVERSATION", 1000),

		ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.PostgresURL = v
	}

	switch cfg.StoreDriver {
	case DriverMongo, DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}

	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
