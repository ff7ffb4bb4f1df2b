package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Env        string
	ServerPort string

	// browser origins allowed to drive the local surface
	AllowedOrigins []string

	APIBaseURL  string
	HTTPTimeout time.Duration

	SessionDBPath string

	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PollInterval     time.Duration // dashboards and management screens
	FastPollInterval time.Duration // availability listing
	PaymentSettle    time.Duration // simulated gateway round trip
}

// Development reports whether logs should be human readable.
func (c *Config) Development() bool {
	return c.Env != "production"
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		zap.L().Warn("could not load .env file", zap.Error(err))
	}

	return &Config{
		Env:        getEnv("APP_ENV", "development"),
		ServerPort: getEnv("SERVER_PORT", "8081"),

		AllowedOrigins: list(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),

		APIBaseURL:  strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8090/api"), "/"),
		HTTPTimeout: seconds("HTTP_TIMEOUT_SECONDS", 15),

		SessionDBPath: getEnv("SESSION_DB_PATH", "vpms_session.db"),

		CacheTTL:      seconds("CACHE_TTL_SECONDS", 5),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       atoi(getEnv("REDIS_DB", "0"), 0),

		PollInterval:     seconds("POLL_INTERVAL_SECONDS", 30),
		FastPollInterval: seconds("FAST_POLL_INTERVAL_SECONDS", 15),
		PaymentSettle:    seconds("PAYMENT_SETTLE_SECONDS", 3),
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func list(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimRight(strings.TrimSpace(item), "/"); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func seconds(key string, fallback int) time.Duration {
	return time.Duration(atoi(getEnv(key, strconv.Itoa(fallback)), fallback)) * time.Second
}

func atoi(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		zap.L().Warn("invalid integer setting, using default", zap.String("value", value), zap.Int("default", fallback))
		return fallback
	}
	return n
}
