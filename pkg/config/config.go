package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string

	ServerPort int

	DatabaseURL string
	AutoMigrate bool

	JWTAccessSecret []byte

	AuthHTTPURL string

	KafkaBrokers     []string
	OrderEventsTopic string
	UserEventsTopic  string

	RedisAddr    string
	MenuCacheTTL time.Duration

	ESURL      string
	ESUser     string
	ESPassword string

	SecureCookies bool

	LogLevel string
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "cravings"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		AutoMigrate: EnvBoolDefault("AUTO_MIGRATE", true),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),

		AuthHTTPURL: os.Getenv("AUTH_URL"),

		KafkaBrokers:     CSV(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic: EnvDefault("ORDER_EVENTS_TOPIC", "order_events"),
		UserEventsTopic:  EnvDefault("USER_EVENTS_TOPIC", "user_events"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		MenuCacheTTL: EnvDurationDefault("MENU_CACHE_TTL", 5*time.Minute),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),

		SecureCookies: EnvBoolDefault("SECURE_COOKIES", false),

		LogLevel: EnvDefault("LOG_LEVEL", "info"),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
