package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	LockWaitTimeout time.Duration

	RateLimitPerMinute     int
	RateLimitBurst         int
	ShopRateLimitPerMinute int
	ShopRateLimitBurst     int

	NotifyWebhookURL string
	NotifyTimeout    time.Duration

	OTLPEndpoint string
	ServiceName  string
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		serviceName = "fila-queue"
	}

	return Config{
		Port:                   port,
		DatabaseURL:            os.Getenv("DB_DSN"),
		LockWaitTimeout:        readDurationMillis("LOCK_WAIT_TIMEOUT_MS", 2000),
		RateLimitPerMinute:     readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:         readInt("RATE_LIMIT_BURST", 30),
		ShopRateLimitPerMinute: readInt("SHOP_RATE_LIMIT_PER_MIN", 600),
		ShopRateLimitBurst:     readInt("SHOP_RATE_LIMIT_BURST", 120),
		NotifyWebhookURL:       os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyTimeout:          readDurationSeconds("NOTIFY_TIMEOUT_SECONDS", 10),
		OTLPEndpoint:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:            serviceName,
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readDurationMillis(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Millisecond
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
