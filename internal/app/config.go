package app

import (
	"os"
	"strconv"
	"time"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес REST API.
	HTTPAddr string
	// MetricsAddr — адрес /metrics и health-проб.
	MetricsAddr string
	// PostgresDSN включает постоянное хранилище; пустое значение — in-memory.
	PostgresDSN string
	// RedisAddr включает хранение корзины в Redis; пустое значение — in-memory.
	RedisAddr string
	// KafkaBrokers — список брокеров через запятую; пустое значение
	// включает in-process обработку событий оплаты.
	KafkaBrokers string
	// KafkaGroupID — consumer group обработчика fulfillment-событий.
	KafkaGroupID string
	// Currency — валюта заказов при checkout.
	Currency string
	// PaymentSuccessRate — вероятность успеха симулируемого settlement [0, 1].
	PaymentSuccessRate float64
	// OutboxPollInterval — период опроса transactional outbox.
	OutboxPollInterval time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:           ":8080",
		MetricsAddr:        ":9090",
		KafkaGroupID:       "shop-fulfillment",
		Currency:           "RUB",
		PaymentSuccessRate: 0.9,
		OutboxPollInterval: time.Second,
	}
}

// ConfigFromEnv читает конфигурацию из окружения поверх значений по умолчанию.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = getenv("SHOP_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = getenv("SHOP_METRICS_ADDR", cfg.MetricsAddr)
	cfg.PostgresDSN = getenv("SHOP_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = getenv("SHOP_REDIS_ADDR", cfg.RedisAddr)
	cfg.KafkaBrokers = getenv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaGroupID = getenv("SHOP_KAFKA_GROUP_ID", cfg.KafkaGroupID)
	cfg.Currency = getenv("SHOP_CURRENCY", cfg.Currency)

	if raw := os.Getenv("SHOP_PAYMENT_SUCCESS_RATE"); raw != "" {
		if rate, err := strconv.ParseFloat(raw, 64); err == nil && rate >= 0 && rate <= 1 {
			cfg.PaymentSuccessRate = rate
		}
	}
	if raw := os.Getenv("SHOP_OUTBOX_POLL_INTERVAL"); raw != "" {
		if interval, err := time.ParseDuration(raw); err == nil && interval > 0 {
			cfg.OutboxPollInterval = interval
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
