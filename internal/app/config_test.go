package app

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q, want :9090", cfg.MetricsAddr)
	}
	if cfg.PostgresDSN != "" || cfg.RedisAddr != "" || cfg.KafkaBrokers != "" {
		t.Error("external dependencies must be disabled by default")
	}
	if cfg.Currency != "RUB" {
		t.Errorf("Currency = %q, want RUB", cfg.Currency)
	}
	if cfg.PaymentSuccessRate != 0.9 {
		t.Errorf("PaymentSuccessRate = %v, want 0.9", cfg.PaymentSuccessRate)
	}
	if cfg.OutboxPollInterval != time.Second {
		t.Errorf("OutboxPollInterval = %v, want 1s", cfg.OutboxPollInterval)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SHOP_HTTP_ADDR", ":18080")
	t.Setenv("SHOP_POSTGRES_DSN", "postgres://localhost:5432/shop")
	t.Setenv("SHOP_REDIS_ADDR", "localhost:6379")
	t.Setenv("KAFKA_BROKERS", "localhost:9092,localhost:9093")
	t.Setenv("SHOP_CURRENCY", "USD")
	t.Setenv("SHOP_PAYMENT_SUCCESS_RATE", "0.5")
	t.Setenv("SHOP_OUTBOX_POLL_INTERVAL", "250ms")

	cfg := ConfigFromEnv()

	if cfg.HTTPAddr != ":18080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.PostgresDSN != "postgres://localhost:5432/shop" {
		t.Errorf("PostgresDSN = %q", cfg.PostgresDSN)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.KafkaBrokers != "localhost:9092,localhost:9093" {
		t.Errorf("KafkaBrokers = %q", cfg.KafkaBrokers)
	}
	if cfg.Currency != "USD" {
		t.Errorf("Currency = %q", cfg.Currency)
	}
	if cfg.PaymentSuccessRate != 0.5 {
		t.Errorf("PaymentSuccessRate = %v", cfg.PaymentSuccessRate)
	}
	if cfg.OutboxPollInterval != 250*time.Millisecond {
		t.Errorf("OutboxPollInterval = %v", cfg.OutboxPollInterval)
	}
	// MetricsAddr не задан, остаётся значение по умолчанию.
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q, want default :9090", cfg.MetricsAddr)
	}
}

func TestConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("SHOP_PAYMENT_SUCCESS_RATE", "1.5")
	t.Setenv("SHOP_OUTBOX_POLL_INTERVAL", "not-a-duration")

	cfg := ConfigFromEnv()

	if cfg.PaymentSuccessRate != 0.9 {
		t.Errorf("PaymentSuccessRate = %v, want default 0.9", cfg.PaymentSuccessRate)
	}
	if cfg.OutboxPollInterval != time.Second {
		t.Errorf("OutboxPollInterval = %v, want default 1s", cfg.OutboxPollInterval)
	}
}
