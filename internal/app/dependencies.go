package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/shop/internal/storage/redis"
)

// Dependencies содержит репозитории и внешние клиенты приложения.
type Dependencies struct {
	Carts       domain.CartRepository
	Orders      domain.OrderRepository
	Payments    domain.PaymentRepository
	Stocks      domain.StockRepository
	Outbox      domain.OutboxRepository
	Timeline    domain.TimelineRepository
	Idempotency domain.IdempotencyRepository
	Catalog     domain.Catalog

	// Store и Redis равны nil при in-memory конфигурации.
	Store  *postgres.Store
	Redis  *goredis.Client
	Logger *log.Entry
}

// NewDependencies собирает хранилища по конфигурации: postgres при заданном DSN,
// redis-корзина при заданном адресе, иначе in-memory. Каталог всегда mock:
// интеграция с реальным каталогом вне зоны ответственности сервиса.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Catalog: catalog.DefaultCatalog(),
		Logger:  logger,
	}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}

		deps.Store = store
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Payments = postgres.NewPaymentRepository(store)
		deps.Stocks = postgres.NewStockRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		deps.Idempotency = postgres.NewIdempotencyRepository(store)
		logger.Info("postgres storage initialized")
	} else {
		outboxRepo := memory.NewOutboxRepository()
		deps.Orders = memory.NewOrderRepository()
		deps.Payments = memory.NewPaymentRepository(outboxRepo)
		deps.Stocks = memory.NewStockRepository()
		deps.Outbox = outboxRepo
		deps.Timeline = memory.NewTimelineRepository()
		deps.Idempotency = memory.NewIdempotencyRepository()
		logger.Info("in-memory storage initialized")
	}

	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			deps.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.Redis = client
		deps.Carts = redisstore.NewCartRepository(client)
		logger.WithField("addr", cfg.RedisAddr).Info("redis cart storage initialized")
	} else {
		deps.Carts = memory.NewCartRepository()
	}

	return deps, nil
}

// Close освобождает внешние соединения.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
