// Package app — composition root: сборка зависимостей и запуск сервиса.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/cart"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
	"github.com/vladislavdragonenkov/shop/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/shop/internal/service/idempotency"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
	"github.com/vladislavdragonenkov/shop/internal/service/payment"
	"github.com/vladislavdragonenkov/shop/internal/service/stock"
	transport "github.com/vladislavdragonenkov/shop/internal/transport/http"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

// Run собирает и запускает сервис, блокируясь до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	pipelineMetrics := metrics.NewPipelineMetrics()

	cartSvc := cart.NewService(deps.Carts, deps.Catalog, logger.WithField("layer", "cart"))
	orderSvc := order.NewService(deps.Orders, deps.Outbox, deps.Timeline, pipelineMetrics, logger.WithField("layer", "order"))
	paymentSvc := payment.NewService(
		deps.Payments,
		deps.Orders,
		logger.WithField("layer", "payment"),
		payment.WithSuccessRate(cfg.PaymentSuccessRate),
		payment.WithMetrics(pipelineMetrics),
	)
	stockSvc := stock.NewService(deps.Stocks, logger.WithField("layer", "stock"))
	checkoutSvc := checkout.NewService(
		cartSvc,
		stockSvc,
		orderSvc,
		paymentSvc,
		cartSvc,
		cfg.Currency,
		pipelineMetrics,
		logger.WithField("layer", "checkout"),
	)
	fulfillmentSvc := fulfillment.NewService(
		orderSvc,
		orderSvc,
		stockSvc,
		pipelineMetrics,
		logger.WithField("layer", "fulfillment"),
	)

	// Без брокеров события оплаты обрабатываются in-process. Если брокеры
	// заданы, но producer не собрался, запуск прерывается: молчаливый
	// даунгрейд в in-process режим скрывал бы отказ инфраструктуры.
	var kafkaProducer *kafka.Producer
	if cfg.KafkaBrokers != "" {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		kafkaProducer, err = kafka.NewProducer(brokers)
		if err != nil {
			return fmt.Errorf("create kafka producer for brokers %q: %w", cfg.KafkaBrokers, err)
		}
		logger.WithField("brokers", brokers).Info("kafka producer initialized")
	}
	defer closeKafka(kafkaProducer, logger)

	var publisher domain.OutboxPublisher
	var workerOpts []outbox.Option
	workerOpts = append(workerOpts,
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
	)

	var consumer *kafka.Consumer
	if kafkaProducer != nil {
		publisher = kafka.NewOutboxPublisher(kafkaProducer, "")
		workerOpts = append(workerOpts,
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)),
		)

		consumer, err = kafka.NewConsumer(
			strings.Split(cfg.KafkaBrokers, ","),
			cfg.KafkaGroupID,
			[]string{kafka.TopicFulfillmentEvents},
			func(_ context.Context, envelope kafka.Envelope) error {
				if envelope.EventType != domain.EventTypePaymentSucceeded {
					return nil
				}
				return fulfillmentSvc.HandleMessage(envelope.Payload)
			},
			kafka.WithDeadLetter(kafkaProducer),
			kafka.WithConsumerLogger(logger.WithField("component", "kafka-consumer")),
		)
		if err != nil {
			return err
		}
		if err := consumer.Start(ctx); err != nil {
			return err
		}
	} else {
		publisher = fulfillment.NewPublisher(fulfillmentSvc)
	}

	outboxWorker := outbox.NewWorker(deps.Outbox, publisher, workerOpts...)
	go outboxWorker.Run(ctx)

	cleanupWorker := idempotency.NewCleanupWorker(
		deps.Idempotency,
		idempotency.WithLogger(logger.WithField("layer", "idempotency")),
	)
	go cleanupWorker.Run(ctx)

	apiHandler := transport.NewHandler(
		cartSvc,
		checkoutSvc,
		orderSvc,
		paymentSvc,
		stockSvc,
		deps.Catalog,
		deps.Idempotency,
		logger.WithField("layer", "http"),
	)
	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: transport.NewRouter(apiHandler)}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, buildHealthHandler(deps))

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopConsumer(consumer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		stopConsumer(consumer, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func stopConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}

// buildHealthHandler собирает пробы по фактически включённым зависимостям
// и подключает бэклог outbox к отчёту healthz.
func buildHealthHandler(deps *Dependencies) *health.Handler {
	handler := health.New(version.String())

	if deps.Store != nil {
		handler.AddProbe("postgres", deps.Store.Ping)
	}
	if deps.Redis != nil {
		handler.AddProbe("redis", func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		})
	}
	if deps.Outbox != nil {
		handler.TrackOutbox(func() (health.Backlog, error) {
			stats, err := deps.Outbox.Stats()
			if err != nil {
				return health.Backlog{}, err
			}
			backlog := health.Backlog{Pending: stats.PendingCount}
			if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
				backlog.OldestAge = time.Since(stats.OldestPendingAt)
			}
			return backlog, nil
		})
	}

	return handler
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *health.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.Readiness)
	mux.HandleFunc("/livez", health.Liveness)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
