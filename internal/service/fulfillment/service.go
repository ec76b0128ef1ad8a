// Package fulfillment обрабатывает события успешной оплаты: авторитетное
// списание остатков и перевод заказа в processing.
package fulfillment

import (
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// OrderQuery загружает заказ для обработки события.
type OrderQuery interface {
	Get(orderID string) (domain.Order, error)
}

// OrderTransitioner переводит заказ в следующий статус.
type OrderTransitioner interface {
	UpdateStatus(orderID string, to domain.OrderStatus, reason string) (domain.Order, error)
}

// StockReducer выполняет авторитетное списание с ключом идемпотентности.
type StockReducer interface {
	Reduce(productID string, qty int32, reason, refID string) (domain.Stock, error)
}

// Service — обработчик событий PaymentSucceeded.
type Service struct {
	orders     OrderQuery
	transition OrderTransitioner
	stocks     StockReducer
	logger     *log.Entry
	metrics    *metrics.PipelineMetrics
}

// NewService создаёт обработчик fulfillment.
func NewService(
	orders OrderQuery,
	transition OrderTransitioner,
	stocks StockReducer,
	pipelineMetrics *metrics.PipelineMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "fulfillment")
	}
	return &Service{
		orders:     orders,
		transition: transition,
		stocks:     stocks,
		logger:     logger,
		metrics:    pipelineMetrics,
	}
}

// HandlePaymentSucceeded списывает остатки по позициям заказа и переводит
// заказ в processing. Обработчик идемпотентен: списание ключуется
// RefID = paymentID:productID, повторная доставка события безопасна.
// При нехватке остатка заказ остаётся pending, ошибка возвращается наверх,
// чтобы at-least-once доставка повторила попытку.
func (s *Service) HandlePaymentSucceeded(event domain.PaymentSucceededEvent) error {
	logger := s.logger.WithFields(log.Fields{
		"payment_id": event.PaymentID,
		"order_id":   event.OrderID,
	})

	order, err := s.orders.Get(event.OrderID)
	if err != nil {
		logger.WithError(err).Error("order not found for fulfillment")
		s.recordFailure()
		return err
	}

	for _, detail := range order.Details {
		refID := event.PaymentID + ":" + detail.ProductID
		if _, err := s.stocks.Reduce(detail.ProductID, detail.Qty, "order "+order.ID, refID); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				logger.WithFields(log.Fields{
					"product_id": detail.ProductID,
					"qty":        detail.Qty,
				}).Error("authoritative stock reduction failed, order left pending")
			} else {
				logger.WithError(err).WithField("product_id", detail.ProductID).Error("stock reduction failed")
			}
			s.recordFailure()
			return err
		}
	}

	if order.Status == domain.OrderStatusPending {
		if _, err := s.transition.UpdateStatus(order.ID, domain.OrderStatusProcessing, "payment "+event.PaymentID); err != nil {
			logger.WithError(err).Error("failed to move order to processing")
			s.recordFailure()
			return err
		}
	}

	logger.Info("fulfillment completed")
	if s.metrics != nil {
		s.metrics.RecordFulfillmentProcessed()
	}
	return nil
}

// HandleMessage разбирает сырой payload события и обрабатывает его.
// Используется Kafka-консьюмером.
func (s *Service) HandleMessage(payload []byte) error {
	var event domain.PaymentSucceededEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment succeeded event: %w", err)
	}
	if event.PaymentID == "" || event.OrderID == "" {
		return fmt.Errorf("payment succeeded event is incomplete: %w", domain.ErrPaymentNotFound)
	}
	return s.HandlePaymentSucceeded(event)
}

func (s *Service) recordFailure() {
	if s.metrics != nil {
		s.metrics.RecordFulfillmentFailure()
	}
}
