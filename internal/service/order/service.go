// Package order реализует жизненный цикл заказа.
package order

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// PriceResolver возвращает цену единицы товара в минимальных единицах.
// Для прямого создания заказа это каталог, для checkout — снимок корзины.
type PriceResolver func(productID string) (int64, error)

// Line — запрошенная строка заказа до резолва цены.
type Line struct {
	ProductID string
	Qty       int32
}

// Stats — админская сводка по заказам.
type Stats struct {
	CountByStatus map[domain.OrderStatus]int
	// RevenueMinor — сумма по заказам, прошедшим оплату
	// (processing, shipped, delivered).
	RevenueMinor int64
}

// Service описывает операции над заказами.
type Service interface {
	// Create создаёт заказ в статусе pending с ценами из переданного resolver.
	Create(userID, currency string, lines []Line, resolve PriceResolver) (domain.Order, error)
	// Get возвращает заказ по идентификатору.
	Get(orderID string) (domain.Order, error)
	// ListByUser возвращает заказы пользователя.
	ListByUser(userID string, limit int) ([]domain.Order, error)
	// ListAll возвращает заказы для админского листинга.
	ListAll(limit int) ([]domain.Order, error)
	// Cancel отменяет заказ. Допустим только из pending и processing.
	Cancel(orderID, reason string) (domain.Order, error)
	// UpdateStatus переводит заказ в новый статус по таблице переходов.
	// Переход в текущий статус — идемпотентный no-op: заказ возвращается
	// без изменений, чтобы повторная доставка события не давала ошибку.
	UpdateStatus(orderID string, to domain.OrderStatus, reason string) (domain.Order, error)
	// Timeline возвращает события жизненного цикла заказа.
	Timeline(orderID string) ([]domain.TimelineEvent, error)
	// Stats возвращает сводку по заказам.
	Stats() (Stats, error)
}

type service struct {
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.PipelineMetrics
}

// NewService создаёт сервис заказов.
func NewService(
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	pipelineMetrics *metrics.PipelineMetrics,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "order")
	}
	return &service{
		orders:   orders,
		outbox:   outbox,
		timeline: timeline,
		logger:   logger,
		metrics:  pipelineMetrics,
	}
}

func (s *service) Create(userID, currency string, lines []Line, resolve PriceResolver) (domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Order{}, domain.ErrUserRequired
	}
	if len(lines) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    domain.OrderStatusPending,
		Currency:  currency,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return domain.Order{}, domain.ErrProductRequired
		}
		if line.Qty <= 0 {
			return domain.Order{}, domain.ErrInvalidQuantity
		}

		price, err := resolve(line.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		if price <= 0 {
			return domain.Order{}, domain.ErrInvalidPrice
		}

		detail := domain.OrderDetail{
			ID:         uuid.NewString(),
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: price,
			CreatedAt:  now,
		}
		order.Details = append(order.Details, detail)
		order.AmountMinor += detail.SubtotalMinor()
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}

	if err := s.orders.Create(order); err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"user_id":      order.UserID,
		"amount_minor": order.AmountMinor,
		"lines":        len(order.Details),
	}).Info("order created")

	s.emitEvent(&order, "OrderCreated", map[string]interface{}{
		"user_id":      order.UserID,
		"amount_minor": order.AmountMinor,
		"currency":     order.Currency,
		"ts":           now.Format(time.RFC3339Nano),
	})

	return order, nil
}

func (s *service) Get(orderID string) (domain.Order, error) {
	return s.orders.Get(orderID)
}

func (s *service) ListByUser(userID string, limit int) ([]domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUserRequired
	}
	return s.orders.ListByUser(userID, limit)
}

func (s *service) ListAll(limit int) ([]domain.Order, error) {
	return s.orders.ListAll(limit)
}

// Cancel переводит заказ в canceled. Таблица переходов сама отклоняет
// отмену после отгрузки.
func (s *service) Cancel(orderID, reason string) (domain.Order, error) {
	return s.transition(orderID, domain.OrderStatusCanceled, reason, "OrderCanceled")
}

func (s *service) UpdateStatus(orderID string, to domain.OrderStatus, reason string) (domain.Order, error) {
	if !to.Valid() {
		return domain.Order{}, domain.ErrInvalidStatusTransition
	}
	return s.transition(orderID, to, reason, "OrderStatusChanged")
}

func (s *service) Timeline(orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(orderID); err != nil {
		return nil, err
	}
	return s.timeline.List(orderID)
}

func (s *service) Stats() (Stats, error) {
	orders, err := s.orders.ListAll(0)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{CountByStatus: make(map[domain.OrderStatus]int)}
	for _, order := range orders {
		stats.CountByStatus[order.Status]++
		switch order.Status {
		case domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered:
			stats.RevenueMinor += order.AmountMinor
		}
	}

	return stats, nil
}

// transition переводит заказ в новый статус с обработкой version conflict:
// перезагрузка свежей версии и повтор с exponential backoff.
func (s *service) transition(orderID string, to domain.OrderStatus, reason, eventType string) (domain.Order, error) {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if order.Status == to {
			return order, nil
		}
		if err := order.Transition(to); err != nil {
			return domain.Order{}, err
		}
		order.UpdatedAt = time.Now().UTC()

		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := s.orders.Get(order.ID)
				if loadErr != nil {
					return domain.Order{}, loadErr
				}
				order = fresh

				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist status")
			return domain.Order{}, err
		}

		order.Version++

		payload := map[string]interface{}{
			"status": string(order.Status),
			"ts":     order.UpdatedAt.Format(time.RFC3339Nano),
		}
		if reason != "" {
			payload["reason"] = reason
		}
		s.emitEvent(&order, eventType, payload)

		return order, nil
	}

	return domain.Order{}, domain.ErrVersionConflict
}

func (s *service) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}

	if s.timeline == nil {
		return
	}

	var reason string
	if r, ok := payload["reason"].(string); ok {
		reason = r
	}
	event := domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := s.timeline.Append(event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Warn("append timeline event failed")
	} else if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}

var _ Service = (*service)(nil)
