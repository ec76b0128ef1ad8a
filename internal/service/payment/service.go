// Package payment реализует жизненный цикл платежа с симуляцией settlement.
package payment

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// DefaultSuccessRate — вероятность успеха для card/wallet, если не переопределена.
const DefaultSuccessRate = 0.9

// Stats — админская сводка по платежам.
type Stats struct {
	CountByStatus map[domain.PaymentStatus]int
	// SettledMinor — сумма успешно проведённых платежей.
	SettledMinor int64
}

// Service описывает операции над платежами.
type Service interface {
	// Create создаёт платёж в статусе init на сумму заказа.
	// Второй платёж для того же заказа — ErrDuplicatePayment.
	Create(orderID string, method domain.PaymentMethod) (domain.Payment, error)
	// Get возвращает платёж по идентификатору.
	Get(paymentID string) (domain.Payment, error)
	// GetByOrder возвращает платёж заказа.
	GetByOrder(orderID string) (domain.Payment, error)
	// Process запускает settlement: init → pending → success/failed.
	// Результат success фиксируется вместе с outbox-событием PaymentSucceeded.
	Process(paymentID string) (domain.Payment, error)
	// Cancel отменяет платёж. После success отмена невозможна.
	Cancel(paymentID string) (domain.Payment, error)
	// ListAll возвращает платежи для админского листинга.
	ListAll(limit int) ([]domain.Payment, error)
	// Stats возвращает сводку по платежам.
	Stats() (Stats, error)
}

type service struct {
	payments    domain.PaymentRepository
	orders      domain.OrderRepository
	successRate float64
	rng         *rand.Rand
	logger      *log.Entry
	metrics     *metrics.PipelineMetrics
}

// Option настраивает сервис платежей.
type Option func(*service)

// WithSuccessRate задаёт вероятность успеха для card/wallet (0..1).
func WithSuccessRate(rate float64) Option {
	return func(s *service) {
		if rate >= 0 && rate <= 1 {
			s.successRate = rate
		}
	}
}

// WithRand задаёт источник случайности (детерминизм в тестах).
func WithRand(rng *rand.Rand) Option {
	return func(s *service) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithMetrics подключает метрики цепочки.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// NewService создаёт сервис платежей.
func NewService(payments domain.PaymentRepository, orders domain.OrderRepository, logger *log.Entry, opts ...Option) Service {
	if logger == nil {
		logger = log.New().WithField("component", "payment")
	}
	s := &service{
		payments:    payments,
		orders:      orders,
		successRate: DefaultSuccessRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Create(orderID string, method domain.PaymentMethod) (domain.Payment, error) {
	if strings.TrimSpace(string(method)) == "" {
		return domain.Payment{}, domain.ErrPaymentMethodRequired
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Payment{}, err
	}

	now := time.Now().UTC()
	payment := domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		Method:      method,
		Status:      domain.PaymentStatusInit,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errs := payment.Validate(); len(errs) > 0 {
		return domain.Payment{}, errs[0]
	}

	if err := s.payments.Create(payment); err != nil {
		return domain.Payment{}, err
	}

	s.logger.WithFields(log.Fields{
		"payment_id":   payment.ID,
		"order_id":     payment.OrderID,
		"method":       payment.Method,
		"amount_minor": payment.AmountMinor,
	}).Info("payment created")

	return payment, nil
}

func (s *service) Get(paymentID string) (domain.Payment, error) {
	return s.payments.Get(paymentID)
}

func (s *service) GetByOrder(orderID string) (domain.Payment, error) {
	return s.payments.GetByOrder(orderID)
}

// Process выполняет settlement. Переход в pending фиксируется до симуляции,
// чтобы повторный Process того же платежа был отклонён как InvalidPaymentState.
func (s *service) Process(paymentID string) (domain.Payment, error) {
	payment, err := s.payments.Get(paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment.Status != domain.PaymentStatusInit {
		return domain.Payment{}, domain.ErrInvalidPaymentState
	}

	if err := payment.Transition(domain.PaymentStatusPending); err != nil {
		return domain.Payment{}, err
	}
	if err := s.payments.Save(payment); err != nil {
		return domain.Payment{}, err
	}
	payment.Version++

	if s.settle(payment.Method) {
		return s.settleSuccess(payment)
	}
	return s.settleFailure(payment, "declined by provider")
}

func (s *service) Cancel(paymentID string) (domain.Payment, error) {
	payment, err := s.payments.Get(paymentID)
	if err != nil {
		return domain.Payment{}, err
	}

	if err := payment.Transition(domain.PaymentStatusCanceled); err != nil {
		return domain.Payment{}, err
	}
	if err := s.payments.Save(payment); err != nil {
		return domain.Payment{}, err
	}
	payment.Version++

	s.logger.WithField("payment_id", payment.ID).Info("payment canceled")
	return payment, nil
}

func (s *service) ListAll(limit int) ([]domain.Payment, error) {
	return s.payments.ListAll(limit)
}

func (s *service) Stats() (Stats, error) {
	payments, err := s.payments.ListAll(0)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{CountByStatus: make(map[domain.PaymentStatus]int)}
	for _, payment := range payments {
		stats.CountByStatus[payment.Status]++
		if payment.Status == domain.PaymentStatusSuccess {
			stats.SettledMinor += payment.AmountMinor
		}
	}

	return stats, nil
}

// settle симулирует ответ провайдера. COD и test всегда успешны.
func (s *service) settle(method domain.PaymentMethod) bool {
	switch method {
	case domain.PaymentMethodCOD, domain.PaymentMethodTest:
		return true
	default:
		return s.rng.Float64() < s.successRate
	}
}

func (s *service) settleSuccess(payment domain.Payment) (domain.Payment, error) {
	if err := payment.Transition(domain.PaymentStatusSuccess); err != nil {
		return domain.Payment{}, err
	}
	payment.TransactionRef = uuid.NewString()

	event, err := buildSucceededEvent(payment)
	if err != nil {
		return domain.Payment{}, err
	}

	// Статус success и outbox-событие становятся видимыми только вместе.
	if err := s.payments.SaveSettled(payment, event); err != nil {
		return domain.Payment{}, err
	}
	payment.Version++

	s.logger.WithFields(log.Fields{
		"payment_id":      payment.ID,
		"order_id":        payment.OrderID,
		"transaction_ref": payment.TransactionRef,
	}).Info("payment settled")
	if s.metrics != nil {
		s.metrics.RecordPaymentSettled("success")
	}

	return payment, nil
}

func (s *service) settleFailure(payment domain.Payment, reason string) (domain.Payment, error) {
	if err := payment.Transition(domain.PaymentStatusFailed); err != nil {
		return domain.Payment{}, err
	}
	payment.FailureReason = reason

	if err := s.payments.Save(payment); err != nil {
		return domain.Payment{}, err
	}
	payment.Version++

	s.logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"reason":     reason,
	}).Warn("payment declined")
	if s.metrics != nil {
		s.metrics.RecordPaymentSettled("failed")
	}

	return payment, domain.ErrPaymentDeclined
}

func buildSucceededEvent(payment domain.Payment) (domain.OutboxMessage, error) {
	payload, err := json.Marshal(domain.PaymentSucceededEvent{
		PaymentID:      payment.ID,
		OrderID:        payment.OrderID,
		AmountMinor:    payment.AmountMinor,
		Method:         string(payment.Method),
		TransactionRef: payment.TransactionRef,
	})
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal payment succeeded event: %w", err)
	}

	return domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: "payment",
		AggregateID:   payment.ID,
		EventType:     domain.EventTypePaymentSucceeded,
		Payload:       payload,
	}, nil
}

var _ Service = (*service)(nil)
