// Package checkout координирует конвертацию корзины в заказ с платежом.
package checkout

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
)

// DefaultPaymentMethod используется, когда покупатель не выбрал способ оплаты.
const DefaultPaymentMethod = domain.PaymentMethodCOD

// Result — итог успешного checkout: заказ и платёж в init.
type Result struct {
	Order   domain.Order
	Payment domain.Payment
}

// Service описывает операцию checkout.
type Service interface {
	// Checkout конвертирует корзину пользователя в заказ с платежом в init.
	// Списания остатков здесь нет — оно происходит асинхронно после оплаты.
	Checkout(userID string, method domain.PaymentMethod) (Result, error)
}

type service struct {
	carts    CartSnapshotter
	stocks   StockChecker
	orders   OrderCreator
	payments PaymentCreator
	clearer  domain.CartClearer
	currency string
	logger   *log.Entry
	metrics  *metrics.PipelineMetrics
}

// NewService создаёт оркестратор checkout.
func NewService(
	carts CartSnapshotter,
	stocks StockChecker,
	orders OrderCreator,
	payments PaymentCreator,
	clearer domain.CartClearer,
	currency string,
	pipelineMetrics *metrics.PipelineMetrics,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &service{
		carts:    carts,
		stocks:   stocks,
		orders:   orders,
		payments: payments,
		clearer:  clearer,
		currency: currency,
		logger:   logger,
		metrics:  pipelineMetrics,
	}
}

func (s *service) Checkout(userID string, method domain.PaymentMethod) (Result, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordCheckoutStarted()
		defer func() {
			s.metrics.RecordCheckoutDuration(time.Since(start))
		}()
	}
	if method == "" {
		method = DefaultPaymentMethod
	}

	result, err := s.checkout(userID, method)
	if s.metrics != nil {
		if err != nil {
			s.metrics.RecordCheckoutFailed()
		} else {
			s.metrics.RecordCheckoutCompleted()
		}
	}
	return result, err
}

func (s *service) checkout(userID string, method domain.PaymentMethod) (Result, error) {
	snapshot, err := s.carts.Snapshot(userID)
	if err != nil {
		return Result{}, err
	}

	// Рекомендательная проверка: ранний отказ, а не резервирование.
	// Авторитетная проверка происходит при списании после оплаты.
	for _, line := range snapshot.Lines {
		ok, err := s.stocks.HasStock(line.ProductID, line.Qty)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, fmt.Errorf("product %s: %w", line.ProductID, domain.ErrInsufficientStock)
		}
	}

	lines := make([]order.Line, 0, len(snapshot.Lines))
	prices := make(map[string]int64, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		lines = append(lines, order.Line{ProductID: line.ProductID, Qty: line.Qty})
		prices[line.ProductID] = line.PriceMinor
	}

	// Цены берутся из снимка, каталог на этом шаге уже не опрашивается.
	created, err := s.orders.Create(userID, s.currency, lines, func(productID string) (int64, error) {
		price, ok := prices[productID]
		if !ok {
			return 0, domain.ErrProductNotFound
		}
		return price, nil
	})
	if err != nil {
		return Result{}, err
	}

	payment, err := s.payments.Create(created.ID, method)
	if err != nil {
		return Result{}, err
	}

	if err := s.clearer.Clear(userID); err != nil {
		// Заказ и платёж уже созданы; незачищенная корзина — не причина
		// откатывать checkout.
		s.logger.WithError(err).WithFields(log.Fields{
			"user_id":  userID,
			"order_id": created.ID,
		}).Warn("cart clear after checkout failed")
	}

	s.logger.WithFields(log.Fields{
		"user_id":      userID,
		"order_id":     created.ID,
		"payment_id":   payment.ID,
		"amount_minor": created.AmountMinor,
		"method":       method,
	}).Info("checkout completed")

	return Result{Order: created, Payment: payment}, nil
}

var _ Service = (*service)(nil)
