package domain

import "time"

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	// PaymentStatusInit — платёж создан при checkout, обработка не начата.
	PaymentStatusInit PaymentStatus = "init"
	// PaymentStatusPending — settlement запущен, ждём результата провайдера.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusSuccess — платёж подтверждён, есть transaction_ref (терминальный).
	PaymentStatusSuccess PaymentStatus = "success"
	// PaymentStatusFailed — провайдер отклонил платёж (терминальный).
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusCanceled — платёж отменён до успеха (терминальный).
	PaymentStatusCanceled PaymentStatus = "canceled"
)

// paymentTransitions — таблица допустимых переходов статуса платежа.
// В success можно попасть только через pending; отмена успешного платежа запрещена.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusInit:     {PaymentStatusPending, PaymentStatusCanceled},
	PaymentStatusPending:  {PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCanceled},
	PaymentStatusSuccess:  {},
	PaymentStatusFailed:   {},
	PaymentStatusCanceled: {},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// Terminal сообщает, является ли статус терминальным.
func (s PaymentStatus) Terminal() bool {
	next, ok := paymentTransitions[s]
	return ok && len(next) == 0
}

// CanTransition проверяет допустимость перехода по таблице.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// PaymentMethod — способ оплаты; settlement зависит от метода.
type PaymentMethod string

const (
	// PaymentMethodCOD — оплата при получении, settlement всегда успешен.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodCard — оплата картой, симулируется с настраиваемой вероятностью успеха.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodWallet — электронный кошелёк, симулируется аналогично карте.
	PaymentMethodWallet PaymentMethod = "wallet"
	// PaymentMethodTest — тестовый метод, всегда успешен. Только для тестов и локальных запусков.
	PaymentMethodTest PaymentMethod = "test"
)

// Payment описывает платёж, связанный с заказом (1:1, не более одного на заказ).
type Payment struct {
	ID          string
	OrderID     string
	Method      PaymentMethod
	Status      PaymentStatus
	AmountMinor int64
	Currency    string
	// TransactionRef заполняется только при успешном settlement.
	TransactionRef string
	// FailureReason заполняется только при отказе провайдера.
	FailureReason string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Transition переводит платёж в новый статус, если переход есть в таблице.
func (p *Payment) Transition(to PaymentStatus) error {
	if !p.Status.CanTransition(to) {
		return ErrInvalidPaymentState
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderNotFound)
	}
	if p.Method == "" {
		errs = append(errs, ErrPaymentMethodRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	return errs
}

// PaymentSucceededEvent — payload события успешной оплаты, публикуемого через outbox.
// Это единственная точка передачи управления в fulfillment/списание остатков.
type PaymentSucceededEvent struct {
	PaymentID      string `json:"payment_id"`
	OrderID        string `json:"order_id"`
	AmountMinor    int64  `json:"amount_minor"`
	Method         string `json:"method"`
	TransactionRef string `json:"transaction_ref"`
}

// EventTypePaymentSucceeded — тип outbox-события успешной оплаты.
const EventTypePaymentSucceeded = "PaymentSucceeded"
