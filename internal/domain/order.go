package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — оплата прошла, остаток списан, заказ собирается.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю (терминальный).
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled — заказ отменён до отгрузки (терминальный).
	OrderStatusCanceled OrderStatus = "canceled"
)

// orderTransitions — таблица допустимых переходов статуса заказа.
// Проверка переходов идёт только через неё, без разрозненных switch.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCanceled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCanceled:   {},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal сообщает, является ли статус терминальным.
func (s OrderStatus) Terminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransition проверяет допустимость перехода по таблице.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderDetail представляет одну позицию заказа.
// Цена фиксируется в момент создания заказа и больше не обновляется.
type OrderDetail struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — внешний идентификатор товара.
	ProductID string
	// Qty — количество единиц товара.
	Qty int32
	// PriceMinor — цена за единицу в минимальных денежных единицах на момент создания заказа.
	PriceMinor int64
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// SubtotalMinor возвращает стоимость позиции: qty * price.
func (d OrderDetail) SubtotalMinor() int64 {
	return int64(d.Qty) * d.PriceMinor
}

// Order агрегирует состояние заказа и его позиции.
// После достижения терминального статуса заказ неизменяем.
type Order struct {
	ID          string
	UserID      string
	Status      OrderStatus
	Currency    string
	AmountMinor int64
	Details     []OrderDetail
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transition переводит заказ в новый статус, если переход есть в таблице.
// При недопустимом переходе статус не меняется.
func (o *Order) Transition(to OrderStatus) error {
	if !o.Status.CanTransition(to) {
		return ErrInvalidStatusTransition
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Details) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, detail := range o.Details {
		if detail.ProductID == "" {
			errs = append(errs, ErrProductRequired)
		}
		if detail.Qty <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if detail.PriceMinor <= 0 {
			errs = append(errs, ErrInvalidPrice)
		}
		calc += detail.SubtotalMinor()
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
