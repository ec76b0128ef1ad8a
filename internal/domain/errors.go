package domain

import "errors"

// Ошибки валидации входа — исправляются вызывающей стороной.
var (
	// ErrUserRequired — отсутствует идентификатор пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// ErrProductRequired — отсутствует идентификатор товара.
	ErrProductRequired = errors.New("product_id is required")
	// ErrCartEmpty — корзина пуста, checkout невозможен.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrInvalidQuantity — количество вне допустимого диапазона [1, 99].
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")
	// ErrProductUnavailable — товар недоступен для продажи по данным каталога.
	ErrProductUnavailable = errors.New("product is not available")
	// ErrInvalidPrice — каталог вернул цену <= 0.
	ErrInvalidPrice = errors.New("price must be greater than zero")
	// ErrItemsRequired — заказ должен содержать хотя бы одну позицию.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// ErrAmountNegative — сумма заказа или платежа отрицательная.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// ErrAmountMismatch — сумма заказа не сходится с суммой позиций.
	ErrAmountMismatch = errors.New("order amount does not match details sum")
	// ErrPaymentMethodRequired — не указан способ оплаты.
	ErrPaymentMethodRequired = errors.New("payment method is required")
)

// Конфликты состояния — нарушение инварианта агрегата.
var (
	// ErrInsufficientStock — доступного остатка недостаточно для списания.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicatePayment — для заказа уже существует платёж.
	ErrDuplicatePayment = errors.New("payment already exists for order")
	// ErrInvalidStatusTransition — переход статуса заказа вне таблицы переходов.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	// ErrInvalidPaymentState — операция недопустима в текущем статусе платежа.
	ErrInvalidPaymentState = errors.New("invalid payment state")
	// ErrVersionConflict — конфликт версий при optimistic locking.
	ErrVersionConflict = errors.New("aggregate version conflict")
)

// Отсутствующие записи.
var (
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrStockNotFound возвращается, если для товара нет строки остатка.
	ErrStockNotFound = errors.New("stock not found")
	// ErrCartItemNotFound возвращается, если позиция корзины не найдена.
	ErrCartItemNotFound = errors.New("cart item not found")
	// ErrProductNotFound — каталог не знает такой товар.
	ErrProductNotFound = errors.New("product not found")
)

// Интеграционные ошибки.
var (
	// ErrPaymentDeclined — симулированный отказ провайдера при settlement.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Ошибки идемпотентности HTTP-запросов.
var (
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// ErrorKind группирует ошибки по таксономии обработки.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindConflict    ErrorKind = "conflict"
	KindNotFound    ErrorKind = "not_found"
	KindIntegration ErrorKind = "integration"
	KindInternal    ErrorKind = "internal"
)

// errorCodes сопоставляет sentinel-ошибки со стабильными машиночитаемыми кодами.
var errorCodes = []struct {
	err  error
	kind ErrorKind
	code string
}{
	{ErrUserRequired, KindValidation, "USER_REQUIRED"},
	{ErrProductRequired, KindValidation, "PRODUCT_REQUIRED"},
	{ErrCartEmpty, KindValidation, "CART_EMPTY"},
	{ErrInvalidQuantity, KindValidation, "INVALID_QUANTITY"},
	{ErrProductUnavailable, KindValidation, "PRODUCT_UNAVAILABLE"},
	{ErrInvalidPrice, KindValidation, "INVALID_PRICE"},
	{ErrItemsRequired, KindValidation, "ITEMS_REQUIRED"},
	{ErrAmountNegative, KindValidation, "AMOUNT_NEGATIVE"},
	{ErrAmountMismatch, KindValidation, "AMOUNT_MISMATCH"},
	{ErrPaymentMethodRequired, KindValidation, "PAYMENT_METHOD_REQUIRED"},

	{ErrInsufficientStock, KindConflict, "INSUFFICIENT_STOCK"},
	{ErrDuplicatePayment, KindConflict, "DUPLICATE_PAYMENT"},
	{ErrInvalidStatusTransition, KindConflict, "INVALID_STATUS_TRANSITION"},
	{ErrInvalidPaymentState, KindConflict, "INVALID_PAYMENT_STATE"},
	{ErrVersionConflict, KindConflict, "VERSION_CONFLICT"},

	{ErrOrderNotFound, KindNotFound, "ORDER_NOT_FOUND"},
	{ErrPaymentNotFound, KindNotFound, "PAYMENT_NOT_FOUND"},
	{ErrStockNotFound, KindNotFound, "STOCK_NOT_FOUND"},
	{ErrCartItemNotFound, KindNotFound, "CART_ITEM_NOT_FOUND"},
	{ErrProductNotFound, KindNotFound, "PRODUCT_NOT_FOUND"},

	{ErrPaymentDeclined, KindIntegration, "PAYMENT_DECLINED"},
	{ErrOutboxPublish, KindIntegration, "OUTBOX_PUBLISH_FAILED"},
}

// Kind возвращает группу таксономии для ошибки. Неизвестные ошибки считаются internal.
func Kind(err error) ErrorKind {
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}

// Code возвращает стабильный машиночитаемый код ошибки.
// Для неизвестных ошибок возвращается INTERNAL без раскрытия деталей.
func Code(err error) string {
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return "INTERNAL"
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
