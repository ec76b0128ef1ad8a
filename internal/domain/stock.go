package domain

import "time"

// StockChangeType определяет направление изменения остатка в истории.
type StockChangeType string

const (
	// StockChangeIn — приход (пополнение склада).
	StockChangeIn StockChangeType = "IN"
	// StockChangeOut — расход (списание под заказ).
	StockChangeOut StockChangeType = "OUT"
	// StockChangeAdjust — ручная корректировка до абсолютного значения.
	StockChangeAdjust StockChangeType = "ADJUST"
)

// Stock хранит доступный остаток товара.
// Инвариант: Available >= 0 всегда; списание отклоняется, а не обрезается.
type Stock struct {
	ID        string
	ProductID string
	Available int32
	// LowStockThreshold — порог для производного признака "мало на складе".
	LowStockThreshold int32
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsLowStock — производный признак, отдельного состояния под него нет.
func (s Stock) IsLowStock() bool {
	return s.Available <= s.LowStockThreshold
}

// StockHistory — append-only строка аудита изменения остатка.
// Записи создаются в той же единице работы, что и мутация, и никогда не меняются.
type StockHistory struct {
	ID         string
	ProductID  string
	ChangeType StockChangeType
	Qty        int32
	Reason     string
	// RefID — внешний ключ идемпотентности: для списаний из fulfillment это
	// paymentID:productID. Повторная доставка события с тем же RefID — no-op.
	RefID     string
	CreatedAt time.Time
}

// Validate проверяет корректность строки истории.
func (h *StockHistory) Validate() []error {
	var errs []error

	if h.ProductID == "" {
		errs = append(errs, ErrProductRequired)
	}
	if h.Qty <= 0 && h.ChangeType != StockChangeAdjust {
		errs = append(errs, ErrInvalidQuantity)
	}

	return errs
}
