package domain

import "time"

const (
	// CartMinQty и CartMaxQty задают допустимый диапазон количества в корзине.
	CartMinQty int32 = 1
	CartMaxQty int32 = 99
)

// ValidCartQty проверяет количество на попадание в допустимый диапазон.
func ValidCartQty(qty int32) bool {
	return qty >= CartMinQty && qty <= CartMaxQty
}

// CartItem — позиция корзины, уникальная по (пользователь, товар).
// Цена фиксируется из каталога при каждом добавлении товара; изменение
// количества цену не обновляет — это осознанное решение, а не ошибка:
// покупатель видит цену, по которой он клал товар в корзину.
type CartItem struct {
	ID        string
	UserID    string
	ProductID string
	Qty       int32
	// PriceMinor — цена за единицу на момент последнего добавления.
	PriceMinor int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CartLine — строка неизменяемого снимка корзины для checkout.
type CartLine struct {
	ProductID  string
	Qty        int32
	PriceMinor int64
	// SubtotalMinor = Qty * PriceMinor, считается в момент снимка.
	SubtotalMinor int64
}

// CartSnapshot — неизменяемый снимок корзины, по которому создаётся заказ.
// Суммы заказа считаются из зафиксированных здесь цен, а не из каталога.
type CartSnapshot struct {
	UserID     string
	Lines      []CartLine
	TotalMinor int64
	TakenAt    time.Time
}
