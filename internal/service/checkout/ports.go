package checkout

import (
	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
)

// Узкие порты оркестратора: каждый потребляет ровно то, что нужно шагу.
// Связывание с реальными сервисами происходит в composition root (internal/app).

// CartSnapshotter отдаёт неизменяемый снимок корзины.
type CartSnapshotter interface {
	Snapshot(userID string) (domain.CartSnapshot, error)
}

// StockChecker — рекомендательная проверка наличия перед заказом.
type StockChecker interface {
	HasStock(productID string, qty int32) (bool, error)
}

// OrderCreator создаёт заказ по строкам с уже зафиксированными ценами.
type OrderCreator interface {
	Create(userID, currency string, lines []order.Line, resolve order.PriceResolver) (domain.Order, error)
}

// PaymentCreator создаёт платёж в статусе init на сумму заказа.
type PaymentCreator interface {
	Create(orderID string, method domain.PaymentMethod) (domain.Payment, error)
}
