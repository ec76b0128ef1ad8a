package domain

// OrderRepository описывает требования к хранилищу заказов.
// Create и Save пишут заказ вместе с позициями в одной единице работы.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByUser возвращает заказы пользователя с опциональным ограничением на количество.
	ListByUser(userID string, limit int) ([]Order, error)
	// ListAll возвращает все заказы (админский листинг).
	ListAll(limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// PaymentRepository описывает требования к хранилищу платежей.
type PaymentRepository interface {
	// Create сохраняет новый платёж. Возвращает ErrDuplicatePayment,
	// если для заказа платёж уже существует.
	Create(payment Payment) error
	// Get возвращает платёж по идентификатору или ErrPaymentNotFound.
	Get(id string) (Payment, error)
	// GetByOrder возвращает платёж заказа или ErrPaymentNotFound.
	GetByOrder(orderID string) (Payment, error)
	// ListAll возвращает все платежи (админский листинг).
	ListAll(limit int) ([]Payment, error)
	// Save применяет обновления к платежу с учётом optimistic locking.
	Save(payment Payment) error
	// SaveSettled сохраняет переход платежа в success и outbox-событие
	// в одной единице работы: событие становится видимым только вместе
	// с зафиксированным статусом.
	SaveSettled(payment Payment, event OutboxMessage) error
}

// StockRepository описывает требования к хранилищу остатков.
// Мутация остатка и append строки истории выполняются в одной единице работы,
// поэтому они объединены на уровне репозитория.
type StockRepository interface {
	// Create заводит строку остатка для товара.
	Create(stock Stock) error
	// Get возвращает остаток товара или ErrStockNotFound.
	Get(productID string) (Stock, error)
	// ListAll возвращает все строки остатков (админский листинг).
	ListAll(limit int) ([]Stock, error)
	// Reduce атомарно уменьшает остаток и пишет OUT-строку истории.
	// Возвращает ErrInsufficientStock без частичного списания, если остатка не хватает.
	// Повторный вызов с тем же непустым refID — no-op (идемпотентность по ключу события).
	Reduce(productID string, qty int32, reason, refID string) (Stock, error)
	// Add атомарно увеличивает остаток и пишет IN-строку истории.
	Add(productID string, qty int32, reason string) (Stock, error)
	// Set атомарно выставляет абсолютное значение остатка и пишет ADJUST-строку.
	Set(productID string, qty int32, reason string) (Stock, error)
	// History возвращает строки аудита по товару в хронологическом порядке.
	History(productID string) ([]StockHistory, error)
}

// CartRepository описывает требования к хранилищу корзин.
type CartRepository interface {
	// Upsert сохраняет позицию корзины (новую или обновлённую).
	Upsert(item CartItem) error
	// GetItem возвращает позицию по идентификатору или ErrCartItemNotFound.
	GetItem(itemID string) (CartItem, error)
	// GetByUserAndProduct возвращает позицию пользователя по товару или ErrCartItemNotFound.
	GetByUserAndProduct(userID, productID string) (CartItem, error)
	// ListByUser возвращает все позиции корзины пользователя.
	ListByUser(userID string) ([]CartItem, error)
	// Remove удаляет позицию по идентификатору.
	Remove(itemID string) error
	// Clear удаляет все позиции корзины пользователя.
	Clear(userID string) error
}
