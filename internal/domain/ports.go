package domain

import "time"

// Catalog — узкий порт внешнего каталога товаров: ядру магазина
// нужны только актуальная цена и признак доступности.
type Catalog interface {
	// PriceOf возвращает цену товара в минимальных единицах валюты
	// или ErrProductNotFound.
	PriceOf(productID string) (int64, error)
	// IsAvailable сообщает, продаётся ли товар сейчас.
	IsAvailable(productID string) bool
}

// CartClearer очищает корзину пользователя после успешного checkout.
type CartClearer interface {
	Clear(userID string) error
}

// OutboxPublisher доставляет события transactional outbox потребителям.
// Publish обязан быть идемпотентным: воркер может повторить доставку
// уже опубликованного события.
type OutboxPublisher interface {
	Publish(event OutboxMessage) error
}

// OutboxRepository — очередь событий, записанных вместе с бизнес-транзакцией.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит хронологию событий заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по Idempotency-Key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage — событие, ожидающее публикации из outbox.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats — срез состояния backlog: размер и время самой старой
// неопубликованной записи. Используется health-репортом.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
