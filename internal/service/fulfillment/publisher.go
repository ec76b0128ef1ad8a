package fulfillment

import (
	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Publisher — in-process адаптер domain.OutboxPublisher для запусков без Kafka:
// outbox-воркер публикует события напрямую в обработчик fulfillment.
type Publisher struct {
	handler *Service
}

// NewPublisher создаёт in-process издатель поверх обработчика.
func NewPublisher(handler *Service) *Publisher {
	return &Publisher{handler: handler}
}

// Publish обрабатывает событие PaymentSucceeded; остальные типы пропускает.
// Идемпотентность обеспечивает обработчик (RefID-ключ списания).
func (p *Publisher) Publish(event domain.OutboxMessage) error {
	if event.EventType != domain.EventTypePaymentSucceeded {
		return nil
	}
	return p.handler.HandleMessage(event.Payload)
}

var _ domain.OutboxPublisher = (*Publisher)(nil)
