package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// OutboxTopicPublisher оборачивает outbox-сообщение в Envelope и
// публикует его в Kafka. Ключом партиционирования служит ID агрегата,
// чтобы события одного агрегата попадали в одну партицию.
type OutboxTopicPublisher struct {
	producer *Producer
	// override, если задан, направляет все события в один топик
	// вместо маршрутизации по типу агрегата.
	override string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
// Пустой topic включает маршрутизацию через RouteTopic.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	return &OutboxTopicPublisher{producer: producer, override: topic}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	topic := p.override
	if topic == "" {
		topic = RouteTopic(event.AggregateType)
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	return p.producer.Send(topic, key, Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	})
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
