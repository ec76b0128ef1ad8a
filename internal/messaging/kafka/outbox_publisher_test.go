package kafka

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestOutboxPublisherWrapsMessageInEnvelope(t *testing.T) {
	t.Parallel()

	producer, sp := newTestProducer(t)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var env Envelope
		if err := json.Unmarshal(value, &env); err != nil {
			return err
		}
		if env.ID != "outbox-1" || env.EventType != "OrderStatusChanged" {
			return fmt.Errorf("unexpected envelope: %+v", env)
		}
		if env.PublishedAt.IsZero() {
			return fmt.Errorf("published_at must be set")
		}
		return nil
	})

	publisher := NewOutboxPublisher(producer, TopicOrderEvents)
	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     "OrderStatusChanged",
		Payload:       []byte(`{"status":"processing"}`),
	})
	require.NoError(t, err)
	require.NoError(t, sp.Close())
}

func TestOutboxPublisherProducerError(t *testing.T) {
	t.Parallel()

	producer, sp := newTestProducer(t)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewOutboxPublisher(producer, TopicOrderEvents)
	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: "order",
		AggregateID:   "order-234",
		EventType:     "OrderStatusChanged",
		Payload:       []byte(`{"status":"failed"}`),
	})
	require.Error(t, err)
	require.NoError(t, sp.Close())
}

func TestOutboxPublisherNilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	require.Error(t, publisher.Publish(domain.OutboxMessage{ID: "outbox-3"}))
}

func TestRouteTopicByAggregate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		aggregateType string
		want          string
	}{
		{name: "payment events go to fulfillment topic", aggregateType: AggregatePayment, want: TopicFulfillmentEvents},
		{name: "order events go to order topic", aggregateType: "order", want: TopicOrderEvents},
		{name: "unknown aggregates default to order topic", aggregateType: "stock", want: TopicOrderEvents},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RouteTopic(tt.aggregateType))
		})
	}
}
