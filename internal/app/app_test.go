package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/health"
)

func TestRunFailsFastOnUnreachableKafka(t *testing.T) {
	cfg := DefaultConfig()
	// Порт 1 закрыт: producer не соберётся, сервис обязан не стартовать.
	cfg.KafkaBrokers = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := Run(ctx, cfg)

	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "kafka")
}

func TestBuildHealthHandlerTracksOutboxBacklog(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), log.WithField("component", "test"))
	require.NoError(t, err)
	defer deps.Close()

	_, err = deps.Outbox.Enqueue(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "payment",
		AggregateID:   "payment-1",
		EventType:     domain.EventTypePaymentSucceeded,
		Payload:       []byte(`{"payment_id":"payment-1","order_id":"order-1"}`),
	})
	require.NoError(t, err)

	handler := buildHealthHandler(deps)
	report := handler.Report(context.Background())

	assert.Equal(t, health.StateUp, report.State)
	require.NotNil(t, report.Outbox)
	assert.Equal(t, 1, report.Outbox.Pending)
	// In-memory режим: внешних зависимостей нет, проб тоже нет.
	assert.Empty(t, report.Dependencies)
}
