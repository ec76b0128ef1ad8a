package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxDeliveries   = 3
	defaultRedeliveryDelay = 500 * time.Millisecond
)

// EnvelopeHandler обрабатывает событие, извлечённое из Kafka-сообщения.
// Возврат ошибки запускает повторные попытки, после исчерпания которых
// сообщение уходит в DLQ.
type EnvelopeHandler func(ctx context.Context, envelope Envelope) error

// quarantineRecord — формат записи в DLQ-топике для сообщений,
// которые consumer не смог обработать. original_value хранит исходный
// envelope как строку, чтобы dlq-reprocess мог его восстановить.
type quarantineRecord struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	RetryCount        int    `json:"retry_count"`
}

// Consumer читает envelope-события из Kafka через consumer group
// и передаёт их в EnvelopeHandler с ретраями и карантином в DLQ.
type Consumer struct {
	group  sarama.ConsumerGroup
	topics []string
	handle EnvelopeHandler
	logger *log.Entry
	wg     sync.WaitGroup

	deadLetter      *Producer
	maxDeliveries   int
	redeliveryDelay time.Duration
}

// ConsumerOption настраивает Consumer.
type ConsumerOption func(*Consumer)

// WithDeadLetter включает карантин: исчерпавшие попытки сообщения
// публикуются в TopicDeadLetterQueue через переданный producer.
func WithDeadLetter(p *Producer) ConsumerOption {
	return func(c *Consumer) { c.deadLetter = p }
}

// WithMaxDeliveries ограничивает суммарное число доставок сообщения,
// включая попытки предыдущих сессий (заголовок x-retry-count).
func WithMaxDeliveries(n int) ConsumerOption {
	return func(c *Consumer) { c.maxDeliveries = n }
}

// WithRedeliveryDelay задаёт паузу между in-process попытками.
func WithRedeliveryDelay(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.redeliveryDelay = d }
}

// WithConsumerLogger подменяет логгер consumer-а.
func WithConsumerLogger(l *log.Entry) ConsumerOption {
	return func(c *Consumer) { c.logger = l }
}

func consumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true
	return config
}

// NewConsumer создает consumer group на указанные топики.
func NewConsumer(brokers []string, groupID string, topics []string, handle EnvelopeHandler, options ...ConsumerOption) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, consumerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group %q: %w", groupID, err)
	}

	c := &Consumer{
		group:           group,
		topics:          topics,
		handle:          handle,
		logger:          log.WithField("component", "kafka-consumer"),
		maxDeliveries:   defaultMaxDeliveries,
		redeliveryDelay: defaultRedeliveryDelay,
	}
	for _, option := range options {
		option(c)
	}
	if c.maxDeliveries < 1 {
		c.maxDeliveries = 1
	}
	return c, nil
}

// Start запускает циклы потребления и чтения ошибок группы.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(2)

	go func() {
		defer c.wg.Done()
		// Consume завершается при rebalance, поэтому перезапускается
		// до отмены контекста.
		for ctx.Err() == nil {
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("consumer session failed")
			}
		}
	}()

	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("consumer group error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// Stop закрывает группу и дожидается завершения горутин.
func (c *Consumer) Stop() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("close kafka consumer group: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim обрабатывает сообщения одной партиции. Сообщение
// маркируется обработанным и после успеха, и после ухода в DLQ;
// немаркированным остаётся только при отказе самого DLQ.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		entry := c.logger.WithFields(log.Fields{
			"topic":     message.Topic,
			"partition": message.Partition,
			"offset":    message.Offset,
		})
		entry.Debug("received message")

		if err := c.process(session.Context(), message); err != nil {
			entry.WithError(err).Error("message left unacknowledged")
			continue
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// process доводит сообщение до одного из терминальных исходов:
// успешная обработка, карантин в DLQ либо ошибка (сообщение будет
// доставлено заново).
func (c *Consumer) process(ctx context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := decodeEnvelope(message.Value)
	if err != nil {
		// Битый JSON не станет валидным при повторе, ретраи не нужны.
		c.logger.WithError(err).WithField("topic", message.Topic).Warn("poison message, skipping retries")
		return c.quarantine(message, err)
	}

	prior := priorDeliveries(message)
	budget := c.maxDeliveries - prior
	if budget < 1 {
		budget = 1
	}

	for attempt := 1; attempt <= budget; attempt++ {
		if err = c.handle(ctx, envelope); err == nil {
			return nil
		}
		c.logger.WithError(err).WithFields(log.Fields{
			"event_type": envelope.EventType,
			"delivery":   prior + attempt,
			"max":        c.maxDeliveries,
		}).Warn("envelope handling failed")

		if attempt < budget && c.redeliveryDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.redeliveryDelay):
			}
		}
	}

	return c.quarantine(message, err)
}

// quarantine публикует исходное сообщение в DLQ. Без настроенного
// DLQ-продюсера возвращает исходную ошибку обработки.
func (c *Consumer) quarantine(message *sarama.ConsumerMessage, cause error) error {
	if c.deadLetter == nil {
		return cause
	}

	record := quarantineRecord{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      cause.Error(),
		FailedAt:          time.Now().UTC().Format(time.RFC3339),
		RetryCount:        priorDeliveries(message),
	}
	if err := c.deadLetter.Send(TopicDeadLetterQueue, string(message.Key), record); err != nil {
		return fmt.Errorf("quarantine to dlq: %w", err)
	}

	c.logger.WithFields(log.Fields{
		"topic":  message.Topic,
		"offset": message.Offset,
	}).Info("message quarantined to dlq")
	return nil
}

// priorDeliveries читает число прошлых доставок из заголовка сообщения.
func priorDeliveries(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if string(header.Key) != HeaderRetryCount {
			continue
		}
		if count, err := strconv.Atoi(string(header.Value)); err == nil && count > 0 {
			return count
		}
	}
	return 0
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return envelope, nil
}
