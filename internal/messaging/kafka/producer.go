package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer синхронно публикует события конвейера заказов в Kafka.
type Producer struct {
	sp     sarama.SyncProducer
	logger *log.Entry
}

// NewProducer создаёт producer с acks=all и включённой идемпотентностью.
// Outbox переотправляет события, поэтому дубли на стороне брокера недопустимы.
func NewProducer(brokers []string) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("create sync producer: %w", err)
	}

	return &Producer{
		sp:     sp,
		logger: log.WithField("component", "kafka-producer"),
	}, nil
}

func producerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	return cfg
}

// Send сериализует событие в JSON и публикует его с ключом партиционирования key.
func (p *Producer) Send(topic, key string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for topic %s: %w", topic, err)
	}
	return p.SendRaw(topic, key, body)
}

// SendRaw публикует уже сериализованный payload.
func (p *Producer) SendRaw(topic, key string, body []byte) error {
	partition, offset, err := p.sp.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(body),
		Timestamp: time.Now(),
	})
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", topic, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("event published")
	return nil
}

// Close закрывает соединение с брокером.
func (p *Producer) Close() error {
	if err := p.sp.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
