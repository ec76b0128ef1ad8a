// Утилита переигрывания shop.dlq: разбирает dead-letter записи конвейера,
// проверяет события оплаты и возвращает валидные envelope в рабочие топики.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

const (
	defaultScanLimit   = 100
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers     []string
	dlqTopic    string
	forceTopic  string
	limit       int
	execute     bool
	idleTimeout time.Duration
}

// consumerDeadLetter — запись, которую кладёт в DLQ kafka.Consumer.
// original_value содержит исходный envelope as-is.
type consumerDeadLetter struct {
	OriginalTopic string `json:"original_topic"`
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
	ErrorMessage  string `json:"error_message"`
}

// outboxDeadLetter — payload envelope, который кладёт в DLQ outbox-воркер.
type outboxDeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
}

type offsetReader interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionStream interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error)
	Close() error
}

type replaySink interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaSource struct {
	consumer sarama.Consumer
}

func (s saramaSource) ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error) {
	pc, err := s.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (s saramaSource) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}

// connectKafka подменяется в тестах.
var connectKafka = func(cfg config) (offsetReader, partitionSource, replaySink, error) {
	clientConfig := sarama.NewConfig()
	clientConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, clientConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	if !cfg.execute {
		return client, saramaSource{consumer: rawConsumer}, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		_ = rawConsumer.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return client, saramaSource{consumer: rawConsumer}, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "dlq replay failed: %v\n", err)
		os.Exit(1)
	}
}

func readConfig(args []string) (config, error) {
	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)

	var (
		brokersRaw string
		cfg        config
	)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	fs.StringVar(&cfg.dlqTopic, "dlq-topic", kafka.TopicDeadLetterQueue, "DLQ topic to scan")
	fs.StringVar(&cfg.forceTopic, "target-topic", "", "override target topic (default: route by aggregate type)")
	fs.IntVar(&cfg.limit, "limit", defaultScanLimit, "max number of DLQ records to scan")
	fs.BoolVar(&cfg.execute, "execute", false, "publish replays; default is dry-run")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop scanning a partition after this idle period")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}
	for _, chunk := range strings.Split(brokersRaw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			cfg.brokers = append(cfg.brokers, broker)
		}
	}

	switch {
	case len(cfg.brokers) == 0:
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	case strings.TrimSpace(cfg.dlqTopic) == "":
		return config{}, fmt.Errorf("dlq-topic is required")
	case cfg.limit <= 0:
		return config{}, fmt.Errorf("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, fmt.Errorf("idle-timeout must be > 0")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config) error {
	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"dlq_topic": cfg.dlqTopic,
		"limit":     cfg.limit,
		"mode":      mode,
	}).Info("starting dlq replay")

	reader, source, sink, err := connectKafka(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if sink != nil {
			_ = sink.Close()
		}
		if source != nil {
			_ = source.Close()
		}
		if reader != nil {
			_ = reader.Close()
		}
	}()

	report, err := scanDLQ(ctx, cfg, reader, source, sink)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"mode":      mode,
		"scanned":   report.scanned,
		"replayed":  report.replayed,
		"malformed": report.malformed,
	}).Info("dlq replay finished")
	return nil
}

type replayReport struct {
	scanned   int
	replayed  int
	malformed int
}

func scanDLQ(ctx context.Context, cfg config, reader offsetReader, source partitionSource, sink replaySink) (replayReport, error) {
	var report replayReport

	if reader == nil || source == nil {
		return report, fmt.Errorf("kafka client and consumer are required")
	}
	if cfg.execute && sink == nil {
		return report, fmt.Errorf("producer is required in execute mode")
	}

	partitions, err := reader.Partitions(cfg.dlqTopic)
	if err != nil {
		return report, fmt.Errorf("get partitions for topic %s: %w", cfg.dlqTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if report.scanned >= cfg.limit {
			break
		}
		if err := scanPartition(ctx, cfg, reader, source, sink, partition, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func scanPartition(
	ctx context.Context,
	cfg config,
	reader offsetReader,
	source partitionSource,
	sink replaySink,
	partition int32,
	report *replayReport,
) error {
	oldest, err := reader.GetOffset(cfg.dlqTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := reader.GetOffset(cfg.dlqTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return nil
	}

	stream, err := source.ConsumePartition(cfg.dlqTopic, partition, oldest)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = stream.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for report.scanned < cfg.limit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-stream.Errors():
			if err != nil {
				return fmt.Errorf("partition %d consumer error: %w", partition, err)
			}
		case msg, ok := <-stream.Messages():
			if !ok || msg == nil {
				return nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(cfg.idleTimeout)

			if msg.Offset >= newest {
				return nil
			}

			report.scanned++
			handleRecord(cfg, sink, msg, report)

			if msg.Offset+1 >= newest {
				return nil
			}
		case <-idle.C:
			return nil
		}
	}
	return nil
}

func handleRecord(cfg config, sink replaySink, msg *sarama.ConsumerMessage, report *replayReport) {
	envelope, err := decodeDeadLetter(msg.Value)
	if err == nil {
		err = validateEnvelope(envelope)
	}
	if err != nil {
		report.malformed++
		log.WithError(err).WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("skip malformed dlq record")
		return
	}

	topic := cfg.forceTopic
	if topic == "" {
		topic = kafka.RouteTopic(envelope.AggregateType)
	}

	if !cfg.execute {
		log.WithFields(log.Fields{
			"partition":    msg.Partition,
			"offset":       msg.Offset,
			"event_type":   envelope.EventType,
			"aggregate_id": envelope.AggregateID,
			"target_topic": topic,
		}).Info("dlq replay candidate")
		report.replayed++
		return
	}

	if err := publish(sink, topic, envelope); err != nil {
		report.malformed++
		log.WithError(err).WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Error("failed to republish dlq record")
		return
	}
	report.replayed++
}

// decodeDeadLetter восстанавливает исходный envelope из любой из двух форм
// DLQ-записей: consumer-записи с original_value и outbox-записи.
func decodeDeadLetter(value []byte) (kafka.Envelope, error) {
	var fromConsumer consumerDeadLetter
	if err := json.Unmarshal(value, &fromConsumer); err == nil && fromConsumer.OriginalValue != "" {
		var envelope kafka.Envelope
		if err := json.Unmarshal([]byte(fromConsumer.OriginalValue), &envelope); err != nil {
			return kafka.Envelope{}, fmt.Errorf("decode original envelope: %w", err)
		}
		return envelope, nil
	}

	var envelope kafka.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return kafka.Envelope{}, fmt.Errorf("decode dlq record: %w", err)
	}

	var fromOutbox outboxDeadLetter
	if err := json.Unmarshal(envelope.Payload, &fromOutbox); err != nil || len(fromOutbox.Payload) == 0 {
		return kafka.Envelope{}, fmt.Errorf("dlq record does not contain original event payload")
	}

	return kafka.Envelope{
		ID:            firstNonEmpty(fromOutbox.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(fromOutbox.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(fromOutbox.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(fromOutbox.EventType, envelope.EventType),
		Payload:       fromOutbox.Payload,
	}, nil
}

// validateEnvelope не даёт вернуть в рабочий топик событие, которое consumer
// заведомо не сможет обработать.
func validateEnvelope(envelope kafka.Envelope) error {
	switch {
	case envelope.ID == "":
		return fmt.Errorf("envelope id is empty")
	case envelope.EventType == "":
		return fmt.Errorf("envelope event type is empty")
	case envelope.AggregateID == "":
		return fmt.Errorf("envelope aggregate id is empty")
	}

	if envelope.EventType != domain.EventTypePaymentSucceeded {
		return nil
	}

	var event domain.PaymentSucceededEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return fmt.Errorf("decode payment succeeded payload: %w", err)
	}
	if event.PaymentID == "" || event.OrderID == "" {
		return fmt.Errorf("payment succeeded payload misses payment_id or order_id")
	}
	return nil
}

func publish(sink replaySink, topic string, envelope kafka.Envelope) error {
	envelope.PublishedAt = time.Now().UTC()
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode replay envelope: %w", err)
	}

	key := envelope.AggregateID
	if key == "" {
		key = envelope.ID
	}

	_, _, err = sink.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(body),
		Timestamp: time.Now().UTC(),
	})
	return err
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
