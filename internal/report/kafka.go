package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/config/dto"
	"github.com/jittakal/satbqueue/internal/errors"
	"github.com/jittakal/satbqueue/pkg/report"
)

// EventType is the CloudEvent type of a published cycle report.
const EventType = "com.satbqueue.marking.cycle.v1"

// Ensure implementation satisfies interface at compile time.
var _ report.Reporter = (*KafkaReporter)(nil)

// KafkaReporter publishes each cycle report as a JSON CloudEvent keyed by
// the cycle ID.
type KafkaReporter struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	logger   *zap.Logger
	metrics  MetricsCollector
	mu       sync.RWMutex
	closed   bool
}

// NewKafkaReporter connects a sync producer to the configured brokers.
func NewKafkaReporter(cfg dto.KafkaReportConfig, logger *zap.Logger, metrics MetricsCollector) (*KafkaReporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	saramaConfig, err := newSaramaConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, &errors.ReportError{Sink: SinkKafka, Operation: "create", Err: err}
	}

	logger.Info("Kafka reporter created successfully",
		zap.Strings("brokers", cfg.BootstrapServers),
		zap.String("topic", cfg.Topic),
		zap.String("securityProtocol", cfg.SecurityProtocol),
	)

	return NewKafkaReporterWithProducer(producer, cfg, logger, metrics), nil
}

// NewKafkaReporterWithProducer wraps an existing producer.
func NewKafkaReporterWithProducer(
	producer sarama.SyncProducer,
	cfg dto.KafkaReportConfig,
	logger *zap.Logger,
	metrics MetricsCollector,
) *KafkaReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	source := cfg.Source
	if source == "" {
		source = "satbsim"
	}
	return &KafkaReporter{
		producer: producer,
		topic:    cfg.Topic,
		source:   source,
		logger:   logger,
		metrics:  metrics,
	}
}

// newSaramaConfig builds the producer configuration.
func newSaramaConfig(cfg dto.KafkaReportConfig, logger *zap.Logger) (*sarama.Config, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	saramaConfig.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	saramaConfig.Producer.Compression = parseCompressionType(cfg.Compression)
	saramaConfig.Producer.Idempotent = cfg.Idempotent
	saramaConfig.Producer.Retry.Max = cfg.RetryMax
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond

	// Idempotent producer requires Net.MaxOpenRequests to be 1
	if cfg.Idempotent {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	if err := configureSecurity(saramaConfig, cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	return saramaConfig, nil
}

// NewCycleEvent wraps r in a CloudEvent.
func NewCycleEvent(source string, r report.CycleReport) (cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetID(r.ID)
	event.SetSource(source)
	event.SetType(EventType)
	event.SetSubject(string(r.Outcome))
	event.SetTime(r.FinishedAt)
	if err := event.SetData(cloudevents.ApplicationJSON, r); err != nil {
		return event, fmt.Errorf("failed to set event data: %w", err)
	}
	return event, nil
}

// Report publishes r synchronously.
func (k *KafkaReporter) Report(ctx context.Context, r report.CycleReport) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return &errors.ReportError{Sink: SinkKafka, Operation: "send", Err: errors.ErrReporterClosed}
	}

	event, err := NewCycleEvent(k.source, r)
	if err != nil {
		k.recordFailure()
		return &errors.ReportError{Sink: SinkKafka, Operation: "encode", Err: err}
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		k.recordFailure()
		return &errors.ReportError{Sink: SinkKafka, Operation: "encode", Err: err}
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.ID()),
		Value: sarama.ByteEncoder(eventBytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("ce_specversion"), Value: []byte(event.SpecVersion())},
			{Key: []byte("ce_type"), Value: []byte(event.Type())},
			{Key: []byte("ce_source"), Value: []byte(event.Source())},
			{Key: []byte("ce_id"), Value: []byte(event.ID())},
		},
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		k.recordFailure()
		return &errors.ReportError{Sink: SinkKafka, Operation: "send", Err: err}
	}

	k.logger.Debug("Cycle report published",
		zap.String("topic", k.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("cycle_id", r.ID),
		zap.String("outcome", string(r.Outcome)),
	)

	if k.metrics != nil {
		k.metrics.IncReportsPublished(SinkKafka, StatusSuccess)
	}
	return nil
}

// Close closes the producer.
func (k *KafkaReporter) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true

	k.logger.Info("Closing Kafka reporter")
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}

func (k *KafkaReporter) recordFailure() {
	if k.metrics != nil {
		k.metrics.IncReportsPublished(SinkKafka, StatusFailure)
	}
}
