package events

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"

	"github.com/spec-kit/peer-review-service/internal/config"
)

// Publisher forwards events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// messageWriter is the subset of kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by subject id.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher builds a publisher for the configured brokers. When no
// broker is configured the returned publisher only logs.
func NewKafkaPublisher(cfg config.NotificationConfig, logger *zap.Logger) *KafkaPublisher {
	if !cfg.Enabled() {
		logger.Warn("NOTIFY_KAFKA_BROKERS not provided; notifications will only be logged")
		return &KafkaPublisher{logger: logger}
	}

	return &KafkaPublisher{writer: newKafkaWriter(cfg), logger: logger}
}

// newKafkaWriter builds a writer that flushes every message immediately;
// publishes run inline on the request path.
func newKafkaWriter(cfg config.NotificationConfig) *kafka.Writer {
	transport := &kafka.Transport{}
	if cfg.KafkaUsername != "" {
		transport.SASL = plain.Mechanism{
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
		}
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Transport:    transport,
		BatchSize:    1,
		BatchTimeout: 5 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
}

// Publish serializes the event and writes it to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.writer == nil {
		if p != nil {
			p.logger.Info("kafka disabled; skip publish",
				zap.String("event_type", string(event.Type)),
				zap.String("subject_id", event.SubjectID))
		}
		return nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SubjectID),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
