package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"speech-transcription-service/internal/observability/logging"
)

// KafkaConfig holds the optional Kafka audit sink configuration.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// KafkaSink mirrors the audit trail onto a Kafka topic so compliance
// tooling can consume it centrally. When disabled it runs in log-only mode
// and every append is a no-op beyond a debug line.
type KafkaSink struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
}

// NewKafkaSink creates the Kafka audit sink.
func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	log := logging.WithComponent("audit")

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka audit sink disabled, using log-only mode")
		return &KafkaSink{topic: cfg.Topic, enabled: false}
	}

	// Longer dial timeouts for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka audit sink initialized")

	return &KafkaSink{writer: writer, topic: cfg.Topic, enabled: true}
}

// Name identifies the sink in metrics and logs.
func (s *KafkaSink) Name() string {
	return "kafka"
}

// Append publishes one audit event, keyed by request id so all events of a
// request land on the same partition in order.
func (s *KafkaSink) Append(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if !s.enabled {
		log := logging.WithComponent("audit")
		log.Debug().
			Str("topic", s.topic).
			RawJSON("payload", payload).
			Msg("Kafka disabled, audit event not published")
		return nil
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RequestID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(ev.EventType)},
		},
	})
}

// Close closes the Kafka writer.
func (s *KafkaSink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
