package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/mute-zones-service/internal/config"
	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

// Writer produces decision records to a Kafka topic.
// It implements pipeline.DecisionSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured decision topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaDecisionTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and writes decisions in a single WriteMessages call.
// Messages are keyed by device so one device's decisions stay ordered.
func (w *Writer) Publish(ctx context.Context, decisions []domain.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(decisions))
	for i := range decisions {
		msg, err := serializeToMessage(decisions[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Decision into a Kafka message.
func serializeToMessage(d domain.Decision) (kafkago.Message, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize decision: %w", err)
	}
	key := d.Device
	if key == "" {
		key = d.ID
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "decision_id", Value: []byte(d.ID)},
			{Key: "outcome", Value: []byte(d.Outcome.Kind.String())},
			{Key: "evaluated_at", Value: []byte(d.EvaluatedAt.Format(time.RFC3339))},
		},
	}, nil
}
