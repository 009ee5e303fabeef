package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"boilertemp/internal/readings/types"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes each reading as a JSON message keyed by its timestamp.
type Kafka struct {
	w      messageWriter
	logger *slog.Logger
}

func NewKafka(brokers []string, topic string, logger *slog.Logger) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			Async:                  false,
		},
		logger: logger.With(slog.String("component", "kafka-publisher")),
	}
}

func (k *Kafka) Publish(ctx context.Context, r types.Reading) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(r.Timestamp.UTC().Format(time.RFC3339Nano)),
		Value: value,
		Time:  r.Timestamp,
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	k.logger.Debug("published reading", "key", string(msg.Key))
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }
