package kafka

import (
	"context"
	"encoding/json"

	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader messageReader
}

type EventHandler func(ctx context.Context, event models.Event) error

func NewConsumer(brokers []string, topic string, groupID string) *Consumer {
	return &Consumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})}
}

// Consume blocks until ctx is done. Undecodable messages are committed and
// dropped; messages whose handler fails stay uncommitted for redelivery.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			continue
		}
		c.handle(ctx, message, handler)
	}
}

func (c *Consumer) handle(ctx context.Context, message kafka.Message, handler EventHandler) {
	log := logger.Log.WithFields(map[string]interface{}{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
	})

	var event models.Event
	if err := json.Unmarshal(message.Value, &event); err != nil {
		log.WithError(err).Warn("Dropping undecodable event")
		c.commit(ctx, message)
		return
	}

	if err := handler(ctx, event); err != nil {
		log.WithError(err).WithField("event_id", event.ID).Error("Failed to process event")
		return
	}
	c.commit(ctx, message)
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if err := c.reader.CommitMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithField("offset", message.Offset).Error("Failed to commit message")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
