package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/platerank/internal/config"
	"github.com/temcen/platerank/internal/validation"
	"github.com/temcen/platerank/pkg/models"
)

const (
	OrderPlacedEventType = "order.placed"
	readRetryDelay       = time.Second
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// UserInvalidator drops cached recommendation state for a user.
type UserInvalidator interface {
	InvalidateUser(userID uuid.UUID)
}

// OrderEventConsumer invalidates a user's cached recommendations and
// similarities whenever that user places an order. Malformed events are
// logged and committed; there are no retries.
type OrderEventConsumer struct {
	reader      MessageReader
	validator   *validation.SchemaValidator
	invalidator UserInvalidator
	logger      *logrus.Logger
}

func NewOrderEventConsumer(
	cfg *config.KafkaConfig,
	validator *validation.SchemaValidator,
	invalidator UserInvalidator,
	logger *logrus.Logger,
) *OrderEventConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topics.OrderEvents,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       1e6, // 1MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
	return newOrderEventConsumer(reader, validator, invalidator, logger)
}

func newOrderEventConsumer(
	reader MessageReader,
	validator *validation.SchemaValidator,
	invalidator UserInvalidator,
	logger *logrus.Logger,
) *OrderEventConsumer {
	return &OrderEventConsumer{
		reader:      reader,
		validator:   validator,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *OrderEventConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.WithError(err).Error("Failed to read order event from Kafka")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readRetryDelay):
			}
			continue
		}

		if err := c.handle(msg); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"topic":     msg.Topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Warn("Skipping order event")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.WithError(err).Warn("Failed to commit order event offset")
		}
	}
}

func (c *OrderEventConsumer) handle(msg kafka.Message) error {
	if err := c.validator.ValidateOrderEvent(msg.Value).Err(); err != nil {
		return fmt.Errorf("invalid order event: %w", err)
	}

	var event models.OrderPlacedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	c.invalidator.InvalidateUser(event.UserID)

	c.logger.WithFields(logrus.Fields{
		"user_id":  event.UserID,
		"order_id": event.OrderID,
	}).Debug("Order event processed")
	return nil
}

func (c *OrderEventConsumer) Close() error {
	return c.reader.Close()
}
