package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/logger"
	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
	log    logger.ILogger
}

func NewConsumer(brokers []string, groupID, topic string, log logger.ILogger) *Consumer {
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		log: log,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, kafka.Message) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
}

// ConsumePhases decodes phase events and hands them to handler. Messages
// that do not decode are logged and skipped.
func (c *Consumer) ConsumePhases(ctx context.Context, handler func(context.Context, domain.PhaseEvent) error) error {
	return c.Consume(ctx, func(ctx context.Context, msg kafka.Message) error {
		event, err := DecodePhaseEvent(msg.Value)
		if err != nil {
			c.log.Warning("skipping undecodable phase event",
				logger.Int64("offset", msg.Offset),
				logger.Int("partition", msg.Partition),
				logger.Error(err),
			)
			return nil
		}
		return handler(ctx, event)
	})
}

func DecodePhaseEvent(data []byte) (domain.PhaseEvent, error) {
	var event domain.PhaseEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.PhaseEvent{}, fmt.Errorf("decoding phase event: %w", err)
	}
	if event.BookingID <= 0 || event.Phase == "" {
		return domain.PhaseEvent{}, fmt.Errorf("phase event missing booking_id or phase")
	}
	return event, nil
}
