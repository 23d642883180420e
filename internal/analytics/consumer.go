package analytics

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/vrumi/vrumi-backend/pkg/enums"
	"github.com/vrumi/vrumi-backend/pkg/logger"
	"github.com/vrumi/vrumi-backend/pkg/outbox"
	"github.com/vrumi/vrumi-backend/pkg/outbox/idempotency"
)

const revenueConsumerName = "analytics-revenue"

type rowWriter interface {
	Insert(ctx context.Context, row RevenueEventRow) error
}

// Consumer streams revenue-relevant domain events into BigQuery, skipping
// redeliveries through the Redis idempotency manager.
type Consumer struct {
	writer       rowWriter
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

func NewConsumer(writer rowWriter, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if writer == nil {
		return nil, fmt.Errorf("revenue writer required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("analytics subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		writer:       writer,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run receives messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handle(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// handle returns true when the message should be acked.
func (c *Consumer) handle(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	eventType := enums.OutboxEventType(attrs["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": string(eventType),
	})

	if !Supports(eventType) {
		c.logg.Debug(logCtx, "analytics.skip_event")
		return true
	}

	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		c.logg.Error(logCtx, "analytics.decode_envelope", err)
		return true
	}
	logCtx = c.logg.WithEventID(logCtx, envelope.EventID)

	row, err := BuildRow(eventType, envelope)
	if err != nil {
		// unmappable payloads are acked
		c.logg.Error(logCtx, "analytics.build_row", err)
		return true
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, revenueConsumerName, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "analytics.idempotency_check", err)
		return false
	}
	if already {
		c.logg.Info(logCtx, "analytics.already_processed")
		return true
	}

	if err := c.writer.Insert(ctx, row); err != nil {
		c.logg.Error(logCtx, "analytics.insert_failed", err)
		if releaseErr := c.idempotency.Release(ctx, revenueConsumerName, envelope.EventID); releaseErr != nil {
			c.logg.Error(logCtx, "analytics.idempotency_release", releaseErr)
		}
		return false
	}

	c.logg.Info(logCtx, "analytics.revenue_row_inserted")
	return true
}
