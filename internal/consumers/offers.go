package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/showrunr/eventcrm-backend/internal/analytics"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
	"github.com/showrunr/eventcrm-backend/pkg/outbox"
	"github.com/showrunr/eventcrm-backend/pkg/outbox/payloads"
	"github.com/showrunr/eventcrm-backend/pkg/outbox/registry"
)

// ConsumerName scopes the idempotency keys for this worker.
const ConsumerName = "offer-worker"

type ledgerSyncer interface {
	SyncOfferReservations(ctx context.Context, offerID uuid.UUID) error
}

type analyticsWriter interface {
	WriteOfferEvent(ctx context.Context, record analytics.Record) error
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// OfferConsumer drains the offer events subscription. Ledger sync failures
// are retried against the reservation ledger; every other lifecycle event is
// streamed into analytics.
type OfferConsumer struct {
	subscription *pubsub.Subscriber
	syncer       ledgerSyncer
	writer       analyticsWriter
	guard        idempotencyGuard
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewOfferConsumer constructs a consumer bound to the subscription.
func NewOfferConsumer(subscription *pubsub.Subscriber, syncer ledgerSyncer, writer analyticsWriter, guard idempotencyGuard, logg *logger.Logger) (*OfferConsumer, error) {
	if subscription == nil {
		return nil, errors.New("offer subscription is required")
	}
	if syncer == nil {
		return nil, errors.New("ledger syncer is required")
	}
	if writer == nil {
		return nil, errors.New("analytics writer is required")
	}
	if guard == nil {
		return nil, errors.New("idempotency guard is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventOfferCreated, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded payloads.OfferCreatedEvent
		return &decoded, json.Unmarshal(payload, &decoded)
	})
	decoders.Register(enums.EventOfferStatusChanged, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded payloads.OfferStatusChangedEvent
		return &decoded, json.Unmarshal(payload, &decoded)
	})
	decoders.Register(enums.EventOfferDeleted, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded payloads.OfferDeletedEvent
		return &decoded, json.Unmarshal(payload, &decoded)
	})
	decoders.Register(enums.EventLedgerSyncFailed, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded payloads.LedgerSyncFailedEvent
		return &decoded, json.Unmarshal(payload, &decoded)
	})

	return &OfferConsumer{
		subscription: subscription,
		syncer:       syncer,
		writer:       writer,
		guard:        guard,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription
// errors.
func (c *OfferConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *OfferConsumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	messageID := msg.ID

	eventType, err := enums.ParseOutboxEventType(msg.Attributes["event_type"])
	if err != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{"message_id": messageID, "event_type": msg.Attributes["event_type"]})
		c.logg.Warn(logCtx, "skipping unknown event type")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{"message_id": messageID, "event_type": eventType})
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{"message_id": messageID, "event_type": eventType})
		c.logg.Error(logCtx, "envelope carries invalid event id", err)
		return processResult{ack: true}
	}

	fields := map[string]any{
		"message_id": messageID,
		"event_id":   envelope.EventID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	alreadyProcessed, err := c.guard.CheckAndMarkProcessed(ctx, ConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if alreadyProcessed {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	if err := c.handle(logCtx, envelope, eventType, decoded); err != nil {
		// Release the idempotency mark so redelivery retries the work.
		combined := multierr.Append(err, c.guard.Delete(ctx, ConsumerName, eventID))
		c.logg.Error(logCtx, "event handling failed, requeueing", combined)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "offer event processed")
	return processResult{ack: true}
}

func (c *OfferConsumer) handle(ctx context.Context, envelope outbox.PayloadEnvelope, eventType enums.OutboxEventType, decoded interface{}) error {
	actorID := ""
	if envelope.Actor != nil {
		actorID = envelope.Actor.EmployeeID
	}

	switch payload := decoded.(type) {
	case *payloads.LedgerSyncFailedEvent:
		return c.syncer.SyncOfferReservations(ctx, payload.OfferID)

	case *payloads.OfferCreatedEvent:
		return c.writer.WriteOfferEvent(ctx, analytics.Record{
			EventID:       envelope.EventID,
			EventType:     eventType,
			OfferID:       payload.OfferID,
			ProducedEvent: payload.EventID,
			OfferNumber:   payload.OfferNumber,
			TotalCents:    payload.TotalCents,
			ActorID:       actorID,
			OccurredAt:    occurredAt(envelope),
		})

	case *payloads.OfferStatusChangedEvent:
		return c.writer.WriteOfferEvent(ctx, analytics.Record{
			EventID:       envelope.EventID,
			EventType:     eventType,
			OfferID:       payload.OfferID,
			ProducedEvent: payload.EventID,
			ActorID:       actorID,
			OccurredAt:    occurredAt(envelope),
		})

	case *payloads.OfferDeletedEvent:
		return c.writer.WriteOfferEvent(ctx, analytics.Record{
			EventID:       envelope.EventID,
			EventType:     eventType,
			OfferID:       payload.OfferID,
			ProducedEvent: payload.EventID,
			ActorID:       actorID,
			OccurredAt:    occurredAt(envelope),
		})
	}

	return nil
}

func occurredAt(envelope outbox.PayloadEnvelope) time.Time {
	if envelope.OccurredAt.IsZero() {
		return time.Now().UTC()
	}
	return envelope.OccurredAt
}
