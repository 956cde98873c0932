package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/config"
	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	"github.com/showrunr/eventcrm-backend/pkg/outbox"
	"github.com/showrunr/eventcrm-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	offerID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.OfferCreatedEvent{
		OfferID:     offerID,
		EventID:     uuid.New(),
		OfferNumber: "2026-0001",
		TotalCents:  45000,
		ItemCount:   3,
	})

	event := models.OutboxEvent{
		EventType:     enums.EventOfferCreated,
		AggregateType: enums.AggregateOffer,
		AggregateID:   offerID,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "offer-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	if resolved.Descriptor.EventType != enums.EventOfferCreated {
		t.Fatalf("unexpected event type %s", resolved.Descriptor.EventType)
	}
	payload, ok := resolved.Payload.(*payloads.OfferCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OfferID != offerID || payload.OfferNumber != "2026-0001" {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
	if resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope missing occurred_at")
	}
}

func TestEventRegistryResolveUnknownEvent(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.OutboxEventType("offer_archived"),
		AggregateType: enums.AggregateOffer,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte(`{"reason":"none"}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %T", err)
	}
}

func TestEventRegistryResolveAggregateMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventOfferCreated,
		AggregateType: enums.AggregateEvent,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte(`{}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func TestEventRegistryResolveMissingAggregateID(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventOfferCreated,
		AggregateType: enums.AggregateOffer,
		AggregateID:   uuid.Nil,
		Payload:       mustEnvelope(t, []byte(`{}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func TestEventRegistryResolveNullPayload(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventOfferCreated,
		AggregateType: enums.AggregateOffer,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte("null")),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	cfg := config.PubSubConfig{
		OfferTopic:        "offer-topic",
		OfferSubscription: "offer-subscription",
	}
	reg, err := NewEventRegistry(cfg)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
