package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOffer       OutboxAggregateType = "offer"
	AggregateEvent       OutboxAggregateType = "event"
	AggregateReservation OutboxAggregateType = "equipment_reservation"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOffer,
	AggregateEvent,
	AggregateReservation,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOfferCreated       OutboxEventType = "offer_created"
	EventOfferStatusChanged OutboxEventType = "offer_status_changed"
	EventOfferDeleted       OutboxEventType = "offer_deleted"
	EventLedgerSyncFailed   OutboxEventType = "ledger_sync_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOfferCreated,
	EventOfferStatusChanged,
	EventOfferDeleted,
	EventLedgerSyncFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason maps to the outbox_dlq_error_reason enum in Postgres.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
}

// IsValid reports whether the value matches the canonical error reason enum.
func (r OutboxDLQErrorReason) IsValid() bool {
	for _, candidate := range validOutboxDLQErrorReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
