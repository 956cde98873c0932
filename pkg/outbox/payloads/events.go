package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// OfferCreatedEvent signals a committed offer with its reserved equipment.
type OfferCreatedEvent struct {
	OfferID     uuid.UUID `json:"offer_id"`
	EventID     uuid.UUID `json:"event_id"`
	OfferNumber string    `json:"offer_number"`
	TotalCents  int       `json:"total_cents"`
	ItemCount   int       `json:"item_count"`
}

// OfferStatusChangedEvent is emitted on every lifecycle transition.
type OfferStatusChangedEvent struct {
	OfferID    uuid.UUID         `json:"offer_id"`
	EventID    uuid.UUID         `json:"event_id"`
	FromStatus enums.OfferStatus `json:"from_status"`
	ToStatus   enums.OfferStatus `json:"to_status"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// OfferDeletedEvent is emitted when an offer and its reservations are removed.
type OfferDeletedEvent struct {
	OfferID   uuid.UUID `json:"offer_id"`
	EventID   uuid.UUID `json:"event_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// LedgerSyncFailedEvent asks the worker to retry the reservation ledger sync.
type LedgerSyncFailedEvent struct {
	OfferID  uuid.UUID `json:"offer_id"`
	EventID  uuid.UUID `json:"event_id"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}
