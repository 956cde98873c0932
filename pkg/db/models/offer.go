package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// Offer is the persisted offer header. TotalCents is recomputed from the line
// items at commit time; it is never accepted from the caller.
type Offer struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID             uuid.UUID           `gorm:"column:event_id;type:uuid;not null"`
	ClientType          enums.ClientType    `gorm:"column:client_type;type:client_type;not null"`
	OrganizationID      *uuid.UUID          `gorm:"column:organization_id;type:uuid"`
	ContactID           *uuid.UUID          `gorm:"column:contact_id;type:uuid"`
	OfferNumber         string              `gorm:"column:offer_number;not null;uniqueIndex:ux_offers_offer_number"`
	Status              enums.OfferStatus   `gorm:"column:status;type:offer_status;not null;default:'draft'"`
	TotalCents          int                 `gorm:"column:total_cents;not null;default:0"`
	ValidUntil          *time.Time          `gorm:"column:valid_until"`
	Notes               *string             `gorm:"column:notes"`
	CreatedByEmployeeID string              `gorm:"column:created_by_employee_id;not null"`
	LedgerSyncedAt      *time.Time          `gorm:"column:ledger_synced_at"`
	Items               []OfferItem         `gorm:"foreignKey:OfferID"`
	Substitutions       []OfferSubstitution `gorm:"foreignKey:OfferID"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
