package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// EquipmentReservation is a ledger row binding a quantity of an item to an
// event window on behalf of an offer. Rows are deleted when an offer is
// declined or removed.
type EquipmentReservation struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OfferID   uuid.UUID              `gorm:"column:offer_id;type:uuid;not null;index:ix_equipment_reservations_offer"`
	EventID   uuid.UUID              `gorm:"column:event_id;type:uuid;not null;index:ix_equipment_reservations_event"`
	ItemType  enums.EquipmentRefType `gorm:"column:item_type;type:equipment_ref_type;not null"`
	ItemID    uuid.UUID              `gorm:"column:item_id;type:uuid;not null;index:ix_equipment_reservations_item"`
	Qty       int                    `gorm:"column:qty;not null"`
	StartsAt  time.Time              `gorm:"column:starts_at;not null"`
	EndsAt    time.Time              `gorm:"column:ends_at;not null"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
