package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// OfferSubstitution records that during the target window part of the demand
// for FromItemID is served by ToItemID instead. Both sides reference
// equipment_items.
type OfferSubstitution struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OfferID    uuid.UUID               `gorm:"column:offer_id;type:uuid;not null"`
	FromType   enums.EquipmentRefType  `gorm:"column:from_type;type:equipment_ref_type;not null"`
	FromItemID uuid.UUID               `gorm:"column:from_item_id;type:uuid;not null"`
	ToType     enums.EquipmentRefType  `gorm:"column:to_type;type:equipment_ref_type;not null"`
	ToItemID   uuid.UUID               `gorm:"column:to_item_id;type:uuid;not null"`
	Qty        int                     `gorm:"column:qty;not null"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
}
