package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// OfferItem captures one offer line. ProductID is nil for ad-hoc lines, which
// instead carry their own equipment references or a subcontractor flag.
type OfferItem struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OfferID            uuid.UUID       `gorm:"column:offer_id;type:uuid;not null"`
	ProductID          *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	Name               string          `gorm:"column:name;not null"`
	Description        *string         `gorm:"column:description"`
	Qty                int             `gorm:"column:qty;not null"`
	Unit               enums.OfferUnit `gorm:"column:unit;type:offer_unit;not null"`
	UnitPriceCents     int             `gorm:"column:unit_price_cents;not null"`
	DiscountPercent    float64         `gorm:"column:discount_percent;not null;default:0"`
	SubtotalCents      int             `gorm:"column:subtotal_cents;not null"`
	DisplayOrder       int             `gorm:"column:display_order;not null"`
	EquipmentIDs       UUIDSlice       `gorm:"column:equipment_ids;type:jsonb;serializer:json"`
	SubcontractorID    *uuid.UUID      `gorm:"column:subcontractor_id;type:uuid"`
	NeedsSubcontractor bool            `gorm:"column:needs_subcontractor;not null;default:false"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// UUIDSlice stores equipment references for ad-hoc lines as a JSON array.
type UUIDSlice []uuid.UUID
