package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// EquipmentItem is a physical stock position. TotalQty is the owned quantity;
// availability for a window is TotalQty minus overlapping reservations.
type EquipmentItem struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string                  `gorm:"column:name;not null"`
	Category  enums.EquipmentCategory `gorm:"column:category;type:equipment_category;not null;index:ix_equipment_items_category"`
	TotalQty  int                     `gorm:"column:total_qty;not null"`
	Active    bool                    `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// EquipmentKit groups items that are deployed together. A kit has no stock of
// its own; its availability is the floor of its members' availability.
type EquipmentKit struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string             `gorm:"column:name;not null"`
	Active    bool               `gorm:"column:active;not null;default:true"`
	Items     []EquipmentKitItem `gorm:"foreignKey:KitID"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

type EquipmentKitItem struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	KitID  uuid.UUID `gorm:"column:kit_id;type:uuid;not null;index:ix_equipment_kit_items_kit"`
	ItemID uuid.UUID `gorm:"column:item_id;type:uuid;not null"`
	Qty    int       `gorm:"column:qty;not null"`
}
