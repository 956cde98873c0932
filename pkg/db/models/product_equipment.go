package models

import (
	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// ProductEquipment is one row of a product's equipment bill. QtyPerUnit is
// multiplied by the offer line quantity when demand is computed.
type ProductEquipment struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID              `gorm:"column:product_id;type:uuid;not null;index:ix_product_equipment_product"`
	ItemType   enums.EquipmentRefType `gorm:"column:item_type;type:equipment_ref_type;not null"`
	ItemID     uuid.UUID              `gorm:"column:item_id;type:uuid;not null"`
	QtyPerUnit int                    `gorm:"column:qty_per_unit;not null"`
}

func (ProductEquipment) TableName() string { return "product_equipment" }
