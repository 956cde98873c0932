package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// Product is a sellable catalog entry. Its equipment bill is modelled by
// ProductEquipment rows which reference either a single item or a kit.
type Product struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string          `gorm:"column:name;not null"`
	Description       *string         `gorm:"column:description"`
	Unit              enums.OfferUnit `gorm:"column:unit;type:offer_unit;not null"`
	DefaultPriceCents int             `gorm:"column:default_price_cents;not null"`
	Active            bool            `gorm:"column:active;not null;default:true"`
	Equipment         []ProductEquipment `gorm:"foreignKey:ProductID"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
