package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// EquipmentBindingInput is one line of a product's equipment bill.
type EquipmentBindingInput struct {
	ItemType   enums.EquipmentRefType
	ItemID     uuid.UUID
	QtyPerUnit int
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name              string
	Description       *string
	Unit              enums.OfferUnit
	DefaultPriceCents int
	Active            bool
	Equipment         []EquipmentBindingInput
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name              *string
	Description       *string
	Unit              *enums.OfferUnit
	DefaultPriceCents *int
	Active            *bool
	Equipment         *[]EquipmentBindingInput
}

// EquipmentBindingDTO mirrors one equipment bill row in responses.
type EquipmentBindingDTO struct {
	ItemType   enums.EquipmentRefType `json:"item_type"`
	ItemID     uuid.UUID              `json:"item_id"`
	QtyPerUnit int                    `json:"qty_per_unit"`
}

// ProductDTO is the API shape of a catalog product.
type ProductDTO struct {
	ID                uuid.UUID             `json:"id"`
	Name              string                `json:"name"`
	Description       *string               `json:"description,omitempty"`
	Unit              enums.OfferUnit       `json:"unit"`
	DefaultPriceCents int                   `json:"default_price_cents"`
	Active            bool                  `json:"active"`
	Equipment         []EquipmentBindingDTO `json:"equipment"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// NewProductDTO maps a product row into its API shape.
func NewProductDTO(product *models.Product) *ProductDTO {
	if product == nil {
		return nil
	}
	bindings := make([]EquipmentBindingDTO, 0, len(product.Equipment))
	for _, row := range product.Equipment {
		bindings = append(bindings, EquipmentBindingDTO{
			ItemType:   row.ItemType,
			ItemID:     row.ItemID,
			QtyPerUnit: row.QtyPerUnit,
		})
	}
	return &ProductDTO{
		ID:                product.ID,
		Name:              product.Name,
		Description:       product.Description,
		Unit:              product.Unit,
		DefaultPriceCents: product.DefaultPriceCents,
		Active:            product.Active,
		Equipment:         bindings,
		CreatedAt:         product.CreatedAt,
		UpdatedAt:         product.UpdatedAt,
	}
}
