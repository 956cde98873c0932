package offers

import (
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/internal/equipment"
	"github.com/showrunr/eventcrm-backend/internal/substitutions"
	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// Actor identifies the employee performing an operation. It is injected by
// the transport layer, never read from global state.
type Actor struct {
	EmployeeID string
	Role       enums.EmployeeRole
}

// OfferItemInput is one requested offer line. ProductID selects a catalog
// product; ad-hoc lines leave it nil and carry their own name, unit and
// price plus optional equipment or subcontractor references.
type OfferItemInput struct {
	ProductID          *uuid.UUID
	Name               string
	Description        *string
	Qty                int
	Unit               *enums.OfferUnit
	UnitPriceCents     *int
	DiscountPercent    float64
	EquipmentIDs       []uuid.UUID
	SubcontractorID    *uuid.UUID
	NeedsSubcontractor bool
}

// SubstitutionInput redirects part of the equipment demand for the offer
// window from one reference to another.
type SubstitutionInput struct {
	FromType   enums.EquipmentRefType
	FromItemID uuid.UUID
	ToType     enums.EquipmentRefType
	ToItemID   uuid.UUID
	Qty        int
}

// CommitOfferInput carries everything needed to commit an offer atomically.
// Selections resolve shortage rows from a drafting-time check to chosen
// alternatives; they are expanded into explicit Substitutions before pricing.
// SyncLedger controls whether the reservation ledger is rebuilt right after
// commit or left to a later manual sync.
type CommitOfferInput struct {
	EventID        uuid.UUID
	ClientType     enums.ClientType
	OrganizationID *uuid.UUID
	ContactID      *uuid.UUID
	ValidUntil     *time.Time
	Notes          *string
	Items          []OfferItemInput
	Substitutions  []SubstitutionInput
	Selections     substitutions.Selections
	SyncLedger     bool
}

// ListFilters narrows offer listings.
type ListFilters struct {
	EventID *uuid.UUID
	Status  *enums.OfferStatus
}

// OfferItemDTO is the API shape of one offer line.
type OfferItemDTO struct {
	ID                 uuid.UUID       `json:"id"`
	ProductID          *uuid.UUID      `json:"product_id,omitempty"`
	Name               string          `json:"name"`
	Description        *string         `json:"description,omitempty"`
	Qty                int             `json:"qty"`
	Unit               enums.OfferUnit `json:"unit"`
	UnitPriceCents     int             `json:"unit_price_cents"`
	DiscountPercent    float64         `json:"discount_percent"`
	SubtotalCents      int             `json:"subtotal_cents"`
	DisplayOrder       int             `json:"display_order"`
	EquipmentIDs       []uuid.UUID     `json:"equipment_ids,omitempty"`
	SubcontractorID    *uuid.UUID      `json:"subcontractor_id,omitempty"`
	NeedsSubcontractor bool            `json:"needs_subcontractor"`
}

// SubstitutionDTO is the API shape of one equipment substitution.
type SubstitutionDTO struct {
	ID         uuid.UUID              `json:"id"`
	FromType   enums.EquipmentRefType `json:"from_type"`
	FromItemID uuid.UUID              `json:"from_item_id"`
	ToType     enums.EquipmentRefType `json:"to_type"`
	ToItemID   uuid.UUID              `json:"to_item_id"`
	Qty        int                    `json:"qty"`
}

// OfferDTO is the full API shape of a committed offer.
type OfferDTO struct {
	ID             uuid.UUID         `json:"id"`
	EventID        uuid.UUID         `json:"event_id"`
	ClientType     enums.ClientType  `json:"client_type"`
	OrganizationID *uuid.UUID        `json:"organization_id,omitempty"`
	ContactID      *uuid.UUID        `json:"contact_id,omitempty"`
	OfferNumber    string            `json:"offer_number"`
	Status         enums.OfferStatus `json:"status"`
	TotalCents     int               `json:"total_cents"`
	ValidUntil     *time.Time        `json:"valid_until,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
	CreatedBy      string            `json:"created_by"`
	LedgerSynced   bool              `json:"ledger_synced"`
	SyncFailed     bool              `json:"sync_failed,omitempty"`
	Items          []OfferItemDTO    `json:"items"`
	Substitutions  []SubstitutionDTO `json:"substitutions,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// OfferSummaryDTO is the listing shape, without line detail.
type OfferSummaryDTO struct {
	ID          uuid.UUID         `json:"id"`
	EventID     uuid.UUID         `json:"event_id"`
	OfferNumber string            `json:"offer_number"`
	ClientType  enums.ClientType  `json:"client_type"`
	Status      enums.OfferStatus `json:"status"`
	TotalCents  int               `json:"total_cents"`
	ItemCount   int               `json:"item_count"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewOfferDTO converts the persisted offer with its associations.
func NewOfferDTO(offer *models.Offer) *OfferDTO {
	dto := &OfferDTO{
		ID:             offer.ID,
		EventID:        offer.EventID,
		ClientType:     offer.ClientType,
		OrganizationID: offer.OrganizationID,
		ContactID:      offer.ContactID,
		OfferNumber:    offer.OfferNumber,
		Status:         offer.Status,
		TotalCents:     offer.TotalCents,
		ValidUntil:     offer.ValidUntil,
		Notes:          offer.Notes,
		CreatedBy:      offer.CreatedByEmployeeID,
		LedgerSynced:   !equipment.LedgerSyncPending(offer),
		CreatedAt:      offer.CreatedAt,
		UpdatedAt:      offer.UpdatedAt,
	}
	for _, item := range offer.Items {
		dto.Items = append(dto.Items, OfferItemDTO{
			ID:                 item.ID,
			ProductID:          item.ProductID,
			Name:               item.Name,
			Description:        item.Description,
			Qty:                item.Qty,
			Unit:               item.Unit,
			UnitPriceCents:     item.UnitPriceCents,
			DiscountPercent:    item.DiscountPercent,
			SubtotalCents:      item.SubtotalCents,
			DisplayOrder:       item.DisplayOrder,
			EquipmentIDs:       item.EquipmentIDs,
			SubcontractorID:    item.SubcontractorID,
			NeedsSubcontractor: item.NeedsSubcontractor,
		})
	}
	for _, sub := range offer.Substitutions {
		dto.Substitutions = append(dto.Substitutions, SubstitutionDTO{
			ID:         sub.ID,
			FromType:   sub.FromType,
			FromItemID: sub.FromItemID,
			ToType:     sub.ToType,
			ToItemID:   sub.ToItemID,
			Qty:        sub.Qty,
		})
	}
	return dto
}

// NewOfferSummaryDTO converts a listing row.
func NewOfferSummaryDTO(offer *models.Offer) OfferSummaryDTO {
	return OfferSummaryDTO{
		ID:          offer.ID,
		EventID:     offer.EventID,
		OfferNumber: offer.OfferNumber,
		ClientType:  offer.ClientType,
		Status:      offer.Status,
		TotalCents:  offer.TotalCents,
		ItemCount:   len(offer.Items),
		CreatedAt:   offer.CreatedAt,
	}
}
