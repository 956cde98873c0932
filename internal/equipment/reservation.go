package equipment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
)

// ReservationRequest asks for a quantity of one item during the offer window.
// Kit demand is exploded into member items before it reaches the ledger.
type ReservationRequest struct {
	ItemID uuid.UUID
	Qty    int
}

// ReservationResult reports the outcome for a single request.
type ReservationResult struct {
	ItemID   uuid.UUID
	Qty      int
	Reserved bool
	Reason   string
}

// ReservationWindow binds requests to an offer/event and its time range.
type ReservationWindow struct {
	OfferID  uuid.UUID
	EventID  uuid.UUID
	StartsAt time.Time
	EndsAt   time.Time
}

// ReserveEquipment writes ledger rows for every request that still fits within
// the item's owned stock during the window. Requests that no longer fit are
// reported with a reason instead of failing the batch; the caller decides
// whether partial coverage aborts the surrounding transaction.
func ReserveEquipment(ctx context.Context, tx *gorm.DB, window ReservationWindow, requests []ReservationRequest) ([]ReservationResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if window.OfferID == uuid.Nil || window.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer and event ids are required")
	}
	if !window.EndsAt.After(window.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation window must end after it starts")
	}
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reservation qty must be positive (item_id=%s)", req.ItemID))
		}
	}

	results := make([]ReservationResult, 0, len(requests))
	pending := []models.EquipmentReservation{}

	// Quantities granted earlier in this batch count against later requests
	// for the same item.
	granted := map[uuid.UUID]int{}

	for _, req := range requests {
		result := ReservationResult{ItemID: req.ItemID, Qty: req.Qty}

		var item models.EquipmentItem
		if err := tx.WithContext(ctx).First(&item, "id = ?", req.ItemID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				result.Reason = "equipment item not found"
				results = append(results, result)
				continue
			}
			return nil, err
		}

		var reserved int64
		err := tx.WithContext(ctx).
			Model(&models.EquipmentReservation{}).
			Where("item_id = ? AND offer_id <> ? AND starts_at < ? AND ends_at > ?",
				req.ItemID, window.OfferID, window.EndsAt, window.StartsAt).
			Select("COALESCE(SUM(qty), 0)").
			Scan(&reserved).Error
		if err != nil {
			return nil, err
		}

		available := item.TotalQty - int(reserved) - granted[req.ItemID]
		if available < req.Qty {
			result.Reason = fmt.Sprintf("insufficient equipment: requested %d, available %d", req.Qty, max(available, 0))
			results = append(results, result)
			continue
		}

		granted[req.ItemID] += req.Qty
		result.Reserved = true
		results = append(results, result)
		pending = append(pending, models.EquipmentReservation{
			ID:       uuid.New(),
			OfferID:  window.OfferID,
			EventID:  window.EventID,
			ItemType: enums.EquipmentRefItem,
			ItemID:   req.ItemID,
			Qty:      req.Qty,
			StartsAt: window.StartsAt,
			EndsAt:   window.EndsAt,
		})
	}

	if len(pending) > 0 {
		if err := tx.WithContext(ctx).Create(&pending).Error; err != nil {
			return nil, err
		}
	}
	return results, nil
}

// ReleaseEquipment deletes every ledger row held by the offer.
func ReleaseEquipment(ctx context.Context, tx *gorm.DB, offerID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if offerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "offer id is required")
	}
	return tx.WithContext(ctx).
		Where("offer_id = ?", offerID).
		Delete(&models.EquipmentReservation{}).
		Error
}
