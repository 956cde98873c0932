package equipment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// Repository wires together equipment persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindItemByID loads a single equipment item.
func (r *Repository) FindItemByID(ctx context.Context, id uuid.UUID) (*models.EquipmentItem, error) {
	var item models.EquipmentItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemsByIDs loads the referenced equipment items.
func (r *Repository) FindItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.EquipmentItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.EquipmentItem
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// FindKitsByIDs loads the referenced kits with their member items.
func (r *Repository) FindKitsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.EquipmentKit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.EquipmentKit
	err := r.db.WithContext(ctx).Preload("Items").Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// ItemsExist reports whether every referenced item id exists.
func (r *Repository) ItemsExist(ctx context.Context, itemIDs []uuid.UUID) (bool, error) {
	if len(itemIDs) == 0 {
		return true, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EquipmentItem{}).
		Where("id IN ?", dedupe(itemIDs)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == int64(len(dedupe(itemIDs))), nil
}

// KitsExist reports whether every referenced kit id exists.
func (r *Repository) KitsExist(ctx context.Context, kitIDs []uuid.UUID) (bool, error) {
	if len(kitIDs) == 0 {
		return true, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EquipmentKit{}).
		Where("id IN ?", dedupe(kitIDs)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == int64(len(dedupe(kitIDs))), nil
}

// ListItems returns active equipment items, optionally filtered by category.
func (r *Repository) ListItems(ctx context.Context, category *enums.EquipmentCategory) ([]models.EquipmentItem, error) {
	query := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC")
	if category != nil {
		query = query.Where("category = ?", *category)
	}
	var rows []models.EquipmentItem
	err := query.Find(&rows).Error
	return rows, err
}

// ListItemsByCategory returns active items in the category, excluding the given ids.
func (r *Repository) ListItemsByCategory(ctx context.Context, category enums.EquipmentCategory, excludeIDs []uuid.UUID) ([]models.EquipmentItem, error) {
	query := r.db.WithContext(ctx).
		Where("active = ? AND category = ?", true, category).
		Order("name ASC")
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	var rows []models.EquipmentItem
	err := query.Find(&rows).Error
	return rows, err
}

// ListKits returns active kits with their member items.
func (r *Repository) ListKits(ctx context.Context) ([]models.EquipmentKit, error) {
	var rows []models.EquipmentKit
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("active = ?", true).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

// ReservedQuantities sums reservation rows that overlap [start, end) per item.
// Reservations for excludeOfferID are left out so re-checks of an existing
// offer do not count its own holdings against it.
func (r *Repository) ReservedQuantities(ctx context.Context, start, end time.Time, excludeOfferID *uuid.UUID) (map[uuid.UUID]int, error) {
	type row struct {
		ItemID uuid.UUID
		Total  int
	}
	query := r.db.WithContext(ctx).
		Model(&models.EquipmentReservation{}).
		Select("item_id, SUM(qty) AS total").
		Where("starts_at < ? AND ends_at > ?", end, start).
		Group("item_id")
	if excludeOfferID != nil {
		query = query.Where("offer_id <> ?", *excludeOfferID)
	}

	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	reserved := make(map[uuid.UUID]int, len(rows))
	for _, rr := range rows {
		reserved[rr.ItemID] = rr.Total
	}
	return reserved, nil
}

// InsertReservations writes ledger rows inside the provided transaction.
func (r *Repository) InsertReservations(tx *gorm.DB, rows []models.EquipmentReservation) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

// DeleteReservationsByOffer removes every ledger row held by the offer.
func (r *Repository) DeleteReservationsByOffer(ctx context.Context, tx *gorm.DB, offerID uuid.UUID) error {
	return ReleaseEquipment(ctx, tx, offerID)
}

// ListReservationsByOffer returns the ledger rows held by the offer.
func (r *Repository) ListReservationsByOffer(ctx context.Context, offerID uuid.UUID) ([]models.EquipmentReservation, error) {
	var rows []models.EquipmentReservation
	err := r.db.WithContext(ctx).
		Where("offer_id = ?", offerID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
