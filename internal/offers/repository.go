package offers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/showrunr/eventcrm-backend/pkg/db"
	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	"github.com/showrunr/eventcrm-backend/pkg/pagination"
)

// Repository handles offer persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// NextOfferNumber assigns the next sequential number for the year. The
// sequence row is locked for the duration of the transaction on Postgres;
// sqlite serializes writers on its own.
func (r *Repository) NextOfferNumber(ctx context.Context, year int) (string, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var seq models.OfferNumberSeq
	err := query.First(&seq, "year = ?", year).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = models.OfferNumberSeq{Year: year, LastSeq: 0}
		if cerr := r.db.WithContext(ctx).Create(&seq).Error; cerr != nil && !dbpkg.IsUniqueViolation(cerr, "offer_number_seqs_pkey") {
			return "", cerr
		}
		// Re-read under lock in case a concurrent commit created the row first.
		if err := query.First(&seq, "year = ?", year).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	seq.LastSeq++
	if err := r.db.WithContext(ctx).
		Model(&models.OfferNumberSeq{}).
		Where("year = ?", year).
		Update("last_seq", seq.LastSeq).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("OF-%d-%04d", year, seq.LastSeq), nil
}

// InsertOffer writes the header together with its items and substitutions.
func (r *Repository) InsertOffer(ctx context.Context, offer *models.Offer) (*models.Offer, error) {
	if err := r.db.WithContext(ctx).Create(offer).Error; err != nil {
		return nil, err
	}
	return offer, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Preload("Substitutions").
		First(&offer, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// List returns offer headers with items preloaded for the count, newest first.
func (r *Repository) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Offer, string, error) {
	query := r.db.WithContext(ctx).Model(&models.Offer{})
	if filters.EventID != nil {
		query = query.Where("event_id = ?", *filters.EventID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, "", err
		}
		if cursor != nil {
			query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	var rows []models.Offer
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}

	rows, hasMore := pagination.TrimPage(rows, params.Limit)
	next := ""
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

// UpdateStatus moves the offer to the target status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OfferStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the offer and its lines. Reservation rows are released by
// the caller in the same transaction.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("offer_id = ?", id).Delete(&models.OfferSubstitution{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("offer_id = ?", id).Delete(&models.OfferItem{}).Error; err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Offer{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkLedgerSyncFailed clears the sync timestamp so the worker retries.
func (r *Repository) MarkLedgerSyncFailed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ?", id).
		Update("ledger_synced_at", nil).Error
}
