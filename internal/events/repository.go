package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/pagination"
)

// Repository handles produced-event persistence.
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

func (r *Repository) Create(ctx context.Context, event *models.EventRecord) (*models.EventRecord, error) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EventRecord, error) {
	var event models.EventRecord
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns events ordered by start date, newest first, with cursor paging.
func (r *Repository) List(ctx context.Context, params pagination.Params, from *time.Time) ([]models.EventRecord, string, error) {
	query := r.db.WithContext(ctx).Model(&models.EventRecord{})
	if from != nil {
		query = query.Where("ends_at > ?", *from)
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

	var rows []models.EventRecord
	err := query.
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
