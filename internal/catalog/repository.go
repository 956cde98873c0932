package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/pagination"
)

// Repository wires together catalog persistence helpers.
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

// FindByID loads the product with its equipment bill.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Equipment").
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads multiple products with their equipment bills.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Equipment").
		Where("id IN ?", ids).
		Find(&rows).
		Error
	return rows, err
}

// CreateProduct inserts a new product row with its equipment bill.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct updates an existing product row.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// ReplaceEquipment replaces the product's equipment bill rows.
func (r *Repository) ReplaceEquipment(ctx context.Context, productID uuid.UUID, rows []models.ProductEquipment) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductEquipment{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

// DeactivateProduct removes a product from the sellable catalog without
// touching offers that already reference it.
func (r *Repository) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("active", false).
		Error
}

// List returns a cursor page of products, newest first.
func (r *Repository) List(ctx context.Context, params pagination.Params, activeOnly bool) ([]models.Product, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.db.WithContext(ctx).
		Preload("Equipment").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	page, hasMore := pagination.TrimPage(rows, params.Limit)
	next := ""
	if hasMore && len(page) > 0 {
		last := page[len(page)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, next, nil
}
