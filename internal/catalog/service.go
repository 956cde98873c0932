package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/pkg/db"
	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/pagination"
)

// Service exposes catalog management operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeactivateProduct(ctx context.Context, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, params pagination.Params, activeOnly bool) ([]ProductDTO, string, error)
}

type equipmentChecker interface {
	ItemsExist(ctx context.Context, itemIDs []uuid.UUID) (bool, error)
	KitsExist(ctx context.Context, kitIDs []uuid.UUID) (bool, error)
}

type service struct {
	repo      *Repository
	dbClient  *db.Client
	equipment equipmentChecker
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, dbClient *db.Client, equipment equipmentChecker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if equipment == nil {
		return nil, fmt.Errorf("equipment checker required")
	}
	return &service{repo: repo, dbClient: dbClient, equipment: equipment}, nil
}

// CreateProduct creates the product with its equipment bill.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.Validation("name")
	}
	if !input.Unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid unit")
	}
	if input.DefaultPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "default_price_cents cannot be negative")
	}
	if err := s.validateBindings(ctx, input.Equipment); err != nil {
		return nil, err
	}

	var createdID uuid.UUID
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product := &models.Product{
			Name:              input.Name,
			Description:       input.Description,
			Unit:              input.Unit,
			DefaultPriceCents: input.DefaultPriceCents,
			Active:            input.Active,
		}
		created, err := txRepo.CreateProduct(ctx, product)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		createdID = created.ID

		rows := bindingRows(created.ID, input.Equipment)
		if err := txRepo.ReplaceEquipment(ctx, created.ID, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: replace product equipment")
		}
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	product, err := s.repo.FindByID(ctx, createdID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return NewProductDTO(product), nil
}

// UpdateProduct mutates product fields and optionally rewrites the equipment bill.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if input.Unit != nil && !input.Unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid unit")
	}
	if input.DefaultPriceCents != nil && *input.DefaultPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "default_price_cents cannot be negative")
	}
	if input.Equipment != nil {
		if err := s.validateBindings(ctx, *input.Equipment); err != nil {
			return nil, err
		}
	}

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product, err := txRepo.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}

		if input.Name != nil {
			if strings.TrimSpace(*input.Name) == "" {
				return pkgerrors.Validation("name")
			}
			product.Name = *input.Name
		}
		if input.Description != nil {
			product.Description = input.Description
		}
		if input.Unit != nil {
			product.Unit = *input.Unit
		}
		if input.DefaultPriceCents != nil {
			product.DefaultPriceCents = *input.DefaultPriceCents
		}
		if input.Active != nil {
			product.Active = *input.Active
		}
		product.Equipment = nil

		if _, err := txRepo.UpdateProduct(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}
		if input.Equipment != nil {
			rows := bindingRows(productID, *input.Equipment)
			if err := txRepo.ReplaceEquipment(ctx, productID, rows); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: replace product equipment")
			}
		}
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return NewProductDTO(product), nil
}

// DeactivateProduct hides the product from new offers.
func (s *service) DeactivateProduct(ctx context.Context, productID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	if err := s.repo.DeactivateProduct(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: deactivate product")
	}
	return nil
}

// GetProduct loads a single product with its equipment bill.
func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	return NewProductDTO(product), nil
}

// ListProducts returns a cursor page of products.
func (s *service) ListProducts(ctx context.Context, params pagination.Params, activeOnly bool) ([]ProductDTO, string, error) {
	rows, next, err := s.repo.List(ctx, params, activeOnly)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	dtos := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *NewProductDTO(&rows[i]))
	}
	return dtos, next, nil
}

func (s *service) validateBindings(ctx context.Context, bindings []EquipmentBindingInput) error {
	itemIDs := []uuid.UUID{}
	kitIDs := []uuid.UUID{}
	for _, b := range bindings {
		if b.QtyPerUnit <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "qty_per_unit must be positive")
		}
		switch b.ItemType {
		case enums.EquipmentRefItem:
			itemIDs = append(itemIDs, b.ItemID)
		case enums.EquipmentRefKit:
			kitIDs = append(kitIDs, b.ItemID)
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid equipment item_type")
		}
	}
	if len(itemIDs) > 0 {
		ok, err := s.equipment.ItemsExist(ctx, itemIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check equipment items")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown equipment item reference")
		}
	}
	if len(kitIDs) > 0 {
		ok, err := s.equipment.KitsExist(ctx, kitIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check equipment kits")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown equipment kit reference")
		}
	}
	return nil
}

func bindingRows(productID uuid.UUID, bindings []EquipmentBindingInput) []models.ProductEquipment {
	rows := make([]models.ProductEquipment, 0, len(bindings))
	for _, b := range bindings {
		rows = append(rows, models.ProductEquipment{
			ProductID:  productID,
			ItemType:   b.ItemType,
			ItemID:     b.ItemID,
			QtyPerUnit: b.QtyPerUnit,
		})
	}
	return rows
}
