package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/api/responses"
	"github.com/showrunr/eventcrm-backend/api/validators"
	catalogsvc "github.com/showrunr/eventcrm-backend/internal/catalog"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
	"github.com/showrunr/eventcrm-backend/pkg/pagination"
)

type equipmentBindingRequest struct {
	ItemType   string    `json:"item_type" validate:"required"`
	ItemID     uuid.UUID `json:"item_id" validate:"required"`
	QtyPerUnit int       `json:"qty_per_unit" validate:"required,min=1"`
}

type createProductRequest struct {
	Name              string                    `json:"name" validate:"required,min=1,max=200"`
	Description       *string                   `json:"description,omitempty"`
	Unit              string                    `json:"unit" validate:"required"`
	DefaultPriceCents int                       `json:"default_price_cents" validate:"min=0"`
	Active            *bool                     `json:"active,omitempty"`
	Equipment         []equipmentBindingRequest `json:"equipment,omitempty" validate:"omitempty,dive"`
}

type updateProductRequest struct {
	Name              *string                    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description       *string                    `json:"description,omitempty"`
	Unit              *string                    `json:"unit,omitempty"`
	DefaultPriceCents *int                       `json:"default_price_cents,omitempty" validate:"omitempty,min=0"`
	Active            *bool                      `json:"active,omitempty"`
	Equipment         *[]equipmentBindingRequest `json:"equipment,omitempty" validate:"omitempty,dive"`
}

// CreateProduct handles POST /api/v1/products.
func CreateProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// UpdateProduct handles PATCH /api/v1/products/{productID}.
func UpdateProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		productID, err := validators.ParsePathUUID("product_id", chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toUpdateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// DeactivateProduct handles DELETE /api/v1/products/{productID}. Products are
// never hard-deleted; committed offers keep referencing them.
func DeactivateProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		productID, err := validators.ParsePathUUID("product_id", chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeactivateProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// GetProduct handles GET /api/v1/products/{productID}.
func GetProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		productID, err := validators.ParsePathUUID("product_id", chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// ListProducts handles GET /api/v1/products.
func ListProducts(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		activeOnly, err := validators.ParseQueryBool(r, "active", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}

		products, nextCursor, err := svc.ListProducts(r.Context(), params, activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteList(w, products, nextCursor)
	}
}

func (r createProductRequest) toCreateInput() (catalogsvc.CreateProductInput, error) {
	unit, err := enums.ParseOfferUnit(strings.TrimSpace(r.Unit))
	if err != nil {
		return catalogsvc.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
	}

	bindings, err := parseBindings(r.Equipment)
	if err != nil {
		return catalogsvc.CreateProductInput{}, err
	}

	active := true
	if r.Active != nil {
		active = *r.Active
	}

	return catalogsvc.CreateProductInput{
		Name:              r.Name,
		Description:       r.Description,
		Unit:              unit,
		DefaultPriceCents: r.DefaultPriceCents,
		Active:            active,
		Equipment:         bindings,
	}, nil
}

func (r updateProductRequest) toUpdateInput() (catalogsvc.UpdateProductInput, error) {
	input := catalogsvc.UpdateProductInput{
		Name:              r.Name,
		Description:       r.Description,
		DefaultPriceCents: r.DefaultPriceCents,
		Active:            r.Active,
	}

	if r.Unit != nil {
		unit, err := enums.ParseOfferUnit(strings.TrimSpace(*r.Unit))
		if err != nil {
			return catalogsvc.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
		}
		input.Unit = &unit
	}

	if r.Equipment != nil {
		bindings, err := parseBindings(*r.Equipment)
		if err != nil {
			return catalogsvc.UpdateProductInput{}, err
		}
		input.Equipment = &bindings
	}

	return input, nil
}

func parseBindings(requests []equipmentBindingRequest) ([]catalogsvc.EquipmentBindingInput, error) {
	bindings := make([]catalogsvc.EquipmentBindingInput, 0, len(requests))
	for _, binding := range requests {
		itemType, err := enums.ParseEquipmentRefType(strings.TrimSpace(binding.ItemType))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item_type")
		}
		bindings = append(bindings, catalogsvc.EquipmentBindingInput{
			ItemType:   itemType,
			ItemID:     binding.ItemID,
			QtyPerUnit: binding.QtyPerUnit,
		})
	}
	return bindings, nil
}
