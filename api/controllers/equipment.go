package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/api/validators"

	"github.com/showrunr/eventcrm-backend/api/responses"
	equipmentsvc "github.com/showrunr/eventcrm-backend/internal/equipment"
	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
)

type equipmentItemResponse struct {
	ID       uuid.UUID               `json:"id"`
	Name     string                  `json:"name"`
	Category enums.EquipmentCategory `json:"category"`
	TotalQty int                     `json:"total_qty"`
	Active   bool                    `json:"active"`
}

type equipmentKitMemberResponse struct {
	ItemID uuid.UUID `json:"item_id"`
	Qty    int       `json:"qty"`
}

type equipmentKitResponse struct {
	ID     uuid.UUID                    `json:"id"`
	Name   string                       `json:"name"`
	Active bool                         `json:"active"`
	Items  []equipmentKitMemberResponse `json:"items"`
}

// ListEquipmentItems handles GET /api/v1/equipment/items with an optional
// category filter.
func ListEquipmentItems(repo *equipmentsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "equipment repository unavailable"))
			return
		}

		var category *enums.EquipmentCategory
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			parsed, err := enums.ParseEquipmentCategory(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			category = &parsed
		}

		items, err := repo.ListItems(r.Context(), category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]equipmentItemResponse, 0, len(items))
		for _, item := range items {
			out = append(out, newEquipmentItemResponse(item))
		}

		responses.WriteSuccess(w, out)
	}
}

// ListEquipmentKits handles GET /api/v1/equipment/kits.
func ListEquipmentKits(repo *equipmentsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "equipment repository unavailable"))
			return
		}

		kits, err := repo.ListKits(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]equipmentKitResponse, 0, len(kits))
		for _, kit := range kits {
			members := make([]equipmentKitMemberResponse, 0, len(kit.Items))
			for _, member := range kit.Items {
				members = append(members, equipmentKitMemberResponse{ItemID: member.ItemID, Qty: member.Qty})
			}
			out = append(out, equipmentKitResponse{
				ID:     kit.ID,
				Name:   kit.Name,
				Active: kit.Active,
				Items:  members,
			})
		}

		responses.WriteSuccess(w, out)
	}
}

type equipmentAvailabilityResponse struct {
	ItemID    uuid.UUID               `json:"item_id"`
	Name      string                  `json:"name"`
	Category  enums.EquipmentCategory `json:"category"`
	TotalQty  int                     `json:"total_qty"`
	Reserved  int                     `json:"reserved"`
	Available int                     `json:"available"`
}

// EquipmentAvailability handles GET /api/v1/equipment/availability. The
// window comes from starts_at/ends_at query params; exclude_offer_id lets a
// caller preview availability as if one offer's reservations were released.
func EquipmentAvailability(repo *equipmentsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "equipment repository unavailable"))
			return
		}

		startsAt, err := parseWindowParam(r, "starts_at")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		endsAt, err := parseWindowParam(r, "ends_at")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !endsAt.After(startsAt) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "ends_at must be after starts_at"))
			return
		}

		excludeOfferID, err := validators.ParseQueryUUID(r, "exclude_offer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var category *enums.EquipmentCategory
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			parsed, err := enums.ParseEquipmentCategory(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			category = &parsed
		}

		items, err := repo.ListItems(r.Context(), category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reserved, err := repo.ReservedQuantities(r.Context(), startsAt, endsAt, excludeOfferID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]equipmentAvailabilityResponse, 0, len(items))
		for _, item := range items {
			taken := reserved[item.ID]
			out = append(out, equipmentAvailabilityResponse{
				ItemID:    item.ID,
				Name:      item.Name,
				Category:  item.Category,
				TotalQty:  item.TotalQty,
				Reserved:  taken,
				Available: item.TotalQty - taken,
			})
		}

		responses.WriteSuccess(w, out)
	}
}

func parseWindowParam(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, pkgerrors.Validation(key)
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
	}
	return parsed, nil
}

func newEquipmentItemResponse(item models.EquipmentItem) equipmentItemResponse {
	return equipmentItemResponse{
		ID:       item.ID,
		Name:     item.Name,
		Category: item.Category,
		TotalQty: item.TotalQty,
		Active:   item.Active,
	}
}
