package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/api/middleware"
	"github.com/showrunr/eventcrm-backend/api/responses"
	"github.com/showrunr/eventcrm-backend/api/validators"
	offersvc "github.com/showrunr/eventcrm-backend/internal/offers"
	"github.com/showrunr/eventcrm-backend/internal/substitutions"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
	"github.com/showrunr/eventcrm-backend/pkg/pagination"
)

type offerItemRequest struct {
	ProductID          *uuid.UUID  `json:"product_id,omitempty"`
	Name               string      `json:"name,omitempty"`
	Description        *string     `json:"description,omitempty"`
	Qty                int         `json:"qty" validate:"required,min=1"`
	Unit               *string     `json:"unit,omitempty"`
	UnitPriceCents     *int        `json:"unit_price_cents,omitempty" validate:"omitempty,min=0"`
	DiscountPercent    float64     `json:"discount_percent,omitempty" validate:"gte=0,lte=100"`
	EquipmentIDs       []uuid.UUID `json:"equipment_ids,omitempty"`
	SubcontractorID    *uuid.UUID  `json:"subcontractor_id,omitempty"`
	NeedsSubcontractor bool        `json:"needs_subcontractor,omitempty"`
}

type commitOfferRequest struct {
	EventID        uuid.UUID                   `json:"event_id" validate:"required"`
	ClientType     string                      `json:"client_type" validate:"required"`
	OrganizationID *uuid.UUID                  `json:"organization_id,omitempty"`
	ContactID      *uuid.UUID                  `json:"contact_id,omitempty"`
	ValidUntil     *time.Time                  `json:"valid_until,omitempty"`
	Notes          *string                     `json:"notes,omitempty"`
	Items          []offerItemRequest          `json:"items" validate:"required,min=1,dive"`
	Substitutions  []substitutionRequest       `json:"substitutions,omitempty" validate:"omitempty,dive"`
	Selections     map[string]selectionRequest `json:"selections,omitempty" validate:"omitempty,dive"`
	SyncLedger     *bool                       `json:"sync_ledger,omitempty"`
}

// selectionRequest picks an alternative item for one shortage row. The map
// key is the "{type}|{id}" reference of the row being resolved; a zero qty
// covers the row's full shortage.
type selectionRequest struct {
	ItemID uuid.UUID `json:"item_id" validate:"required"`
	Qty    int       `json:"qty,omitempty" validate:"omitempty,min=1"`
}

type updateOfferStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CommitOffer handles POST /api/v1/offers: the one-shot commit that prices
// the offer, verifies availability and reserves equipment atomically.
func CommitOffer(svc offersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}

		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload commitOfferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCommitInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.CommitOffer(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

// GetOffer handles GET /api/v1/offers/{offerID}.
func GetOffer(svc offersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}

		offerID, err := validators.ParsePathUUID("offer_id", chi.URLParam(r, "offerID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.GetOffer(r.Context(), offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, offer)
	}
}

// ListOffers handles GET /api/v1/offers with event_id and status filters.
func ListOffers(svc offersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, err := validators.ParseQueryUUID(r, "event_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.OfferStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseOfferStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		params := pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}

		offers, nextCursor, err := svc.ListOffers(r.Context(), params, offersvc.ListFilters{EventID: eventID, Status: status})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteList(w, offers, nextCursor)
	}
}

// UpdateOfferStatus handles POST /api/v1/offers/{offerID}/status.
func UpdateOfferStatus(svc offersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}

		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offerID, err := validators.ParsePathUUID("offer_id", chi.URLParam(r, "offerID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateOfferStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOfferStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		offer, err := svc.UpdateStatus(r.Context(), actor, offerID, target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, offer)
	}
}

// DeleteOffer handles DELETE /api/v1/offers/{offerID}.
func DeleteOffer(svc offersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}

		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offerID, err := validators.ParsePathUUID("offer_id", chi.URLParam(r, "offerID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteOffer(r.Context(), actor, offerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// LedgerSyncer rebuilds an offer's reservation rows from its current lines.
type LedgerSyncer interface {
	SyncOfferReservations(ctx context.Context, offerID uuid.UUID) error
}

// SyncOfferLedger handles POST /api/v1/offers/{offerID}/sync. Safe to call
// repeatedly; the sync replaces the offer's reservation rows wholesale.
func SyncOfferLedger(syncer LedgerSyncer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if syncer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger syncer unavailable"))
			return
		}

		offerID, err := validators.ParsePathUUID("offer_id", chi.URLParam(r, "offerID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := syncer.SyncOfferReservations(r.Context(), offerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "synced"})
	}
}

func actorFromContext(ctx context.Context) (offersvc.Actor, error) {
	employeeID := middleware.EmployeeIDFromContext(ctx)
	if employeeID == "" {
		return offersvc.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "employee context missing")
	}

	role, err := enums.ParseEmployeeRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return offersvc.Actor{}, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid role")
	}

	return offersvc.Actor{EmployeeID: employeeID, Role: role}, nil
}

func (req commitOfferRequest) toCommitInput() (offersvc.CommitOfferInput, error) {
	clientType, err := enums.ParseClientType(strings.TrimSpace(req.ClientType))
	if err != nil {
		return offersvc.CommitOfferInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid client_type")
	}

	items := make([]offersvc.OfferItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		input := offersvc.OfferItemInput{
			ProductID:          item.ProductID,
			Name:               item.Name,
			Description:        item.Description,
			Qty:                item.Qty,
			UnitPriceCents:     item.UnitPriceCents,
			DiscountPercent:    item.DiscountPercent,
			EquipmentIDs:       item.EquipmentIDs,
			SubcontractorID:    item.SubcontractorID,
			NeedsSubcontractor: item.NeedsSubcontractor,
		}
		if item.Unit != nil {
			unit, err := enums.ParseOfferUnit(strings.TrimSpace(*item.Unit))
			if err != nil {
				return offersvc.CommitOfferInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
			}
			input.Unit = &unit
		}
		items = append(items, input)
	}

	subs := make([]offersvc.SubstitutionInput, 0, len(req.Substitutions))
	for _, sub := range req.Substitutions {
		fromType, err := enums.ParseEquipmentRefType(sub.FromType)
		if err != nil {
			return offersvc.CommitOfferInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from_type")
		}
		toType, err := enums.ParseEquipmentRefType(sub.ToType)
		if err != nil {
			return offersvc.CommitOfferInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to_type")
		}
		subs = append(subs, offersvc.SubstitutionInput{
			FromType:   fromType,
			FromItemID: sub.FromItemID,
			ToType:     toType,
			ToItemID:   sub.ToItemID,
			Qty:        sub.Qty,
		})
	}

	var selections substitutions.Selections
	if len(req.Selections) > 0 {
		selections = substitutions.Selections{}
		for key, sel := range req.Selections {
			ref, err := parseSelectionKey(key)
			if err != nil {
				return offersvc.CommitOfferInput{}, err
			}
			selections.Select(ref, sel.ItemID, sel.Qty)
		}
	}

	return offersvc.CommitOfferInput{
		EventID:        req.EventID,
		ClientType:     clientType,
		OrganizationID: req.OrganizationID,
		ContactID:      req.ContactID,
		ValidUntil:     req.ValidUntil,
		Notes:          req.Notes,
		Items:          items,
		Substitutions:  subs,
		Selections:     selections,
		SyncLedger:     req.SyncLedger == nil || *req.SyncLedger,
	}, nil
}

func parseSelectionKey(key string) (substitutions.Ref, error) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 {
		return substitutions.Ref{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("selection key %q must be \"type|id\"", key))
	}
	refType, err := enums.ParseEquipmentRefType(strings.TrimSpace(parts[0]))
	if err != nil {
		return substitutions.Ref{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid selection key type")
	}
	id, err := uuid.Parse(strings.TrimSpace(parts[1]))
	if err != nil {
		return substitutions.Ref{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("selection key %q carries an invalid id", key))
	}
	return substitutions.Ref{Type: refType, ID: id}, nil
}
