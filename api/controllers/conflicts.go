package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/api/middleware"
	"github.com/showrunr/eventcrm-backend/api/responses"
	"github.com/showrunr/eventcrm-backend/api/validators"
	conflictsvc "github.com/showrunr/eventcrm-backend/internal/conflicts"
	"github.com/showrunr/eventcrm-backend/internal/substitutions"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
)

type conflictCheckRequest struct {
	EventID        uuid.UUID             `json:"event_id"`
	ExcludeOfferID *uuid.UUID            `json:"exclude_offer_id,omitempty"`
	Lines          []conflictLineRequest `json:"lines" validate:"required,min=1,dive"`
	Substitutions  []substitutionRequest `json:"substitutions,omitempty" validate:"omitempty,dive"`
}

type conflictLineRequest struct {
	ProductID    *uuid.UUID  `json:"product_id,omitempty"`
	Qty          int         `json:"qty" validate:"required,min=1"`
	EquipmentIDs []uuid.UUID `json:"equipment_ids,omitempty"`
}

type substitutionRequest struct {
	FromType   string    `json:"from_type" validate:"required"`
	FromItemID uuid.UUID `json:"from_item_id" validate:"required"`
	ToType     string    `json:"to_type" validate:"required"`
	ToItemID   uuid.UUID `json:"to_item_id" validate:"required"`
	Qty        int       `json:"qty" validate:"required,min=1"`
}

// CheckConflicts handles POST /api/v1/conflicts/check. The check is advisory:
// committing an offer re-verifies availability inside its transaction. Each
// actor gets last-writer-wins semantics, so a stale re-check never lands on
// top of a fresher one.
func CheckConflicts(pool *conflictsvc.Pool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "conflict service unavailable"))
			return
		}

		employeeID := middleware.EmployeeIDFromContext(r.Context())
		if employeeID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "employee context missing"))
			return
		}

		var payload conflictCheckRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCheckInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := pool.For(employeeID).Check(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func (req conflictCheckRequest) toCheckInput() (conflictsvc.CheckInput, error) {
	lines := make([]conflictsvc.DemandLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, conflictsvc.DemandLine{
			ProductID:    line.ProductID,
			Qty:          line.Qty,
			EquipmentIDs: line.EquipmentIDs,
		})
	}

	subs, err := parseSubstitutions(req.Substitutions)
	if err != nil {
		return conflictsvc.CheckInput{}, err
	}

	return conflictsvc.CheckInput{
		EventID:        req.EventID,
		ExcludeOfferID: req.ExcludeOfferID,
		Lines:          lines,
		Substitutions:  subs,
	}, nil
}

func parseSubstitutions(requests []substitutionRequest) ([]substitutions.Substitution, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	subs := make([]substitutions.Substitution, 0, len(requests))
	for _, sub := range requests {
		fromType, err := enums.ParseEquipmentRefType(sub.FromType)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from_type")
		}
		toType, err := enums.ParseEquipmentRefType(sub.ToType)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to_type")
		}
		subs = append(subs, substitutions.Substitution{
			From: substitutions.Ref{Type: fromType, ID: sub.FromItemID},
			To:   substitutions.Ref{Type: toType, ID: sub.ToItemID},
			Qty:  sub.Qty,
		})
	}
	return subs, nil
}
