package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/showrunr/eventcrm-backend/api/responses"
	"github.com/showrunr/eventcrm-backend/api/validators"
	eventsvc "github.com/showrunr/eventcrm-backend/internal/events"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
	"github.com/showrunr/eventcrm-backend/pkg/pagination"
)

type createEventRequest struct {
	Name     string    `json:"name" validate:"required,min=1,max=200"`
	Venue    *string   `json:"venue,omitempty" validate:"omitempty,max=200"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
}

// CreateEvent handles POST /api/v1/events.
func CreateEvent(svc eventsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		var payload createEventRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.CreateEvent(r.Context(), eventsvc.CreateEventInput{
			Name:     payload.Name,
			Venue:    payload.Venue,
			StartsAt: payload.StartsAt,
			EndsAt:   payload.EndsAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, event)
	}
}

// GetEvent handles GET /api/v1/events/{eventID}.
func GetEvent(svc eventsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		eventID, err := validators.ParsePathUUID("event_id", chi.URLParam(r, "eventID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.GetEvent(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, event)
	}
}

// ListEvents handles GET /api/v1/events with cursor pagination and an
// optional upcoming=true filter.
func ListEvents(svc eventsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		upcoming, err := validators.ParseQueryBool(r, "upcoming", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}

		events, nextCursor, err := svc.ListEvents(r.Context(), params, upcoming)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteList(w, events, nextCursor)
	}
}
