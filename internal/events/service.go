package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/pagination"
)

// Service exposes produced-event operations.
type Service interface {
	CreateEvent(ctx context.Context, input CreateEventInput) (*EventDTO, error)
	GetEvent(ctx context.Context, eventID uuid.UUID) (*EventDTO, error)
	ListEvents(ctx context.Context, params pagination.Params, upcomingOnly bool) ([]EventDTO, string, error)
}

// CreateEventInput carries the fields for a new produced event.
type CreateEventInput struct {
	Name     string
	Venue    *string
	StartsAt time.Time
	EndsAt   time.Time
}

// EventDTO is the API shape of a produced event.
type EventDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Venue     *string   `json:"venue,omitempty"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}

func newEventDTO(event *models.EventRecord) *EventDTO {
	return &EventDTO{
		ID:        event.ID,
		Name:      event.Name,
		Venue:     event.Venue,
		StartsAt:  event.StartsAt,
		EndsAt:    event.EndsAt,
		CreatedAt: event.CreatedAt,
	}
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService constructs an events service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("events repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) CreateEvent(ctx context.Context, input CreateEventInput) (*EventDTO, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.Validation("name")
	}
	if input.StartsAt.IsZero() || input.EndsAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event window is required")
	}
	if !input.EndsAt.After(input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event must end after it starts")
	}

	event := &models.EventRecord{
		Name:     strings.TrimSpace(input.Name),
		Venue:    input.Venue,
		StartsAt: input.StartsAt.UTC(),
		EndsAt:   input.EndsAt.UTC(),
	}
	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create event")
	}
	return newEventDTO(created), nil
}

func (s *service) GetEvent(ctx context.Context, eventID uuid.UUID) (*EventDTO, error) {
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find event")
	}
	return newEventDTO(event), nil
}

func (s *service) ListEvents(ctx context.Context, params pagination.Params, upcomingOnly bool) ([]EventDTO, string, error) {
	var from *time.Time
	if upcomingOnly {
		now := s.now().UTC()
		from = &now
	}
	rows, next, err := s.repo.List(ctx, params, from)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list events")
	}

	dtos := make([]EventDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *newEventDTO(&rows[i]))
	}
	return dtos, next, nil
}
