package offers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/internal/conflicts"
	"github.com/showrunr/eventcrm-backend/internal/equipment"
	"github.com/showrunr/eventcrm-backend/internal/substitutions"
	"github.com/showrunr/eventcrm-backend/pkg/db"
	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
	"github.com/showrunr/eventcrm-backend/pkg/outbox"
	"github.com/showrunr/eventcrm-backend/pkg/outbox/payloads"
	"github.com/showrunr/eventcrm-backend/pkg/pagination"
)

// Service exposes the offer lifecycle.
type Service interface {
	CommitOffer(ctx context.Context, actor Actor, input CommitOfferInput) (*OfferDTO, error)
	GetOffer(ctx context.Context, offerID uuid.UUID) (*OfferDTO, error)
	ListOffers(ctx context.Context, params pagination.Params, filters ListFilters) ([]OfferSummaryDTO, string, error)
	UpdateStatus(ctx context.Context, actor Actor, offerID uuid.UUID, target enums.OfferStatus) (*OfferDTO, error)
	DeleteOffer(ctx context.Context, actor Actor, offerID uuid.UUID) error
}

type conflictChecker interface {
	Check(ctx context.Context, input conflicts.CheckInput) (*conflicts.CheckResult, error)
}

type ledgerSyncer interface {
	SyncOfferReservations(ctx context.Context, offerID uuid.UUID) error
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type eventLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.EventRecord, error)
}

type kitLoader interface {
	FindKitsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.EquipmentKit, error)
}

type reservationReleaser interface {
	DeleteReservationsByOffer(ctx context.Context, tx *gorm.DB, offerID uuid.UUID) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	products productLoader
	events   eventLoader
	kits     kitLoader
	checker  conflictChecker
	syncer   ledgerSyncer
	releaser reservationReleaser
	outbox   outboxEmitter
	logger   *logger.Logger
	now      func() time.Time
}

// NewService constructs the offer service.
func NewService(
	repo *Repository,
	dbClient *db.Client,
	products productLoader,
	events eventLoader,
	kits kitLoader,
	checker conflictChecker,
	syncer ledgerSyncer,
	releaser reservationReleaser,
	emitter outboxEmitter,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if products == nil || events == nil || kits == nil {
		return nil, fmt.Errorf("catalog, event, and kit loaders required")
	}
	if checker == nil {
		return nil, fmt.Errorf("conflict checker required")
	}
	if syncer == nil {
		return nil, fmt.Errorf("ledger syncer required")
	}
	if releaser == nil {
		return nil, fmt.Errorf("reservation releaser required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:     repo,
		dbClient: dbClient,
		products: products,
		events:   events,
		kits:     kits,
		checker:  checker,
		syncer:   syncer,
		releaser: releaser,
		outbox:   emitter,
		logger:   logg,
		now:      time.Now,
	}, nil
}

// CommitOffer validates, prices, re-checks availability, and writes the offer
// header, lines, substitutions, reservations and outbox event in a single
// transaction. A shortage discovered at any point aborts the whole commit.
func (s *service) CommitOffer(ctx context.Context, actor Actor, input CommitOfferInput) (*OfferDTO, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}

	products, err := s.loadProducts(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	input, err = s.resolveSelections(ctx, input)
	if err != nil {
		return nil, err
	}
	draft, err := BuildDraft(input, products)
	if err != nil {
		return nil, err
	}

	event, err := s.events.FindByID(ctx, input.EventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find event")
	}

	// Availability is always re-checked immediately before reserving; a stale
	// check result from the drafting UI is never trusted.
	checkResult, err := s.checker.Check(ctx, conflicts.CheckInput{
		EventID:       input.EventID,
		Lines:         demandLines(input.Items),
		Substitutions: substitutionRefs(input.Substitutions),
	})
	if err != nil {
		return nil, pkgerrors.Commit("conflict_check", err, "availability re-check failed")
	}
	if checkResult.HasShortage {
		return nil, shortageError(checkResult)
	}

	requests, err := s.reservationRequests(ctx, input, products)
	if err != nil {
		return nil, err
	}

	var offerID uuid.UUID
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		number, err := txRepo.NextOfferNumber(ctx, s.now().Year())
		if err != nil {
			return pkgerrors.Commit("offer_number", err, "db: assign offer number")
		}

		offer := &models.Offer{
			ID:                  uuid.New(),
			EventID:             input.EventID,
			ClientType:          input.ClientType,
			OrganizationID:      input.OrganizationID,
			ContactID:           input.ContactID,
			OfferNumber:         number,
			Status:              enums.OfferStatusDraft,
			TotalCents:          draft.TotalCents,
			ValidUntil:          input.ValidUntil,
			Notes:               input.Notes,
			CreatedByEmployeeID: actor.EmployeeID,
			Items:               draft.Items,
			Substitutions:       draft.Substitutions,
		}
		if _, err := txRepo.InsertOffer(ctx, offer); err != nil {
			return pkgerrors.Commit("persist", err, "db: insert offer")
		}
		offerID = offer.ID

		window := equipment.ReservationWindow{
			OfferID:  offer.ID,
			EventID:  event.ID,
			StartsAt: event.StartsAt,
			EndsAt:   event.EndsAt,
		}
		results, err := equipment.ReserveEquipment(ctx, tx, window, requests)
		if err != nil {
			return pkgerrors.Commit("reserve", err, "reserving equipment")
		}
		var refused []string
		for _, result := range results {
			if !result.Reserved {
				refused = append(refused, fmt.Sprintf("%s: %s", result.ItemID, result.Reason))
			}
		}
		if len(refused) > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("equipment no longer available: %s", strings.Join(refused, "; "))).
				WithDetails(map[string]any{"step": "reserve"})
		}

		return s.emitCreated(ctx, tx, actor, offer)
	})
	if err != nil {
		return nil, err
	}

	// The ledger rebuild is caller-controlled and never undoes the committed
	// offer; a failure is reported on the result instead.
	syncFailed := false
	if input.SyncLedger {
		syncFailed = !s.syncLedger(ctx, actor, offerID, event.ID)
	}

	dto, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	dto.SyncFailed = syncFailed
	return dto, nil
}

// resolveSelections expands chosen alternatives into explicit substitutions.
// Selections point at shortage rows from a drafting-time check, so the rows
// are recomputed here against the raw demand before quantities default.
func (s *service) resolveSelections(ctx context.Context, input CommitOfferInput) (CommitOfferInput, error) {
	if len(input.Selections) == 0 {
		return input, nil
	}

	base, err := s.checker.Check(ctx, conflicts.CheckInput{
		EventID: input.EventID,
		Lines:   demandLines(input.Items),
	})
	if err != nil {
		return CommitOfferInput{}, pkgerrors.Commit("conflict_check", err, "resolving alternative selections")
	}

	rows := make([]substitutions.ShortageRow, 0, len(base.Lines))
	for _, line := range base.Lines {
		if line.Shortage > 0 {
			rows = append(rows, substitutions.ShortageRow{Type: line.Type, RefID: line.RefID, Shortage: line.Shortage})
		}
	}
	for _, sub := range substitutions.BuildPayload(input.Selections, rows) {
		input.Substitutions = append(input.Substitutions, SubstitutionInput{
			FromType:   sub.From.Type,
			FromItemID: sub.From.ID,
			ToType:     sub.To.Type,
			ToItemID:   sub.To.ID,
			Qty:        sub.Qty,
		})
	}
	return input, nil
}

func (s *service) GetOffer(ctx context.Context, offerID uuid.UUID) (*OfferDTO, error) {
	offer, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find offer")
	}
	return NewOfferDTO(offer), nil
}

func (s *service) ListOffers(ctx context.Context, params pagination.Params, filters ListFilters) ([]OfferSummaryDTO, string, error) {
	rows, next, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list offers")
	}
	summaries := make([]OfferSummaryDTO, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, NewOfferSummaryDTO(&rows[i]))
	}
	return summaries, next, nil
}

// UpdateStatus moves the offer along its lifecycle. Declining releases every
// reservation the offer holds.
func (s *service) UpdateStatus(ctx context.Context, actor Actor, offerID uuid.UUID, target enums.OfferStatus) (*OfferDTO, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid offer status")
	}

	offer, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find offer")
	}
	if !offer.Status.CanTransitionTo(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("offer cannot move from %s to %s", offer.Status, target))
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.UpdateStatus(ctx, offerID, target); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update offer status")
		}
		if target == enums.OfferStatusDeclined {
			if err := s.releaser.DeleteReservationsByOffer(ctx, tx, offerID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: release reservations")
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferStatusChanged,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offerID,
			Actor:         actorRef(actor),
			Data: payloads.OfferStatusChangedEvent{
				OfferID:    offerID,
				EventID:    offer.EventID,
				FromStatus: offer.Status,
				ToStatus:   target,
				ChangedAt:  s.now().UTC(),
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetOffer(ctx, offerID)
}

// DeleteOffer removes the offer, its lines, and its reservations. Accepted
// offers are immutable and cannot be deleted.
func (s *service) DeleteOffer(ctx context.Context, actor Actor, offerID uuid.UUID) error {
	if err := validateActor(actor); err != nil {
		return err
	}

	offer, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find offer")
	}
	if offer.Status == enums.OfferStatusAccepted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "accepted offers cannot be deleted")
	}

	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.releaser.DeleteReservationsByOffer(ctx, tx, offerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: release reservations")
		}
		if err := s.repo.WithTx(tx).Delete(ctx, offerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete offer")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferDeleted,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offerID,
			Actor:         actorRef(actor),
			Data: payloads.OfferDeletedEvent{
				OfferID:   offerID,
				EventID:   offer.EventID,
				DeletedAt: s.now().UTC(),
			},
			Version: 1,
		})
	})
}

func (s *service) emitCreated(ctx context.Context, tx *gorm.DB, actor Actor, offer *models.Offer) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOfferCreated,
		AggregateType: enums.AggregateOffer,
		AggregateID:   offer.ID,
		Actor:         actorRef(actor),
		Data: payloads.OfferCreatedEvent{
			OfferID:     offer.ID,
			EventID:     offer.EventID,
			OfferNumber: offer.OfferNumber,
			TotalCents:  offer.TotalCents,
			ItemCount:   len(offer.Items),
		},
		Version: 1,
	})
	if err != nil {
		return pkgerrors.Commit("outbox", err, "queueing offer_created event")
	}
	return nil
}

// syncLedger stamps the reservation ledger after commit and reports whether
// the rebuild succeeded. Failures do not roll back the committed offer; the
// offer is flagged unsynced and a retry is queued for the worker instead.
func (s *service) syncLedger(ctx context.Context, actor Actor, offerID, eventID uuid.UUID) bool {
	err := s.syncer.SyncOfferReservations(ctx, offerID)
	if err == nil {
		return true
	}
	if s.logger != nil {
		s.logger.Error(s.logger.WithOfferID(ctx, offerID.String()), "ledger sync failed after commit", err)
	}

	if markErr := s.repo.MarkLedgerSyncFailed(ctx, offerID); markErr != nil && s.logger != nil {
		s.logger.Error(s.logger.WithOfferID(ctx, offerID.String()), "flagging offer as unsynced", markErr)
	}

	emitErr := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLedgerSyncFailed,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offerID,
			Actor:         actorRef(actor),
			Data: payloads.LedgerSyncFailedEvent{
				OfferID:  offerID,
				EventID:  eventID,
				Reason:   err.Error(),
				FailedAt: s.now().UTC(),
			},
			Version: 1,
		})
	})
	if emitErr != nil && s.logger != nil {
		s.logger.Error(ctx, "queueing ledger_sync_failed event", emitErr)
	}
	return false
}

func (s *service) loadProducts(ctx context.Context, items []OfferItemInput) (map[uuid.UUID]*models.Product, error) {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		if _, ok := seen[*item.ProductID]; ok {
			continue
		}
		seen[*item.ProductID] = struct{}{}
		ids = append(ids, *item.ProductID)
	}

	products := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}
	rows, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load products")
	}
	for i := range rows {
		products[rows[i].ID] = &rows[i]
	}
	return products, nil
}

// reservationRequests flattens the validated input into item-level requests.
func (s *service) reservationRequests(ctx context.Context, input CommitOfferInput, products map[uuid.UUID]*models.Product) ([]equipment.ReservationRequest, error) {
	demand, err := conflicts.BuildDemand(demandLines(input.Items), products)
	if err != nil {
		return nil, err
	}
	demand, err = substitutions.Apply(demand, substitutionRefs(input.Substitutions))
	if err != nil {
		return nil, err
	}

	kits := make(map[uuid.UUID]*models.EquipmentKit)
	if kitIDs := conflicts.KitIDs(demand); len(kitIDs) > 0 {
		rows, err := s.kits.FindKitsByIDs(ctx, kitIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load kits")
		}
		for i := range rows {
			kits[rows[i].ID] = &rows[i]
		}
	}
	itemQty, err := conflicts.ExplodeKits(demand, kits)
	if err != nil {
		return nil, err
	}

	requests := make([]equipment.ReservationRequest, 0, len(itemQty))
	for itemID, qty := range itemQty {
		requests = append(requests, equipment.ReservationRequest{ItemID: itemID, Qty: qty})
	}
	return requests, nil
}

func demandLines(items []OfferItemInput) []conflicts.DemandLine {
	lines := make([]conflicts.DemandLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, conflicts.DemandLine{
			ProductID:    item.ProductID,
			Qty:          item.Qty,
			EquipmentIDs: item.EquipmentIDs,
		})
	}
	return lines
}

func substitutionRefs(inputs []SubstitutionInput) []substitutions.Substitution {
	subs := make([]substitutions.Substitution, 0, len(inputs))
	for _, sub := range inputs {
		subs = append(subs, substitutions.Substitution{
			From: substitutions.Ref{Type: sub.FromType, ID: sub.FromItemID},
			To:   substitutions.Ref{Type: sub.ToType, ID: sub.ToItemID},
			Qty:  sub.Qty,
		})
	}
	return subs
}

func shortageError(result *conflicts.CheckResult) error {
	var parts []string
	for _, line := range result.Lines {
		if line.Shortage > 0 {
			parts = append(parts, fmt.Sprintf("%s (short %d)", line.Name, line.Shortage))
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict,
		fmt.Sprintf("equipment shortage: %s", strings.Join(parts, ", "))).
		WithDetails(map[string]any{"step": "conflict_check", "lines": result.Lines})
}

func validateActor(actor Actor) error {
	if strings.TrimSpace(actor.EmployeeID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "acting employee is required")
	}
	if !actor.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown employee role")
	}
	return nil
}

func actorRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{EmployeeID: actor.EmployeeID, Role: string(actor.Role)}
}
