package equipment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/internal/conflicts"
	"github.com/showrunr/eventcrm-backend/internal/substitutions"
	"github.com/showrunr/eventcrm-backend/pkg/db"
	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
)

type offerLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
}

type eventWindowLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.EventRecord, error)
}

type productBillLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Syncer rebuilds an offer's reservation ledger rows from its persisted line
// items. The rebuild is idempotent: existing rows for the offer are dropped
// and rewritten in one transaction, so a retried sync converges to the same
// ledger state.
type Syncer struct {
	offers   offerLoader
	events   eventWindowLoader
	products productBillLoader
	repo     *Repository
	dbClient *db.Client
	logger   *logger.Logger
	now      func() time.Time
}

// NewSyncer constructs a ledger syncer.
func NewSyncer(offers offerLoader, events eventWindowLoader, products productBillLoader, repo *Repository, dbClient *db.Client, logg *logger.Logger) (*Syncer, error) {
	if offers == nil {
		return nil, fmt.Errorf("offer loader required")
	}
	if events == nil {
		return nil, fmt.Errorf("event loader required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if repo == nil {
		return nil, fmt.Errorf("equipment repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &Syncer{
		offers:   offers,
		events:   events,
		products: products,
		repo:     repo,
		dbClient: dbClient,
		logger:   logg,
		now:      time.Now,
	}, nil
}

// SyncOfferReservations recomputes the item-level demand of the offer and
// replaces its ledger rows. A shortage that appeared since commit aborts the
// rebuild and leaves the previous ledger state untouched.
func (s *Syncer) SyncOfferReservations(ctx context.Context, offerID uuid.UUID) error {
	if offerID == uuid.Nil {
		return pkgerrors.Validation("offer_id")
	}

	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find offer")
	}

	event, err := s.events.FindByID(ctx, offer.EventID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find event for offer")
	}

	requests, err := s.itemDemand(ctx, offer)
	if err != nil {
		return err
	}

	window := ReservationWindow{
		OfferID:  offer.ID,
		EventID:  offer.EventID,
		StartsAt: event.StartsAt,
		EndsAt:   event.EndsAt,
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.DeleteReservationsByOffer(ctx, tx, offer.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: release reservations")
		}

		results, err := ReserveEquipment(ctx, tx, window, requests)
		if err != nil {
			return err
		}
		var shortages []string
		for _, result := range results {
			if !result.Reserved {
				shortages = append(shortages, fmt.Sprintf("%s: %s", result.ItemID, result.Reason))
			}
		}
		if len(shortages) > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("ledger sync blocked by shortages: %s", strings.Join(shortages, "; ")))
		}

		syncedAt := s.now().UTC()
		return tx.Model(&models.Offer{}).
			Where("id = ?", offer.ID).
			Update("ledger_synced_at", syncedAt).Error
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info(s.logger.WithOfferID(ctx, offer.ID.String()), "reservation ledger synced")
	}
	return nil
}

// itemDemand flattens the offer's lines, substitutions, and kit references
// into item-level reservation requests.
func (s *Syncer) itemDemand(ctx context.Context, offer *models.Offer) ([]ReservationRequest, error) {
	lines := make([]conflicts.DemandLine, 0, len(offer.Items))
	for _, item := range offer.Items {
		lines = append(lines, conflicts.DemandLine{
			ProductID:    item.ProductID,
			Qty:          item.Qty,
			EquipmentIDs: item.EquipmentIDs,
		})
	}

	products := make(map[uuid.UUID]*models.Product)
	if ids := productIDs(offer.Items); len(ids) > 0 {
		rows, err := s.products.FindByIDs(ctx, ids)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load products for sync")
		}
		for i := range rows {
			products[rows[i].ID] = &rows[i]
		}
	}

	demand, err := conflicts.BuildDemand(lines, products)
	if err != nil {
		return nil, err
	}
	demand, err = substitutions.Apply(demand, offerSubstitutions(offer))
	if err != nil {
		return nil, err
	}

	kits := make(map[uuid.UUID]*models.EquipmentKit)
	if kitIDs := conflicts.KitIDs(demand); len(kitIDs) > 0 {
		rows, err := s.repo.FindKitsByIDs(ctx, kitIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load kits for sync")
		}
		for i := range rows {
			kits[rows[i].ID] = &rows[i]
		}
	}

	itemQty, err := conflicts.ExplodeKits(demand, kits)
	if err != nil {
		return nil, err
	}

	requests := make([]ReservationRequest, 0, len(itemQty))
	for itemID, qty := range itemQty {
		requests = append(requests, ReservationRequest{ItemID: itemID, Qty: qty})
	}
	return requests, nil
}

func productIDs(items []models.OfferItem) []uuid.UUID {
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
	return ids
}

func offerSubstitutions(offer *models.Offer) []substitutions.Substitution {
	subs := make([]substitutions.Substitution, 0, len(offer.Substitutions))
	for _, sub := range offer.Substitutions {
		subs = append(subs, substitutions.Substitution{
			From: substitutions.Ref{Type: sub.FromType, ID: sub.FromItemID},
			To:   substitutions.Ref{Type: sub.ToType, ID: sub.ToItemID},
			Qty:  sub.Qty,
		})
	}
	return subs
}

// LedgerSyncPending reports whether the offer still needs a ledger rebuild.
func LedgerSyncPending(offer *models.Offer) bool {
	return offer != nil && offer.LedgerSyncedAt == nil
}
