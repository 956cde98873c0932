package conflicts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/internal/substitutions"
	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/metrics"
)

const maxAlternatives = 5

// Service answers equipment availability questions for an event window.
type Service interface {
	Check(ctx context.Context, input CheckInput) (*CheckResult, error)
}

// CheckInput describes one availability check. ExcludeOfferID removes an
// offer's own reservations from the reserved totals so re-checking a
// committed offer does not count against itself.
type CheckInput struct {
	EventID        uuid.UUID
	ExcludeOfferID *uuid.UUID
	Lines          []DemandLine
	Substitutions  []substitutions.Substitution
}

// Alternative is a same-category item with remaining availability, offered as
// a replacement for a shortage.
type Alternative struct {
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	Available int       `json:"available"`
}

// AvailabilityLine reports one demanded reference against the event window.
type AvailabilityLine struct {
	Type         enums.EquipmentRefType `json:"type"`
	RefID        uuid.UUID              `json:"ref_id"`
	Name         string                 `json:"name"`
	Required     int                    `json:"required"`
	TotalQty     int                    `json:"total_qty"`
	Reserved     int                    `json:"reserved"`
	Available    int                    `json:"available"`
	Shortage     int                    `json:"shortage"`
	Alternatives []Alternative          `json:"alternatives,omitempty"`
}

// CheckResult is the full outcome of one availability check.
type CheckResult struct {
	EventID     uuid.UUID          `json:"event_id"`
	StartsAt    time.Time          `json:"starts_at"`
	EndsAt      time.Time          `json:"ends_at"`
	Lines       []AvailabilityLine `json:"lines"`
	HasShortage bool               `json:"has_shortage"`
	CheckedAt   time.Time          `json:"checked_at"`
}

type eventLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.EventRecord, error)
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type equipmentReader interface {
	FindItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.EquipmentItem, error)
	FindKitsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.EquipmentKit, error)
	ListItemsByCategory(ctx context.Context, category enums.EquipmentCategory, excludeIDs []uuid.UUID) ([]models.EquipmentItem, error)
	ReservedQuantities(ctx context.Context, start, end time.Time, excludeOfferID *uuid.UUID) (map[uuid.UUID]int, error)
}

type service struct {
	events    eventLoader
	products  productLoader
	equipment equipmentReader
	metrics   *metrics.ConflictMetrics
	timeout   time.Duration
	now       func() time.Time
}

// NewService constructs a conflict-check service instance.
func NewService(events eventLoader, products productLoader, equipment equipmentReader, m *metrics.ConflictMetrics, timeout time.Duration) (Service, error) {
	if events == nil {
		return nil, fmt.Errorf("event loader required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if equipment == nil {
		return nil, fmt.Errorf("equipment reader required")
	}
	return &service{
		events:    events,
		products:  products,
		equipment: equipment,
		metrics:   m,
		timeout:   timeout,
		now:       time.Now,
	}, nil
}

// Check resolves the demand of the given lines against the event window. A
// failed backend never reads as availability: every error carries a conflict
// check or timeout code the caller must treat as "unknown".
func (s *service) Check(ctx context.Context, input CheckInput) (*CheckResult, error) {
	started := s.now()
	result, err := s.check(ctx, input)
	if err != nil {
		s.metrics.ObserveCheck("error", s.now().Sub(started))
		return nil, err
	}
	outcome := "ok"
	if result.HasShortage {
		outcome = "shortage"
		s.metrics.IncShortage()
	}
	s.metrics.ObserveCheck(outcome, s.now().Sub(started))
	return result, nil
}

func (s *service) check(ctx context.Context, input CheckInput) (*CheckResult, error) {
	// No event means no window to check against: an empty result, not an
	// error, and no backend reads.
	if input.EventID == uuid.Nil {
		return &CheckResult{CheckedAt: s.now().UTC()}, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	event, err := s.events.FindByID(ctx, input.EventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, s.dependencyError(err, "load event")
	}

	demand, err := s.buildDemand(ctx, input)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		EventID:   event.ID,
		StartsAt:  event.StartsAt,
		EndsAt:    event.EndsAt,
		CheckedAt: s.now().UTC(),
	}
	if len(demand) == 0 {
		return result, nil
	}

	kits, err := s.loadKits(ctx, demand)
	if err != nil {
		return nil, err
	}

	itemIDs := collectItemIDs(demand, kits)
	items, err := s.loadItems(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	reserved, err := s.equipment.ReservedQuantities(ctx, event.StartsAt, event.EndsAt, input.ExcludeOfferID)
	if err != nil {
		return nil, s.dependencyError(err, "load reservations")
	}

	for ref, required := range demand {
		line, err := s.buildLine(ctx, ref, required, items, kits, reserved, itemIDs)
		if err != nil {
			return nil, err
		}
		if line.Shortage > 0 {
			result.HasShortage = true
		}
		result.Lines = append(result.Lines, *line)
	}

	sort.Slice(result.Lines, func(i, j int) bool {
		if result.Lines[i].Name != result.Lines[j].Name {
			return result.Lines[i].Name < result.Lines[j].Name
		}
		return result.Lines[i].RefID.String() < result.Lines[j].RefID.String()
	})
	return result, nil
}

func (s *service) buildDemand(ctx context.Context, input CheckInput) (substitutions.Demand, error) {
	productIDs := make([]uuid.UUID, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.ProductID != nil {
			productIDs = append(productIDs, *line.ProductID)
		}
	}

	products := make(map[uuid.UUID]*models.Product, len(productIDs))
	if len(productIDs) > 0 {
		rows, err := s.products.FindByIDs(ctx, productIDs)
		if err != nil {
			return nil, s.dependencyError(err, "load products")
		}
		for i := range rows {
			products[rows[i].ID] = &rows[i]
		}
	}

	demand, err := BuildDemand(input.Lines, products)
	if err != nil {
		return nil, err
	}
	demand, err = substitutions.Apply(demand, input.Substitutions)
	if err != nil {
		return nil, err
	}
	return demand, nil
}

func (s *service) loadKits(ctx context.Context, demand substitutions.Demand) (map[uuid.UUID]*models.EquipmentKit, error) {
	kitIDs := KitIDs(demand)
	kits := make(map[uuid.UUID]*models.EquipmentKit, len(kitIDs))
	if len(kitIDs) == 0 {
		return kits, nil
	}
	rows, err := s.equipment.FindKitsByIDs(ctx, kitIDs)
	if err != nil {
		return nil, s.dependencyError(err, "load kits")
	}
	for i := range rows {
		kits[rows[i].ID] = &rows[i]
	}
	for _, id := range kitIDs {
		if _, ok := kits[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown kit %s", id))
		}
	}
	return kits, nil
}

func (s *service) loadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.EquipmentItem, error) {
	items := make(map[uuid.UUID]*models.EquipmentItem, len(ids))
	if len(ids) == 0 {
		return items, nil
	}
	rows, err := s.equipment.FindItemsByIDs(ctx, ids)
	if err != nil {
		return nil, s.dependencyError(err, "load equipment items")
	}
	for i := range rows {
		items[rows[i].ID] = &rows[i]
	}
	for _, id := range ids {
		if _, ok := items[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown equipment item %s", id))
		}
	}
	return items, nil
}

func (s *service) buildLine(
	ctx context.Context,
	ref substitutions.Ref,
	required int,
	items map[uuid.UUID]*models.EquipmentItem,
	kits map[uuid.UUID]*models.EquipmentKit,
	reserved map[uuid.UUID]int,
	demandedItems []uuid.UUID,
) (*AvailabilityLine, error) {
	line := &AvailabilityLine{Type: ref.Type, RefID: ref.ID, Required: required}

	switch ref.Type {
	case enums.EquipmentRefItem:
		item := items[ref.ID]
		line.Name = item.Name
		line.TotalQty = item.TotalQty
		line.Reserved = reserved[item.ID]
		line.Available = max(0, item.TotalQty-reserved[item.ID])
	case enums.EquipmentRefKit:
		kit := kits[ref.ID]
		line.Name = kit.Name
		line.Available = kitAvailability(kit, items, reserved)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid equipment reference type %q", ref.Type))
	}

	if required > line.Available {
		line.Shortage = required - line.Available
		if ref.Type == enums.EquipmentRefItem {
			alts, err := s.alternatives(ctx, items[ref.ID], reserved, demandedItems)
			if err != nil {
				return nil, err
			}
			line.Alternatives = alts
		}
	}
	return line, nil
}

// kitAvailability is the floor over members of how many full kits the
// remaining stock can assemble.
func kitAvailability(kit *models.EquipmentKit, items map[uuid.UUID]*models.EquipmentItem, reserved map[uuid.UUID]int) int {
	if len(kit.Items) == 0 {
		return 0
	}
	available := -1
	for _, member := range kit.Items {
		if member.Qty <= 0 {
			return 0
		}
		item, ok := items[member.ItemID]
		if !ok {
			return 0
		}
		free := max(0, item.TotalQty-reserved[item.ID])
		sets := free / member.Qty
		if available == -1 || sets < available {
			available = sets
		}
	}
	return max(0, available)
}

func (s *service) alternatives(ctx context.Context, item *models.EquipmentItem, reserved map[uuid.UUID]int, excludeIDs []uuid.UUID) ([]Alternative, error) {
	candidates, err := s.equipment.ListItemsByCategory(ctx, item.Category, excludeIDs)
	if err != nil {
		return nil, s.dependencyError(err, "load alternatives")
	}

	var alts []Alternative
	for _, candidate := range candidates {
		free := candidate.TotalQty - reserved[candidate.ID]
		if free <= 0 {
			continue
		}
		alts = append(alts, Alternative{ItemID: candidate.ID, Name: candidate.Name, Available: free})
		if len(alts) == maxAlternatives {
			break
		}
	}
	return alts, nil
}

func (s *service) dependencyError(err error, step string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, fmt.Sprintf("conflict check timed out: %s", step))
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflictCheck, err, fmt.Sprintf("conflict check: %s", step))
}

func collectItemIDs(demand substitutions.Demand, kits map[uuid.UUID]*models.EquipmentKit) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for ref := range demand {
		if ref.Type == enums.EquipmentRefItem {
			add(ref.ID)
		}
	}
	for _, kit := range kits {
		for _, member := range kit.Items {
			add(member.ItemID)
		}
	}
	return ids
}
