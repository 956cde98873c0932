package offers

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
)

// Draft is a fully validated, priced offer that has not been persisted yet.
// The total is always recomputed here from the lines; client-sent totals are
// never trusted.
type Draft struct {
	Items         []models.OfferItem
	Substitutions []models.OfferSubstitution
	TotalCents    int
}

// BuildDraft validates the input lines against the loaded products, merges
// duplicate product lines, prices every line and sums the total. The product
// map must contain every product the lines reference.
func BuildDraft(input CommitOfferInput, products map[uuid.UUID]*models.Product) (*Draft, error) {
	if input.EventID == uuid.Nil {
		return nil, pkgerrors.Validation("event_id")
	}
	if !input.ClientType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid client type")
	}
	if err := validatePartyRefs(input); err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer needs at least one item")
	}

	draft := &Draft{}
	merged := make(map[uuid.UUID]int) // product ID -> index into draft.Items

	for i, line := range input.Items {
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("item %d: qty must be positive", i+1))
		}
		if line.DiscountPercent < 0 || line.DiscountPercent > 100 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("item %d: discount must be between 0 and 100", i+1))
		}

		var item models.OfferItem
		if line.ProductID != nil {
			built, err := productLine(i, line, products)
			if err != nil {
				return nil, err
			}
			item = *built

			// Identical product lines collapse into one with summed quantity.
			if idx, ok := merged[*line.ProductID]; ok && sameTerms(&draft.Items[idx], &item) {
				draft.Items[idx].Qty += item.Qty
				draft.Items[idx].SubtotalCents = lineSubtotalCents(
					draft.Items[idx].Qty, draft.Items[idx].UnitPriceCents, draft.Items[idx].DiscountPercent)
				continue
			}
			merged[*line.ProductID] = len(draft.Items)
		} else {
			built, err := adHocLine(i, line)
			if err != nil {
				return nil, err
			}
			item = *built
		}

		item.ID = uuid.New()
		item.SubtotalCents = lineSubtotalCents(item.Qty, item.UnitPriceCents, item.DiscountPercent)
		draft.Items = append(draft.Items, item)
	}

	for i := range draft.Items {
		draft.Items[i].DisplayOrder = i + 1
	}

	subs, err := buildSubstitutions(input.Substitutions)
	if err != nil {
		return nil, err
	}
	draft.Substitutions = subs

	total := 0
	for _, item := range draft.Items {
		total += item.SubtotalCents
	}
	draft.TotalCents = total
	return draft, nil
}

// validatePartyRefs enforces the client-type pairing: an individual offer
// points at a contact, a business offer at an organization, never both.
func validatePartyRefs(input CommitOfferInput) error {
	switch input.ClientType {
	case enums.ClientTypeIndividual:
		if input.ContactID == nil || *input.ContactID == uuid.Nil {
			return pkgerrors.Validation("contact_id")
		}
		if input.OrganizationID != nil {
			return pkgerrors.New(pkgerrors.CodeValidation,
				"individual offers cannot reference an organization").
				WithDetails(map[string]any{"field": "organization_id"})
		}
	case enums.ClientTypeBusiness:
		if input.OrganizationID == nil || *input.OrganizationID == uuid.Nil {
			return pkgerrors.Validation("organization_id")
		}
		if input.ContactID != nil {
			return pkgerrors.New(pkgerrors.CodeValidation,
				"business offers cannot reference a private contact").
				WithDetails(map[string]any{"field": "contact_id"})
		}
	}
	return nil
}

func productLine(index int, line OfferItemInput, products map[uuid.UUID]*models.Product) (*models.OfferItem, error) {
	product, ok := products[*line.ProductID]
	if !ok || product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("item %d: unknown product %s", index+1, line.ProductID))
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("item %d: product %q is no longer offered", index+1, product.Name))
	}

	item := &models.OfferItem{
		ProductID:       line.ProductID,
		Name:            product.Name,
		Description:     line.Description,
		Qty:             line.Qty,
		Unit:            product.Unit,
		UnitPriceCents:  product.DefaultPriceCents,
		DiscountPercent: line.DiscountPercent,
	}
	if strings.TrimSpace(line.Name) != "" {
		item.Name = strings.TrimSpace(line.Name)
	}
	if line.Unit != nil {
		if !line.Unit.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("item %d: invalid unit", index+1))
		}
		item.Unit = *line.Unit
	}
	if line.UnitPriceCents != nil {
		if *line.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("item %d: unit price cannot be negative", index+1))
		}
		item.UnitPriceCents = *line.UnitPriceCents
	}
	return item, nil
}

func adHocLine(index int, line OfferItemInput) (*models.OfferItem, error) {
	name := strings.TrimSpace(line.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("item %d: ad-hoc line needs a name", index+1))
	}
	if line.Unit == nil || !line.Unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("item %d: ad-hoc line needs a valid unit", index+1))
	}
	if line.UnitPriceCents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("item %d: ad-hoc line needs a unit price", index+1))
	}
	if *line.UnitPriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("item %d: ad-hoc line needs a positive unit price", index+1))
	}
	if line.SubcontractorID != nil && len(line.EquipmentIDs) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("item %d: line cannot reference both a subcontractor and own equipment", index+1))
	}
	if len(line.EquipmentIDs) == 0 && line.SubcontractorID == nil && !line.NeedsSubcontractor {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("item %d: ad-hoc line must reference equipment or be subcontractor-fulfilled", index+1))
	}

	return &models.OfferItem{
		Name:               name,
		Description:        line.Description,
		Qty:                line.Qty,
		Unit:               *line.Unit,
		UnitPriceCents:     *line.UnitPriceCents,
		DiscountPercent:    line.DiscountPercent,
		EquipmentIDs:       line.EquipmentIDs,
		SubcontractorID:    line.SubcontractorID,
		NeedsSubcontractor: line.NeedsSubcontractor || line.SubcontractorID != nil,
	}, nil
}

func buildSubstitutions(inputs []SubstitutionInput) ([]models.OfferSubstitution, error) {
	subs := make([]models.OfferSubstitution, 0, len(inputs))
	for i, sub := range inputs {
		if sub.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("substitution %d: qty must be positive", i+1))
		}
		if !sub.FromType.IsValid() || !sub.ToType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("substitution %d: invalid reference type", i+1))
		}
		if sub.FromType == sub.ToType && sub.FromItemID == sub.ToItemID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("substitution %d: source and target must differ", i+1))
		}
		subs = append(subs, models.OfferSubstitution{
			ID:         uuid.New(),
			FromType:   sub.FromType,
			FromItemID: sub.FromItemID,
			ToType:     sub.ToType,
			ToItemID:   sub.ToItemID,
			Qty:        sub.Qty,
		})
	}
	return subs, nil
}

func sameTerms(a, b *models.OfferItem) bool {
	return a.UnitPriceCents == b.UnitPriceCents &&
		a.DiscountPercent == b.DiscountPercent &&
		a.Unit == b.Unit
}

// lineSubtotalCents prices one line in integer cents, rounding half up after
// the discount is applied.
func lineSubtotalCents(qty, unitPriceCents int, discountPercent float64) int {
	gross := decimal.NewFromInt(int64(qty)).Mul(decimal.NewFromInt(int64(unitPriceCents)))
	if discountPercent == 0 {
		return int(gross.IntPart())
	}
	factor := decimal.NewFromFloat(100 - discountPercent).Div(decimal.NewFromInt(100))
	return int(gross.Mul(factor).Round(0).IntPart())
}
