package offers

import (
	"strings"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
)

// Builder accumulates offer lines incrementally before they are committed.
// Every mutation validates first and leaves the builder untouched on
// failure; the total is recomputed from the lines on every read.
type Builder struct {
	lines []builderLine
}

type builderLine struct {
	id    uuid.UUID
	input OfferItemInput
}

// ItemPatch updates individual fields of a builder line. Nil fields keep
// their current value.
type ItemPatch struct {
	Name            *string
	Description     *string
	Qty             *int
	Unit            *enums.OfferUnit
	UnitPriceCents  *int
	DiscountPercent *float64
}

// NewBuilder returns an empty offer builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddCatalogProduct appends a line for the given catalog product. Adding the
// same product again on identical terms bumps the quantity of the existing
// line instead of appending.
func (b *Builder) AddCatalogProduct(product *models.Product, qty int, discountPercent float64) (uuid.UUID, error) {
	if product == nil {
		return uuid.Nil, pkgerrors.Validation("product_id")
	}
	if !product.Active {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation,
			"product "+product.Name+" is no longer offered")
	}
	if qty <= 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}
	if discountPercent < 0 || discountPercent > 100 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
	}

	productID := product.ID
	for i := range b.lines {
		line := &b.lines[i]
		if line.input.ProductID != nil && *line.input.ProductID == productID &&
			line.input.DiscountPercent == discountPercent &&
			line.input.Unit == nil && line.input.UnitPriceCents == nil {
			line.input.Qty += qty
			return line.id, nil
		}
	}

	id := uuid.New()
	b.lines = append(b.lines, builderLine{
		id: id,
		input: OfferItemInput{
			ProductID:       &productID,
			Qty:             qty,
			DiscountPercent: discountPercent,
		},
	})
	return id, nil
}

// AddCustomItem appends an ad-hoc line. The line must carry a name, a valid
// unit, a positive price, and either equipment references or a subcontractor
// source; a rejected line leaves the builder unchanged.
func (b *Builder) AddCustomItem(input OfferItemInput) (uuid.UUID, error) {
	if input.ProductID != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation,
			"custom items cannot reference a catalog product")
	}
	if input.Qty <= 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}
	if input.DiscountPercent < 0 || input.DiscountPercent > 100 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
	}
	if _, err := adHocLine(len(b.lines), input); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	b.lines = append(b.lines, builderLine{id: id, input: input})
	return id, nil
}

// UpdateItem merges the patch into the identified line. The merged line is
// re-validated in full before it replaces the current one.
func (b *Builder) UpdateItem(id uuid.UUID, patch ItemPatch) error {
	idx := b.indexOf(id)
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "offer line not found")
	}

	merged := b.lines[idx].input
	if patch.Name != nil {
		merged.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		merged.Description = patch.Description
	}
	if patch.Qty != nil {
		merged.Qty = *patch.Qty
	}
	if patch.Unit != nil {
		merged.Unit = patch.Unit
	}
	if patch.UnitPriceCents != nil {
		merged.UnitPriceCents = patch.UnitPriceCents
	}
	if patch.DiscountPercent != nil {
		merged.DiscountPercent = *patch.DiscountPercent
	}

	if merged.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}
	if merged.DiscountPercent < 0 || merged.DiscountPercent > 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
	}
	if merged.ProductID == nil {
		if _, err := adHocLine(idx, merged); err != nil {
			return err
		}
	} else if merged.Unit != nil && !merged.Unit.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid unit")
	}

	b.lines[idx].input = merged
	return nil
}

// RemoveItem drops the identified line.
func (b *Builder) RemoveItem(id uuid.UUID) error {
	idx := b.indexOf(id)
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "offer line not found")
	}
	b.lines = append(b.lines[:idx], b.lines[idx+1:]...)
	return nil
}

// Items returns the accumulated lines in insertion order, ready for
// CommitOfferInput.
func (b *Builder) Items() []OfferItemInput {
	items := make([]OfferItemInput, 0, len(b.lines))
	for _, line := range b.lines {
		items = append(items, line.input)
	}
	return items
}

// Total prices the current lines against the given products and returns the
// sum in cents. It never caches: any surviving mutation is reflected here.
func (b *Builder) Total(products map[uuid.UUID]*models.Product) (int, error) {
	total := 0
	for i, line := range b.lines {
		var item *models.OfferItem
		var err error
		if line.input.ProductID != nil {
			item, err = productLine(i, line.input, products)
		} else {
			item, err = adHocLine(i, line.input)
		}
		if err != nil {
			return 0, err
		}
		total += lineSubtotalCents(item.Qty, item.UnitPriceCents, item.DiscountPercent)
	}
	return total, nil
}

func (b *Builder) indexOf(id uuid.UUID) int {
	for i := range b.lines {
		if b.lines[i].id == id {
			return i
		}
	}
	return -1
}
