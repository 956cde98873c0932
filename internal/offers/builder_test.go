package offers

import (
	"testing"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
)

func TestBuilderMergesRepeatedProduct(t *testing.T) {
	product := activeProduct(2000)
	b := NewBuilder()

	first, err := b.AddCatalogProduct(product, 2, 0)
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	second, err := b.AddCatalogProduct(product, 3, 0)
	if err != nil {
		t.Fatalf("add product again: %v", err)
	}
	if first != second {
		t.Fatal("expected repeated product on identical terms to merge")
	}
	items := b.Items()
	if len(items) != 1 || items[0].Qty != 5 {
		t.Fatalf("expected one merged line with qty 5, got %+v", items)
	}

	if _, err := b.AddCatalogProduct(product, 1, 10); err != nil {
		t.Fatalf("add discounted line: %v", err)
	}
	if len(b.Items()) != 2 {
		t.Fatal("expected different discount to stay a separate line")
	}
}

func TestBuilderRejectsInvalidCustomItem(t *testing.T) {
	b := NewBuilder()

	cases := []struct {
		name  string
		input OfferItemInput
	}{
		{
			name:  "missing name",
			input: OfferItemInput{Qty: 1, Unit: unitPtr(enums.OfferUnitFlat), UnitPriceCents: intPtr(100), NeedsSubcontractor: true},
		},
		{
			name:  "zero price",
			input: OfferItemInput{Name: "rigging", Qty: 1, Unit: unitPtr(enums.OfferUnitFlat), UnitPriceCents: intPtr(0), NeedsSubcontractor: true},
		},
		{
			name:  "no fulfilment source",
			input: OfferItemInput{Name: "rigging", Qty: 1, Unit: unitPtr(enums.OfferUnitFlat), UnitPriceCents: intPtr(100)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.AddCustomItem(tc.input)
			appErr := pkgerrors.As(err)
			if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(b.Items()) != 0 {
				t.Fatal("rejected item must not mutate the builder")
			}
		})
	}
}

func TestBuilderUpdateRevalidatesAndReprices(t *testing.T) {
	product := activeProduct(1000)
	products := map[uuid.UUID]*models.Product{product.ID: product}
	b := NewBuilder()

	id, err := b.AddCustomItem(OfferItemInput{
		Name:           "crew transport",
		Qty:            2,
		Unit:           unitPtr(enums.OfferUnitFlat),
		UnitPriceCents: intPtr(5000),
		EquipmentIDs:   []uuid.UUID{uuid.New()},
	})
	if err != nil {
		t.Fatalf("add custom item: %v", err)
	}

	total, err := b.Total(products)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 10000 {
		t.Fatalf("expected total 10000, got %d", total)
	}

	qty := 3
	price := 4000
	if err := b.UpdateItem(id, ItemPatch{Qty: &qty, UnitPriceCents: &price}); err != nil {
		t.Fatalf("update item: %v", err)
	}
	total, err = b.Total(products)
	if err != nil {
		t.Fatalf("total after update: %v", err)
	}
	if total != 12000 {
		t.Fatalf("expected total 12000 after update, got %d", total)
	}

	badPrice := 0
	if err := b.UpdateItem(id, ItemPatch{UnitPriceCents: &badPrice}); err == nil {
		t.Fatal("expected zero price to be rejected")
	}
	total, err = b.Total(products)
	if err != nil || total != 12000 {
		t.Fatalf("failed update must leave the line untouched, got total %d err %v", total, err)
	}
}

func TestBuilderRemoveItem(t *testing.T) {
	product := activeProduct(2500)
	b := NewBuilder()

	id, err := b.AddCatalogProduct(product, 1, 0)
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	if err := b.RemoveItem(id); err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if len(b.Items()) != 0 {
		t.Fatal("expected builder to be empty after removal")
	}

	err = b.RemoveItem(uuid.New())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found for unknown line, got %v", err)
	}
}
