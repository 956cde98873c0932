package offers

import (
	"testing"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
)

func activeProduct(priceCents int) *models.Product {
	return &models.Product{
		ID:                uuid.New(),
		Name:              "Sound Package",
		Unit:              enums.OfferUnitPackage,
		DefaultPriceCents: priceCents,
		Active:            true,
	}
}

func intPtr(v int) *int                          { return &v }
func unitPtr(u enums.OfferUnit) *enums.OfferUnit { return &u }
func uuidPtr(id uuid.UUID) *uuid.UUID            { return &id }

func TestBuildDraftPricesWithDiscount(t *testing.T) {
	product := activeProduct(10000)
	input := CommitOfferInput{
		EventID:        uuid.New(),
		ClientType:     enums.ClientTypeBusiness,
		OrganizationID: uuidPtr(uuid.New()),
		Items: []OfferItemInput{
			{ProductID: &product.ID, Qty: 5, DiscountPercent: 10},
		},
	}

	draft, err := BuildDraft(input, map[uuid.UUID]*models.Product{product.ID: product})
	if err != nil {
		t.Fatalf("build draft: %v", err)
	}
	if len(draft.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(draft.Items))
	}
	if draft.Items[0].SubtotalCents != 45000 {
		t.Fatalf("expected subtotal 45000, got %d", draft.Items[0].SubtotalCents)
	}
	if draft.TotalCents != 45000 {
		t.Fatalf("expected total 45000, got %d", draft.TotalCents)
	}
	if draft.Items[0].Unit != enums.OfferUnitPackage {
		t.Fatalf("expected unit from product, got %s", draft.Items[0].Unit)
	}
	if draft.Items[0].ID == uuid.Nil {
		t.Fatal("expected item id to be assigned")
	}
}

func TestBuildDraftRoundsHalfUp(t *testing.T) {
	// 150 * 0.85 = 127.5, which rounds up to 128.
	product := activeProduct(150)
	input := CommitOfferInput{
		EventID:    uuid.New(),
		ClientType: enums.ClientTypeIndividual,
		ContactID:  uuidPtr(uuid.New()),
		Items: []OfferItemInput{
			{ProductID: &product.ID, Qty: 1, DiscountPercent: 15},
		},
	}

	draft, err := BuildDraft(input, map[uuid.UUID]*models.Product{product.ID: product})
	if err != nil {
		t.Fatalf("build draft: %v", err)
	}
	if draft.TotalCents != 128 {
		t.Fatalf("expected total 128, got %d", draft.TotalCents)
	}
}

func TestBuildDraftMergesDuplicateProductLines(t *testing.T) {
	product := activeProduct(2000)
	input := CommitOfferInput{
		EventID:        uuid.New(),
		ClientType:     enums.ClientTypeBusiness,
		OrganizationID: uuidPtr(uuid.New()),
		Items: []OfferItemInput{
			{ProductID: &product.ID, Qty: 2},
			{Name: "crew transport", Qty: 1, Unit: unitPtr(enums.OfferUnitFlat), UnitPriceCents: intPtr(30000), NeedsSubcontractor: true},
			{ProductID: &product.ID, Qty: 3},
		},
	}

	draft, err := BuildDraft(input, map[uuid.UUID]*models.Product{product.ID: product})
	if err != nil {
		t.Fatalf("build draft: %v", err)
	}
	if len(draft.Items) != 2 {
		t.Fatalf("expected duplicate product lines to merge into 2 items, got %d", len(draft.Items))
	}
	if draft.Items[0].Qty != 5 {
		t.Fatalf("expected merged qty 5, got %d", draft.Items[0].Qty)
	}
	if draft.Items[0].SubtotalCents != 10000 {
		t.Fatalf("expected merged subtotal 10000, got %d", draft.Items[0].SubtotalCents)
	}
	if draft.TotalCents != 40000 {
		t.Fatalf("expected total 40000, got %d", draft.TotalCents)
	}
	for i, item := range draft.Items {
		if item.DisplayOrder != i+1 {
			t.Fatalf("expected sequential display order, got %+v", draft.Items)
		}
	}
}

func TestBuildDraftKeepsDistinctTermsSeparate(t *testing.T) {
	product := activeProduct(2000)
	input := CommitOfferInput{
		EventID:        uuid.New(),
		ClientType:     enums.ClientTypeBusiness,
		OrganizationID: uuidPtr(uuid.New()),
		Items: []OfferItemInput{
			{ProductID: &product.ID, Qty: 2},
			{ProductID: &product.ID, Qty: 3, DiscountPercent: 50},
		},
	}

	draft, err := BuildDraft(input, map[uuid.UUID]*models.Product{product.ID: product})
	if err != nil {
		t.Fatalf("build draft: %v", err)
	}
	if len(draft.Items) != 2 {
		t.Fatalf("expected lines with different discounts to stay separate, got %d", len(draft.Items))
	}
}

func TestBuildDraftValidation(t *testing.T) {
	product := activeProduct(1000)
	inactive := activeProduct(1000)
	inactive.Active = false
	products := map[uuid.UUID]*models.Product{product.ID: product, inactive.ID: inactive}

	base := CommitOfferInput{EventID: uuid.New(), ClientType: enums.ClientTypeBusiness, OrganizationID: uuidPtr(uuid.New())}

	cases := []struct {
		name  string
		input CommitOfferInput
	}{
		{
			name:  "missing event",
			input: CommitOfferInput{ClientType: enums.ClientTypeBusiness, OrganizationID: uuidPtr(uuid.New()), Items: []OfferItemInput{{ProductID: &product.ID, Qty: 1}}},
		},
		{
			name:  "no items",
			input: base,
		},
		{
			name: "zero qty",
			input: func() CommitOfferInput {
				in := base
				in.Items = []OfferItemInput{{ProductID: &product.ID, Qty: 0}}
				return in
			}(),
		},
		{
			name: "discount out of range",
			input: func() CommitOfferInput {
				in := base
				in.Items = []OfferItemInput{{ProductID: &product.ID, Qty: 1, DiscountPercent: 120}}
				return in
			}(),
		},
		{
			name: "inactive product",
			input: func() CommitOfferInput {
				in := base
				in.Items = []OfferItemInput{{ProductID: &inactive.ID, Qty: 1}}
				return in
			}(),
		},
		{
			name: "ad-hoc without name",
			input: func() CommitOfferInput {
				in := base
				in.Items = []OfferItemInput{{Qty: 1, Unit: unitPtr(enums.OfferUnitFlat), UnitPriceCents: intPtr(100)}}
				return in
			}(),
		},
		{
			name: "ad-hoc without price",
			input: func() CommitOfferInput {
				in := base
				in.Items = []OfferItemInput{{Name: "rigging", Qty: 1, Unit: unitPtr(enums.OfferUnitFlat)}}
				return in
			}(),
		},
		{
			name: "ad-hoc zero price",
			input: func() CommitOfferInput {
				in := base
				in.Items = []OfferItemInput{{Name: "stage hands", Qty: 1, Unit: unitPtr(enums.OfferUnitHour), UnitPriceCents: intPtr(0), NeedsSubcontractor: true}}
				return in
			}(),
		},
		{
			name: "ad-hoc negative price",
			input: func() CommitOfferInput {
				in := base
				in.Items = []OfferItemInput{{Name: "stage hands", Qty: 1, Unit: unitPtr(enums.OfferUnitHour), UnitPriceCents: intPtr(-50), NeedsSubcontractor: true}}
				return in
			}(),
		},
		{
			name: "ad-hoc without fulfilment source",
			input: func() CommitOfferInput {
				in := base
				in.Items = []OfferItemInput{{Name: "stage hands", Qty: 1, Unit: unitPtr(enums.OfferUnitHour), UnitPriceCents: intPtr(4500)}}
				return in
			}(),
		},
		{
			name: "ad-hoc with both fulfilment sources",
			input: func() CommitOfferInput {
				in := base
				sub := uuid.New()
				in.Items = []OfferItemInput{{Name: "stage hands", Qty: 1, Unit: unitPtr(enums.OfferUnitHour), UnitPriceCents: intPtr(4500), SubcontractorID: &sub, EquipmentIDs: []uuid.UUID{uuid.New()}}}
				return in
			}(),
		},
		{
			name: "business without organization",
			input: CommitOfferInput{EventID: uuid.New(), ClientType: enums.ClientTypeBusiness, Items: []OfferItemInput{{ProductID: &product.ID, Qty: 1}}},
		},
		{
			name: "business with contact",
			input: func() CommitOfferInput {
				in := base
				in.ContactID = uuidPtr(uuid.New())
				in.Items = []OfferItemInput{{ProductID: &product.ID, Qty: 1}}
				return in
			}(),
		},
		{
			name: "individual without contact",
			input: CommitOfferInput{EventID: uuid.New(), ClientType: enums.ClientTypeIndividual, Items: []OfferItemInput{{ProductID: &product.ID, Qty: 1}}},
		},
		{
			name: "individual with organization",
			input: CommitOfferInput{EventID: uuid.New(), ClientType: enums.ClientTypeIndividual, ContactID: uuidPtr(uuid.New()), OrganizationID: uuidPtr(uuid.New()), Items: []OfferItemInput{{ProductID: &product.ID, Qty: 1}}},
		},
		{
			name: "substitution zero qty",
			input: func() CommitOfferInput {
				in := base
				in.Items = []OfferItemInput{{ProductID: &product.ID, Qty: 1}}
				in.Substitutions = []SubstitutionInput{{
					FromType: enums.EquipmentRefItem, FromItemID: uuid.New(),
					ToType: enums.EquipmentRefItem, ToItemID: uuid.New(),
				}}
				return in
			}(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildDraft(tc.input, products)
			appErr := pkgerrors.As(err)
			if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
