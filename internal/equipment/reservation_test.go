package equipment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
)

func TestReserveEquipment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	speakers := seedItem(t, db, "PA speaker", enums.EquipmentCategorySound, 8)
	mixers := seedItem(t, db, "mixing desk", enums.EquipmentCategorySound, 1)

	window := ReservationWindow{
		OfferID:  uuid.New(),
		EventID:  uuid.New(),
		StartsAt: time.Date(2026, 6, 12, 8, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 6, 13, 2, 0, 0, 0, time.UTC),
	}

	requests := []ReservationRequest{
		{ItemID: speakers, Qty: 6},
		{ItemID: speakers, Qty: 4},
		{ItemID: mixers, Qty: 1},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		results, terr := ReserveEquipment(ctx, tx, window, requests)
		if terr != nil {
			return terr
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if !results[0].Reserved || results[0].Reason != "" {
			t.Fatalf("expected first reservation to succeed: %+v", results[0])
		}
		if results[1].Reserved || results[1].Reason == "" {
			t.Fatalf("expected second reservation to fail with reason: %+v", results[1])
		}
		if !results[2].Reserved {
			t.Fatalf("expected third reservation to succeed: %+v", results[2])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}

	var rows []models.EquipmentReservation
	if err := db.Where("offer_id = ?", window.OfferID).Find(&rows).Error; err != nil {
		t.Fatalf("load reservations: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(rows))
	}
}

func TestReserveEquipmentOverlappingWindows(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	item := seedItem(t, db, "moving head", enums.EquipmentCategoryLighting, 10)
	eventID := uuid.New()

	reserve := func(offerID uuid.UUID, start, end time.Time, qty int) []ReservationResult {
		var results []ReservationResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var terr error
			results, terr = ReserveEquipment(ctx, tx, ReservationWindow{
				OfferID:  offerID,
				EventID:  eventID,
				StartsAt: start,
				EndsAt:   end,
			}, []ReservationRequest{{ItemID: item, Qty: qty}})
			return terr
		})
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		return results
	}

	day1 := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	day1End := day1.Add(12 * time.Hour)

	if res := reserve(uuid.New(), day1, day1End, 8); !res[0].Reserved {
		t.Fatalf("first window should reserve: %+v", res[0])
	}
	// Overlapping window only has 2 left.
	if res := reserve(uuid.New(), day1.Add(6*time.Hour), day1End.Add(6*time.Hour), 3); res[0].Reserved {
		t.Fatalf("overlapping window should be short: %+v", res[0])
	}
	// A disjoint window sees the full stock again.
	if res := reserve(uuid.New(), day1.AddDate(0, 0, 2), day1End.AddDate(0, 0, 2), 10); !res[0].Reserved {
		t.Fatalf("disjoint window should reserve: %+v", res[0])
	}
}

func TestReserveEquipmentExcludesOwnOffer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	item := seedItem(t, db, "stage deck", enums.EquipmentCategoryStage, 4)
	offerID := uuid.New()
	window := ReservationWindow{
		OfferID:  offerID,
		EventID:  uuid.New(),
		StartsAt: time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := ReserveEquipment(ctx, tx, window, []ReservationRequest{{ItemID: item, Qty: 4}})
		return terr
	})
	if err != nil {
		t.Fatalf("initial reserve: %v", err)
	}

	// Re-reserving for the same offer ignores its own rows.
	err = db.Transaction(func(tx *gorm.DB) error {
		if terr := ReleaseEquipment(ctx, tx, offerID); terr != nil {
			return terr
		}
		results, terr := ReserveEquipment(ctx, tx, window, []ReservationRequest{{ItemID: item, Qty: 3}})
		if terr != nil {
			return terr
		}
		if !results[0].Reserved {
			t.Fatalf("expected re-reserve to succeed: %+v", results[0])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("re-reserve transaction: %v", err)
	}

	var count int64
	if err := db.Model(&models.EquipmentReservation{}).Where("offer_id = ?", offerID).Count(&count).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 ledger row after rewrite, got %d", count)
	}
}

func TestReserveEquipmentInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	item := seedItem(t, db, "cable drum", enums.EquipmentCategoryPower, 5)

	_, err := ReserveEquipment(ctx, db, ReservationWindow{
		OfferID:  uuid.New(),
		EventID:  uuid.New(),
		StartsAt: time.Now(),
		EndsAt:   time.Now().Add(time.Hour),
	}, []ReservationRequest{{ItemID: item, Qty: 0}})
	if err == nil {
		t.Fatal("expected error for zero qty")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:equipment_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	stripFunctionDefaults(t, db, &models.EquipmentItem{}, &models.EquipmentKit{}, &models.EquipmentKitItem{}, &models.EquipmentReservation{})
	if err := db.AutoMigrate(&models.EquipmentItem{}, &models.EquipmentKit{}, &models.EquipmentKitItem{}, &models.EquipmentReservation{}); err != nil {
		t.Fatalf("migrate equipment: %v", err)
	}
	return db
}

func seedItem(t *testing.T, db *gorm.DB, name string, category enums.EquipmentCategory, total int) uuid.UUID {
	t.Helper()
	item := models.EquipmentItem{
		ID:       uuid.New(),
		Name:     name,
		Category: category,
		TotalQty: total,
		Active:   true,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item.ID
}
