package offers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	"github.com/showrunr/eventcrm-backend/pkg/pagination"
)

func setupOffersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:offers_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	stripFunctionDefaults(t, db,
		&models.Offer{},
		&models.OfferItem{},
		&models.OfferSubstitution{},
		&models.OfferNumberSeq{},
	)
	require.NoError(t, db.AutoMigrate(
		&models.Offer{},
		&models.OfferItem{},
		&models.OfferSubstitution{},
		&models.OfferNumberSeq{},
	))
	return db
}

func seedOffer(t *testing.T, db *gorm.DB, eventID uuid.UUID, status enums.OfferStatus, number string, createdAt time.Time) uuid.UUID {
	t.Helper()

	offer := models.Offer{
		ID:                  uuid.New(),
		EventID:             eventID,
		ClientType:          enums.ClientTypeBusiness,
		OfferNumber:         number,
		Status:              status,
		TotalCents:          48000,
		CreatedByEmployeeID: "emp-1",
		CreatedAt:           createdAt,
		Items: []models.OfferItem{
			{
				ID:             uuid.New(),
				Name:           "stage rig",
				Qty:            2,
				Unit:           enums.OfferUnitPiece,
				UnitPriceCents: 24000,
				SubtotalCents:  48000,
				DisplayOrder:   1,
			},
		},
	}
	require.NoError(t, db.Create(&offer).Error)
	return offer.ID
}

func TestRepositoryNextOfferNumber(t *testing.T) {
	t.Parallel()

	db := setupOffersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first, err := repo.NextOfferNumber(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, "OF-2026-0001", first)

	second, err := repo.NextOfferNumber(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, "OF-2026-0002", second)

	otherYear, err := repo.NextOfferNumber(ctx, 2027)
	require.NoError(t, err)
	assert.Equal(t, "OF-2027-0001", otherYear, "years keep independent sequences")
}

func TestRepositoryFindByIDPreloadsLines(t *testing.T) {
	t.Parallel()

	db := setupOffersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	subFrom := uuid.New()
	subTo := uuid.New()
	offer := models.Offer{
		ID:                  uuid.New(),
		EventID:             uuid.New(),
		ClientType:          enums.ClientTypeIndividual,
		OfferNumber:         "OF-2026-0100",
		Status:              enums.OfferStatusDraft,
		CreatedByEmployeeID: "emp-2",
		Items: []models.OfferItem{
			{ID: uuid.New(), Name: "second line", Qty: 1, Unit: enums.OfferUnitPiece, DisplayOrder: 2},
			{ID: uuid.New(), Name: "first line", Qty: 1, Unit: enums.OfferUnitPiece, DisplayOrder: 1},
		},
		Substitutions: []models.OfferSubstitution{
			{
				ID:         uuid.New(),
				FromType:   enums.EquipmentRefItem,
				FromItemID: subFrom,
				ToType:     enums.EquipmentRefItem,
				ToItemID:   subTo,
				Qty:        3,
			},
		},
	}
	require.NoError(t, db.Create(&offer).Error)

	found, err := repo.FindByID(ctx, offer.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 2)
	assert.Equal(t, "first line", found.Items[0].Name, "items come back in display order")
	assert.Equal(t, "second line", found.Items[1].Name)
	require.Len(t, found.Substitutions, 1)
	assert.Equal(t, subFrom, found.Substitutions[0].FromItemID)
}

func TestRepositoryListFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	db := setupOffersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	eventA := uuid.New()
	eventB := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedOffer(t, db, eventA, enums.OfferStatusDraft, "OF-2026-0001", base)
	seedOffer(t, db, eventA, enums.OfferStatusAccepted, "OF-2026-0002", base.Add(time.Minute))
	seedOffer(t, db, eventB, enums.OfferStatusDraft, "OF-2026-0003", base.Add(2*time.Minute))

	rows, next, err := repo.List(ctx, pagination.Params{Limit: 10}, ListFilters{EventID: &eventA})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Empty(t, next)

	draft := enums.OfferStatusDraft
	rows, _, err = repo.List(ctx, pagination.Params{Limit: 10}, ListFilters{EventID: &eventA, Status: &draft})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "OF-2026-0001", rows[0].OfferNumber)

	rows, next, err = repo.List(ctx, pagination.Params{Limit: 2}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotEmpty(t, next, "a third row should produce a cursor")
	assert.Equal(t, "OF-2026-0003", rows[0].OfferNumber, "newest first")

	rows, _, err = repo.List(ctx, pagination.Params{Limit: 2, Cursor: next}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "OF-2026-0001", rows[0].OfferNumber)
}

func TestRepositoryUpdateStatusAndDelete(t *testing.T) {
	t.Parallel()

	db := setupOffersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	offerID := seedOffer(t, db, uuid.New(), enums.OfferStatusDraft, "OF-2026-0050", time.Now().UTC())

	require.NoError(t, repo.UpdateStatus(ctx, offerID, enums.OfferStatusSent))
	found, err := repo.FindByID(ctx, offerID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusSent, found.Status)

	err = repo.UpdateStatus(ctx, uuid.New(), enums.OfferStatusSent)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.Delete(ctx, offerID))
	_, err = repo.FindByID(ctx, offerID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var items []models.OfferItem
	require.NoError(t, db.Where("offer_id = ?", offerID).Find(&items).Error)
	assert.Empty(t, items, "line items go with the offer")

	err = repo.Delete(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryMarkLedgerSyncFailed(t *testing.T) {
	t.Parallel()

	db := setupOffersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	offerID := seedOffer(t, db, uuid.New(), enums.OfferStatusAccepted, "OF-2026-0060", time.Now().UTC())
	syncedAt := time.Now().UTC()
	require.NoError(t, db.Model(&models.Offer{}).Where("id = ?", offerID).Update("ledger_synced_at", syncedAt).Error)

	require.NoError(t, repo.MarkLedgerSyncFailed(ctx, offerID))

	found, err := repo.FindByID(ctx, offerID)
	require.NoError(t, err)
	assert.Nil(t, found.LedgerSyncedAt)
}
