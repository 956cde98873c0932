package offers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showrunr/eventcrm-backend/internal/conflicts"
	"github.com/showrunr/eventcrm-backend/internal/substitutions"
	"github.com/showrunr/eventcrm-backend/pkg/config"
	"github.com/showrunr/eventcrm-backend/pkg/db"
	"github.com/showrunr/eventcrm-backend/pkg/db/models"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/outbox"
)

type stubChecker struct {
	calls  int
	inputs []conflicts.CheckInput
	queue  []*conflicts.CheckResult
	result *conflicts.CheckResult
	err    error
}

func (s *stubChecker) Check(_ context.Context, input conflicts.CheckInput) (*conflicts.CheckResult, error) {
	s.calls++
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		return next, nil
	}
	return s.result, nil
}

type stubSyncer struct {
	calls []uuid.UUID
	err   error
}

func (s *stubSyncer) SyncOfferReservations(_ context.Context, offerID uuid.UUID) error {
	s.calls = append(s.calls, offerID)
	return s.err
}

type stubProducts struct {
	calls int
	rows  []models.Product
}

func (s *stubProducts) FindByIDs(_ context.Context, _ []uuid.UUID) ([]models.Product, error) {
	s.calls++
	return s.rows, nil
}

type stubEvents struct {
	calls int
	event *models.EventRecord
	err   error
}

func (s *stubEvents) FindByID(_ context.Context, _ uuid.UUID) (*models.EventRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.event, nil
}

type stubKits struct{ rows []models.EquipmentKit }

func (s *stubKits) FindKitsByIDs(_ context.Context, _ []uuid.UUID) ([]models.EquipmentKit, error) {
	return s.rows, nil
}

type recordingReleaser struct{ calls []uuid.UUID }

func (r *recordingReleaser) DeleteReservationsByOffer(ctx context.Context, tx *gorm.DB, offerID uuid.UUID) error {
	r.calls = append(r.calls, offerID)
	return tx.WithContext(ctx).Where("offer_id = ?", offerID).Delete(&models.EquipmentReservation{}).Error
}

type recordingEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) typesEmitted() []enums.OutboxEventType {
	var types []enums.OutboxEventType
	for _, event := range r.events {
		types = append(types, event.EventType)
	}
	return types
}

type serviceFixture struct {
	svc      Service
	client   *db.Client
	checker  *stubChecker
	syncer   *stubSyncer
	products *stubProducts
	events   *stubEvents
	releaser *recordingReleaser
	emitter  *recordingEmitter
}

func okCheckResult(eventID uuid.UUID) *conflicts.CheckResult {
	return &conflicts.CheckResult{EventID: eventID, CheckedAt: time.Now().UTC()}
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	dsn := "file:offers_" + uuid.NewString() + "?mode=memory&cache=shared"
	client, err := db.New(context.Background(), config.DBConfig{DSN: dsn}, true, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	stripFunctionDefaults(t, client.DB(),
		&models.EventRecord{},
		&models.Offer{},
		&models.OfferItem{},
		&models.OfferSubstitution{},
		&models.OfferNumberSeq{},
		&models.EquipmentItem{},
		&models.EquipmentReservation{},
	)
	err = client.DB().AutoMigrate(
		&models.EventRecord{},
		&models.Offer{},
		&models.OfferItem{},
		&models.OfferSubstitution{},
		&models.OfferNumberSeq{},
		&models.EquipmentItem{},
		&models.EquipmentReservation{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	event := &models.EventRecord{
		ID:       uuid.New(),
		Name:     "product launch",
		StartsAt: time.Date(2026, 9, 18, 17, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 9, 19, 1, 0, 0, 0, time.UTC),
	}

	fixture := &serviceFixture{
		client:   client,
		checker:  &stubChecker{result: okCheckResult(event.ID)},
		syncer:   &stubSyncer{},
		products: &stubProducts{},
		events:   &stubEvents{event: event},
		releaser: &recordingReleaser{},
		emitter:  &recordingEmitter{},
	}

	svc, err := NewService(
		NewRepository(client.DB()),
		client,
		fixture.products,
		fixture.events,
		&stubKits{},
		fixture.checker,
		fixture.syncer,
		fixture.releaser,
		fixture.emitter,
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func (f *serviceFixture) seedEquipmentItem(t *testing.T, total int) uuid.UUID {
	t.Helper()
	item := models.EquipmentItem{
		ID:       uuid.New(),
		Name:     "PA speaker",
		Category: enums.EquipmentCategorySound,
		TotalQty: total,
		Active:   true,
	}
	if err := f.client.DB().Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item.ID
}

func testActor() Actor {
	return Actor{EmployeeID: "emp-42", Role: enums.RoleSales}
}

func adHocCommitInput(eventID, itemID uuid.UUID, qty int) CommitOfferInput {
	price := 10000
	unit := enums.OfferUnitPiece
	return CommitOfferInput{
		EventID:        eventID,
		ClientType:     enums.ClientTypeBusiness,
		OrganizationID: uuidPtr(uuid.New()),
		SyncLedger:     true,
		Items: []OfferItemInput{{
			Name:           "stage sound",
			Qty:            qty,
			Unit:           &unit,
			UnitPriceCents: &price,
			EquipmentIDs:   []uuid.UUID{itemID},
		}},
	}
}

func TestCommitOfferHappyPath(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	itemID := f.seedEquipmentItem(t, 8)

	dto, err := f.svc.CommitOffer(context.Background(), testActor(), adHocCommitInput(f.events.event.ID, itemID, 3))
	if err != nil {
		t.Fatalf("commit offer: %v", err)
	}

	wantNumber := fmt.Sprintf("OF-%d-0001", time.Now().Year())
	if dto.OfferNumber != wantNumber {
		t.Fatalf("expected offer number %s, got %s", wantNumber, dto.OfferNumber)
	}
	if dto.TotalCents != 30000 {
		t.Fatalf("expected server-side total 30000, got %d", dto.TotalCents)
	}
	if dto.Status != enums.OfferStatusDraft {
		t.Fatalf("expected draft status, got %s", dto.Status)
	}
	if dto.CreatedBy != "emp-42" {
		t.Fatalf("expected creator from actor, got %s", dto.CreatedBy)
	}

	var reservations []models.EquipmentReservation
	if err := f.client.DB().Where("offer_id = ?", dto.ID).Find(&reservations).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if len(reservations) != 1 || reservations[0].Qty != 3 {
		t.Fatalf("expected one ledger row with qty 3, got %+v", reservations)
	}

	if f.checker.calls != 1 {
		t.Fatalf("expected exactly one availability re-check, got %d", f.checker.calls)
	}
	if got := f.emitter.typesEmitted(); len(got) != 1 || got[0] != enums.EventOfferCreated {
		t.Fatalf("expected offer_created event, got %v", got)
	}
	if len(f.syncer.calls) != 1 || f.syncer.calls[0] != dto.ID {
		t.Fatalf("expected ledger sync for committed offer, got %v", f.syncer.calls)
	}
}

func TestCommitOfferShortageAborts(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	itemID := f.seedEquipmentItem(t, 8)
	f.checker.result = &conflicts.CheckResult{
		EventID:     f.events.event.ID,
		HasShortage: true,
		Lines: []conflicts.AvailabilityLine{{
			Type: enums.EquipmentRefItem, RefID: itemID, Name: "PA speaker",
			Required: 10, TotalQty: 8, Reserved: 2, Available: 6, Shortage: 4,
		}},
	}

	_, err := f.svc.CommitOffer(context.Background(), testActor(), adHocCommitInput(f.events.event.ID, itemID, 10))
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}

	var count int64
	if err := f.client.DB().Model(&models.Offer{}).Count(&count).Error; err != nil {
		t.Fatalf("count offers: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no offer rows after shortage, got %d", count)
	}
	if len(f.emitter.events) != 0 {
		t.Fatalf("expected no outbox events, got %v", f.emitter.typesEmitted())
	}
	if len(f.syncer.calls) != 0 {
		t.Fatal("expected no ledger sync after aborted commit")
	}
}

func TestCommitOfferReserveRaceRollsBack(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	itemID := f.seedEquipmentItem(t, 8)

	// The check passes, but a competing offer grabbed the stock in between.
	competitor := models.EquipmentReservation{
		ID:       uuid.New(),
		OfferID:  uuid.New(),
		EventID:  uuid.New(),
		ItemType: enums.EquipmentRefItem,
		ItemID:   itemID,
		Qty:      7,
		StartsAt: f.events.event.StartsAt,
		EndsAt:   f.events.event.EndsAt,
	}
	if err := f.client.DB().Create(&competitor).Error; err != nil {
		t.Fatalf("seed competing reservation: %v", err)
	}

	_, err := f.svc.CommitOffer(context.Background(), testActor(), adHocCommitInput(f.events.event.ID, itemID, 3))
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}

	var offerCount int64
	if err := f.client.DB().Model(&models.Offer{}).Count(&offerCount).Error; err != nil {
		t.Fatalf("count offers: %v", err)
	}
	if offerCount != 0 {
		t.Fatalf("expected offer insert to roll back, got %d rows", offerCount)
	}

	var reservationCount int64
	if err := f.client.DB().Model(&models.EquipmentReservation{}).Count(&reservationCount).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if reservationCount != 1 {
		t.Fatalf("expected only the competing reservation to remain, got %d", reservationCount)
	}
}

func TestCommitOfferValidationSkipsBackends(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	_, err := f.svc.CommitOffer(context.Background(), testActor(), CommitOfferInput{
		EventID:        f.events.event.ID,
		ClientType:     enums.ClientTypeBusiness,
		OrganizationID: uuidPtr(uuid.New()),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.checker.calls != 0 || f.events.calls != 0 {
		t.Fatal("expected no backend calls for invalid input")
	}
}

func TestCommitOfferRequiresActor(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	_, err := f.svc.CommitOffer(context.Background(), Actor{}, adHocCommitInput(f.events.event.ID, uuid.New(), 1))
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestCommitOfferSyncFailureDoesNotFailCommit(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	itemID := f.seedEquipmentItem(t, 8)
	f.syncer.err = errors.New("worker pool exhausted")

	dto, err := f.svc.CommitOffer(context.Background(), testActor(), adHocCommitInput(f.events.event.ID, itemID, 2))
	if err != nil {
		t.Fatalf("commit offer: %v", err)
	}
	if dto.LedgerSynced {
		t.Fatal("expected ledger sync flag to stay unset")
	}
	if !dto.SyncFailed {
		t.Fatal("expected the failed sync to be flagged on the result")
	}

	types := f.emitter.typesEmitted()
	if len(types) != 2 || types[0] != enums.EventOfferCreated || types[1] != enums.EventLedgerSyncFailed {
		t.Fatalf("expected offer_created then ledger_sync_failed, got %v", types)
	}
}

func TestUpdateStatusDeclineReleasesReservations(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	itemID := f.seedEquipmentItem(t, 8)

	dto, err := f.svc.CommitOffer(context.Background(), testActor(), adHocCommitInput(f.events.event.ID, itemID, 3))
	if err != nil {
		t.Fatalf("commit offer: %v", err)
	}

	if _, err := f.svc.UpdateStatus(context.Background(), testActor(), dto.ID, enums.OfferStatusSent); err != nil {
		t.Fatalf("send offer: %v", err)
	}
	updated, err := f.svc.UpdateStatus(context.Background(), testActor(), dto.ID, enums.OfferStatusDeclined)
	if err != nil {
		t.Fatalf("decline offer: %v", err)
	}
	if updated.Status != enums.OfferStatusDeclined {
		t.Fatalf("expected declined status, got %s", updated.Status)
	}

	var count int64
	if err := f.client.DB().Model(&models.EquipmentReservation{}).Where("offer_id = ?", dto.ID).Count(&count).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected reservations released on decline, got %d", count)
	}
	if len(f.releaser.calls) != 1 || f.releaser.calls[0] != dto.ID {
		t.Fatalf("expected one release call, got %v", f.releaser.calls)
	}
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	itemID := f.seedEquipmentItem(t, 8)

	dto, err := f.svc.CommitOffer(context.Background(), testActor(), adHocCommitInput(f.events.event.ID, itemID, 1))
	if err != nil {
		t.Fatalf("commit offer: %v", err)
	}

	_, err = f.svc.UpdateStatus(context.Background(), testActor(), dto.ID, enums.OfferStatusAccepted)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for draft -> accepted, got %v", err)
	}
}

func TestDeleteOfferRemovesEverything(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	itemID := f.seedEquipmentItem(t, 8)

	dto, err := f.svc.CommitOffer(context.Background(), testActor(), adHocCommitInput(f.events.event.ID, itemID, 2))
	if err != nil {
		t.Fatalf("commit offer: %v", err)
	}

	if err := f.svc.DeleteOffer(context.Background(), testActor(), dto.ID); err != nil {
		t.Fatalf("delete offer: %v", err)
	}

	if _, err := f.svc.GetOffer(context.Background(), dto.ID); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
	var itemCount, reservationCount int64
	f.client.DB().Model(&models.OfferItem{}).Where("offer_id = ?", dto.ID).Count(&itemCount)
	f.client.DB().Model(&models.EquipmentReservation{}).Where("offer_id = ?", dto.ID).Count(&reservationCount)
	if itemCount != 0 || reservationCount != 0 {
		t.Fatalf("expected lines and reservations removed, got %d items %d reservations", itemCount, reservationCount)
	}

	types := f.emitter.typesEmitted()
	if types[len(types)-1] != enums.EventOfferDeleted {
		t.Fatalf("expected offer_deleted event last, got %v", types)
	}
}

func TestDeleteOfferAcceptedBlocked(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	itemID := f.seedEquipmentItem(t, 8)

	dto, err := f.svc.CommitOffer(context.Background(), testActor(), adHocCommitInput(f.events.event.ID, itemID, 1))
	if err != nil {
		t.Fatalf("commit offer: %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), testActor(), dto.ID, enums.OfferStatusSent); err != nil {
		t.Fatalf("send offer: %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), testActor(), dto.ID, enums.OfferStatusAccepted); err != nil {
		t.Fatalf("accept offer: %v", err)
	}

	err = f.svc.DeleteOffer(context.Background(), testActor(), dto.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict deleting accepted offer, got %v", err)
	}
}

func TestCommitOfferWithoutSyncFlagSkipsLedgerSync(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	itemID := f.seedEquipmentItem(t, 8)

	input := adHocCommitInput(f.events.event.ID, itemID, 2)
	input.SyncLedger = false

	dto, err := f.svc.CommitOffer(context.Background(), testActor(), input)
	if err != nil {
		t.Fatalf("commit offer: %v", err)
	}
	if len(f.syncer.calls) != 0 {
		t.Fatalf("expected no ledger sync without the flag, got %v", f.syncer.calls)
	}
	if dto.SyncFailed {
		t.Fatal("a skipped sync is not a failed sync")
	}
	if got := f.emitter.typesEmitted(); len(got) != 1 || got[0] != enums.EventOfferCreated {
		t.Fatalf("expected only offer_created, got %v", got)
	}
}

func TestCommitOfferExpandsSelectionsIntoSubstitutions(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	itemID := f.seedEquipmentItem(t, 8)
	altID := f.seedEquipmentItem(t, 8)

	// The drafting-time check reports 2 short on the requested item; the
	// caller picked an alternative without an explicit quantity.
	f.checker.queue = []*conflicts.CheckResult{{
		EventID: f.events.event.ID,
		Lines: []conflicts.AvailabilityLine{{
			Type: enums.EquipmentRefItem, RefID: itemID, Name: "PA speaker",
			Required: 3, TotalQty: 8, Reserved: 7, Available: 1, Shortage: 2,
		}},
		HasShortage: true,
	}}

	input := adHocCommitInput(f.events.event.ID, itemID, 3)
	input.Selections = substitutions.Selections{}
	input.Selections.Select(substitutions.Ref{Type: enums.EquipmentRefItem, ID: itemID}, altID, 0)

	dto, err := f.svc.CommitOffer(context.Background(), testActor(), input)
	if err != nil {
		t.Fatalf("commit offer: %v", err)
	}

	if f.checker.calls != 2 {
		t.Fatalf("expected a base check plus the commit re-check, got %d", f.checker.calls)
	}
	recheck := f.checker.inputs[1]
	if len(recheck.Substitutions) != 1 || recheck.Substitutions[0].Qty != 2 {
		t.Fatalf("expected the re-check to carry the expanded substitution, got %+v", recheck.Substitutions)
	}

	if len(dto.Substitutions) != 1 {
		t.Fatalf("expected one persisted substitution, got %+v", dto.Substitutions)
	}
	sub := dto.Substitutions[0]
	if sub.FromItemID != itemID || sub.ToItemID != altID || sub.Qty != 2 {
		t.Fatalf("expected 2 moved from requested item to alternative, got %+v", sub)
	}

	var reservations []models.EquipmentReservation
	if err := f.client.DB().Where("offer_id = ?", dto.ID).Order("qty ASC").Find(&reservations).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if len(reservations) != 2 {
		t.Fatalf("expected ledger rows for both items, got %+v", reservations)
	}
	if reservations[0].ItemID != itemID || reservations[0].Qty != 1 {
		t.Fatalf("expected 1 left on the requested item, got %+v", reservations[0])
	}
	if reservations[1].ItemID != altID || reservations[1].Qty != 2 {
		t.Fatalf("expected 2 on the alternative, got %+v", reservations[1])
	}
}
