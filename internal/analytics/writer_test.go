package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/showrunr/eventcrm-backend/pkg/config"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
)

type fakeInserter struct {
	calls    int
	failures int
	rows     []any
}

func (f *fakeInserter) InsertRows(_ context.Context, _ string, rows []any) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("stream temporarily unavailable")
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func newTestWriter(t *testing.T, inserter *fakeInserter) *Writer {
	t.Helper()
	writer, err := NewWriter(inserter, config.BigQueryConfig{Dataset: "eventcrm", OfferEventsTable: "offer_events"}, nil)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	writer.baseDelay = time.Millisecond
	return writer
}

func testRecord() Record {
	return Record{
		EventID:       uuid.NewString(),
		EventType:     enums.EventOfferCreated,
		OfferID:       uuid.New(),
		ProducedEvent: uuid.New(),
		OfferNumber:   "OF-2026-0007",
		TotalCents:    45000,
		ActorID:       "emp-42",
		OccurredAt:    time.Now(),
	}
}

func TestWriteOfferEventRetriesTransientFailures(t *testing.T) {
	inserter := &fakeInserter{failures: 2}
	writer := newTestWriter(t, inserter)

	if err := writer.WriteOfferEvent(context.Background(), testRecord()); err != nil {
		t.Fatalf("write offer event: %v", err)
	}
	if inserter.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inserter.calls)
	}
	if len(inserter.rows) != 1 {
		t.Fatalf("expected 1 row inserted, got %d", len(inserter.rows))
	}
	row, ok := inserter.rows[0].(OfferEventRow)
	if !ok {
		t.Fatalf("unexpected row type %T", inserter.rows[0])
	}
	if row.EventType != string(enums.EventOfferCreated) || row.TotalCents != 45000 {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestWriteOfferEventGivesUpAfterMaxAttempts(t *testing.T) {
	inserter := &fakeInserter{failures: 100}
	writer := newTestWriter(t, inserter)

	err := writer.WriteOfferEvent(context.Background(), testRecord())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if inserter.calls != 5 {
		t.Fatalf("expected 5 attempts (1 + 4 retries), got %d", inserter.calls)
	}
}

func TestWriteOfferEventValidates(t *testing.T) {
	writer := newTestWriter(t, &fakeInserter{})

	record := testRecord()
	record.EventID = ""
	if err := writer.WriteOfferEvent(context.Background(), record); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error, got %v", err)
	}

	record = testRecord()
	record.EventType = "unknown_event"
	if err := writer.WriteOfferEvent(context.Background(), record); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error, got %v", err)
	}
}
