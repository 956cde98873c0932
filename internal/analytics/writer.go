package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/showrunr/eventcrm-backend/pkg/config"
	"github.com/showrunr/eventcrm-backend/pkg/enums"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
)

// OfferEventRow is the flattened analytics record written per offer event.
type OfferEventRow struct {
	EventID       string    `bigquery:"event_id"`
	EventType     string    `bigquery:"event_type"`
	OfferID       string    `bigquery:"offer_id"`
	ProducedEvent string    `bigquery:"produced_event_id"`
	OfferNumber   string    `bigquery:"offer_number"`
	TotalCents    int64     `bigquery:"total_cents"`
	ActorID       string    `bigquery:"actor_employee_id"`
	OccurredAt    time.Time `bigquery:"occurred_at"`
	IngestedAt    time.Time `bigquery:"ingested_at"`
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Writer streams offer lifecycle rows into the analytics table. Inserts are
// retried with exponential backoff since streaming inserts fail transiently.
type Writer struct {
	inserter    tableInserter
	table       string
	maxAttempts uint64
	baseDelay   time.Duration
	logger      *logger.Logger
	now         func() time.Time
}

// NewWriter constructs an analytics writer for the configured table.
func NewWriter(inserter tableInserter, cfg config.BigQueryConfig, logg *logger.Logger) (*Writer, error) {
	if inserter == nil {
		return nil, fmt.Errorf("table inserter required")
	}
	if cfg.OfferEventsTable == "" {
		return nil, fmt.Errorf("offer events table required")
	}
	return &Writer{
		inserter:    inserter,
		table:       cfg.OfferEventsTable,
		maxAttempts: 4,
		baseDelay:   250 * time.Millisecond,
		logger:      logg,
		now:         time.Now,
	}, nil
}

// Record describes one offer lifecycle fact to persist.
type Record struct {
	EventID       string
	EventType     enums.OutboxEventType
	OfferID       uuid.UUID
	ProducedEvent uuid.UUID
	OfferNumber   string
	TotalCents    int
	ActorID       string
	OccurredAt    time.Time
}

// WriteOfferEvent inserts one row, retrying transient streaming failures.
func (w *Writer) WriteOfferEvent(ctx context.Context, record Record) error {
	if record.EventID == "" {
		return pkgerrors.Validation("event_id")
	}
	if !record.EventType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid event type")
	}

	row := OfferEventRow{
		EventID:       record.EventID,
		EventType:     string(record.EventType),
		OfferID:       record.OfferID.String(),
		ProducedEvent: record.ProducedEvent.String(),
		OfferNumber:   record.OfferNumber,
		TotalCents:    int64(record.TotalCents),
		ActorID:       record.ActorID,
		OccurredAt:    record.OccurredAt.UTC(),
		IngestedAt:    w.now().UTC(),
	}

	backoff := retry.WithMaxRetries(w.maxAttempts, retry.NewExponential(w.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := w.inserter.InsertRows(ctx, w.table, []any{row}); err != nil {
			if w.logger != nil {
				w.logger.Warn(w.logger.WithField(ctx, "table", w.table), "analytics insert failed, retrying")
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bigquery: insert offer event")
	}
	return nil
}
