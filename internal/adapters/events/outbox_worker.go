package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/ports"
)

// OutboxWorker pulls unpublished outbox records and publishes them.
// This separates transactional writes from broker delivery for reliability.
type OutboxWorker struct {
	logger    *slog.Logger
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	interval  time.Duration
	batchSize int
}

func NewOutboxWorker(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, interval time.Duration, batchSize int) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxWorker{
		logger:    logger,
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run executes the periodic outbox publish loop until context cancellation.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce drains one batch of pending records.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) error {
	pending, err := w.outbox.ListPending(ctx, w.batchSize)
	if err != nil {
		return err
	}
	for _, record := range pending {
		if err := w.publisher.Publish(ctx, record.EventType, record.Payload, record.PartitionKey); err != nil {
			if markErr := w.outbox.MarkFailed(ctx, record.RecordID, err.Error(), time.Now().UTC()); markErr != nil {
				w.logger.ErrorContext(ctx, "mark outbox record failed",
					"module", "events.outbox_worker",
					"record_id", record.RecordID,
					"error", markErr,
				)
			}
			continue
		}
		if err := w.outbox.MarkPublished(ctx, record.RecordID, time.Now().UTC()); err != nil {
			w.logger.ErrorContext(ctx, "mark outbox record published",
				"module", "events.outbox_worker",
				"record_id", record.RecordID,
				"error", err,
			)
		}
	}
	return nil
}
