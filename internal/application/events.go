package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/ports"
)

// Event emission is fire-and-forget: a failed enqueue is logged and never
// fails or rolls back the operation that produced it.

func (s *EscrowService) emit(ctx context.Context, eventType, partitionKey, traceID string, data any) {
	enqueueEvent(ctx, s.outbox, s.cfg.ServiceName, eventType, partitionKey, traceID, data, s.nowFn())
}

func (s *PaymentService) emit(ctx context.Context, eventType, partitionKey, traceID string, data any) {
	enqueueEvent(ctx, s.outbox, s.cfg.ServiceName, eventType, partitionKey, traceID, data, s.nowFn())
}

func enqueueEvent(ctx context.Context, outbox ports.OutboxRepository, sourceService, eventType, partitionKey, traceID string, data any, now time.Time) {
	if outbox == nil || !domain.IsCanonicalEmittedEvent(eventType) {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		logEventFailure(ctx, eventType, err)
		return
	}
	if strings.TrimSpace(traceID) == "" {
		traceID = uuid.NewString()
	}
	env := contracts.EventEnvelope{
		EventID:          uuid.NewString(),
		EventType:        eventType,
		EventClass:       domain.CanonicalEventClass(eventType),
		OccurredAt:       now,
		PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType),
		PartitionKey:     partitionKey,
		SourceService:    sourceService,
		TraceID:          traceID,
		SchemaVersion:    "v1",
		Data:             raw,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		logEventFailure(ctx, eventType, err)
		return
	}
	err = outbox.Enqueue(ctx, ports.OutboxRecord{
		RecordID:     uuid.NewString(),
		EventType:    eventType,
		EventClass:   env.EventClass,
		PartitionKey: partitionKey,
		Payload:      payload,
		CreatedAt:    now,
	})
	if err != nil {
		logEventFailure(ctx, eventType, err)
	}
}

func logEventFailure(ctx context.Context, eventType string, err error) {
	slog.Default().WarnContext(ctx, "event enqueue failed",
		"module", "application.events",
		"operation", "enqueue_event",
		"outcome", "failure",
		"event_type", eventType,
		"error", err,
	)
}
