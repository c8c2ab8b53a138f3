package unit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	eventadapter "github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/adapters/events"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
)

func TestOutboxWorkerPublishesEnvelopesOnce(t *testing.T) {
	t.Parallel()
	f := newEscrowFixture()
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, actor("alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.balances.Deposit("alice", 100)
	if _, err := f.svc.Fund(ctx, actor("alice"), "alice", 100); err != nil {
		t.Fatalf("Fund: %v", err)
	}

	publisher := eventadapter.NewMemoryPublisher()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := eventadapter.NewOutboxWorker(logger, f.repos.Outbox, publisher, time.Second, 10)

	if err := worker.ProcessOnce(ctx); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	messages := publisher.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 published messages, got %d", len(messages))
	}

	var envelope contracts.EventEnvelope
	if err := json.Unmarshal(messages[1].Payload, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.EventType != domain.EventEscrowFunded {
		t.Fatalf("expected %s, got %s", domain.EventEscrowFunded, envelope.EventType)
	}
	if envelope.EventClass != domain.CanonicalEventClassDomain {
		t.Fatalf("expected domain class, got %s", envelope.EventClass)
	}
	if envelope.PartitionKey != "alice" {
		t.Fatalf("expected partition key alice, got %s", envelope.PartitionKey)
	}
	if envelope.EventID == "" || envelope.SchemaVersion == "" {
		t.Fatalf("envelope missing identity fields: %+v", envelope)
	}

	// Published records must not be re-delivered.
	if err := worker.ProcessOnce(ctx); err != nil {
		t.Fatalf("ProcessOnce second pass: %v", err)
	}
	if got := len(publisher.Messages()); got != 2 {
		t.Fatalf("expected no re-delivery, got %d messages", got)
	}
}
