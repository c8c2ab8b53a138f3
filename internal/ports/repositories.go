package ports

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
)

type EscrowRepository interface {
	Create(ctx context.Context, row domain.EscrowAccount) error
	Get(ctx context.Context, escrowID string) (domain.EscrowAccount, error)
	Update(ctx context.Context, row domain.EscrowAccount) error
	Delete(ctx context.Context, escrowID string) error
}

// AdminIndexRepository maintains the derived admin -> escrow projection.
// Only the escrow mutators write to it so the projection cannot drift from
// the authoritative admin list.
type AdminIndexRepository interface {
	Put(ctx context.Context, entry domain.AdminIndexEntry) error
	Remove(ctx context.Context, adminID, escrowID string) error
	ListEscrowIDs(ctx context.Context, adminID string) ([]string, error)
}

type PaymentAgreementRepository interface {
	Create(ctx context.Context, row domain.PaymentAgreement) error
	Get(ctx context.Context, payerID, payeeID, paymentID string) (domain.PaymentAgreement, error)
	Update(ctx context.Context, row domain.PaymentAgreement) error
}

type OutboxRecord struct {
	RecordID     string
	EventType    string
	EventClass   string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
	PublishedAt  *time.Time
	RetryCount   int
	LastError    string
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, recordID string, at time.Time) error
	MarkFailed(ctx context.Context, recordID string, reason string, at time.Time) error
}
