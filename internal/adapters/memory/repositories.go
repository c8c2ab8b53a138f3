package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/ports"
)

type Repositories struct {
	Escrows    *EscrowRepository
	AdminIndex *AdminIndexRepository
	Agreements *PaymentAgreementRepository
	Outbox     *OutboxRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Escrows:    &EscrowRepository{rows: map[string]domain.EscrowAccount{}},
		AdminIndex: &AdminIndexRepository{rows: map[string]map[string]time.Time{}},
		Agreements: &PaymentAgreementRepository{rows: map[agreementKey]domain.PaymentAgreement{}},
		Outbox:     &OutboxRepository{rows: map[string]ports.OutboxRecord{}, order: []string{}},
	}
}

type EscrowRepository struct {
	mu   sync.Mutex
	rows map[string]domain.EscrowAccount
}

func (r *EscrowRepository) Create(_ context.Context, row domain.EscrowAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[row.EscrowID]; ok {
		return domain.ErrConflict
	}
	r.rows[row.EscrowID] = cloneEscrow(row)
	return nil
}

func (r *EscrowRepository) Get(_ context.Context, escrowID string) (domain.EscrowAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[strings.TrimSpace(escrowID)]
	if !ok {
		return domain.EscrowAccount{}, domain.ErrNoSuchEscrow
	}
	return cloneEscrow(row), nil
}

func (r *EscrowRepository) Update(_ context.Context, row domain.EscrowAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[row.EscrowID]; !ok {
		return domain.ErrNoSuchEscrow
	}
	r.rows[row.EscrowID] = cloneEscrow(row)
	return nil
}

func (r *EscrowRepository) Delete(_ context.Context, escrowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[escrowID]; !ok {
		return domain.ErrNoSuchEscrow
	}
	delete(r.rows, escrowID)
	return nil
}

func cloneEscrow(row domain.EscrowAccount) domain.EscrowAccount {
	c := row
	c.Admins = append([]string(nil), row.Admins...)
	c.Contributions = append([]domain.Contribution(nil), row.Contributions...)
	return c
}

// AdminIndexRepository keys entries admin -> escrow -> creation time.
type AdminIndexRepository struct {
	mu   sync.Mutex
	rows map[string]map[string]time.Time
}

func (r *AdminIndexRepository) Put(_ context.Context, entry domain.AdminIndexEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byEscrow, ok := r.rows[entry.AdminID]
	if !ok {
		byEscrow = map[string]time.Time{}
		r.rows[entry.AdminID] = byEscrow
	}
	byEscrow[entry.EscrowID] = entry.CreatedAt
	return nil
}

func (r *AdminIndexRepository) Remove(_ context.Context, adminID, escrowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if byEscrow, ok := r.rows[adminID]; ok {
		delete(byEscrow, escrowID)
		if len(byEscrow) == 0 {
			delete(r.rows, adminID)
		}
	}
	return nil
}

func (r *AdminIndexRepository) ListEscrowIDs(_ context.Context, adminID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byEscrow := r.rows[adminID]
	out := make([]string, 0, len(byEscrow))
	for id := range byEscrow {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if !byEscrow[out[i]].Equal(byEscrow[out[j]]) {
			return byEscrow[out[i]].Before(byEscrow[out[j]])
		}
		return out[i] < out[j]
	})
	return out, nil
}

type agreementKey struct {
	payerID   string
	payeeID   string
	paymentID string
}

type PaymentAgreementRepository struct {
	mu   sync.Mutex
	rows map[agreementKey]domain.PaymentAgreement
}

func (r *PaymentAgreementRepository) Create(_ context.Context, row domain.PaymentAgreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := agreementKey{row.PayerID, row.PayeeID, row.PaymentID}
	if _, ok := r.rows[key]; ok {
		return domain.ErrConflict
	}
	r.rows[key] = cloneAgreement(row)
	return nil
}

func (r *PaymentAgreementRepository) Get(_ context.Context, payerID, payeeID, paymentID string) (domain.PaymentAgreement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[agreementKey{payerID, payeeID, paymentID}]
	if !ok {
		return domain.PaymentAgreement{}, domain.ErrNoSuchPayment
	}
	return cloneAgreement(row), nil
}

func (r *PaymentAgreementRepository) Update(_ context.Context, row domain.PaymentAgreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := agreementKey{row.PayerID, row.PayeeID, row.PaymentID}
	if _, ok := r.rows[key]; !ok {
		return domain.ErrNoSuchPayment
	}
	r.rows[key] = cloneAgreement(row)
	return nil
}

func cloneAgreement(row domain.PaymentAgreement) domain.PaymentAgreement {
	c := row
	c.PaymentSchedule = append([]domain.ScheduledPayment(nil), row.PaymentSchedule...)
	return c
}

type OutboxRepository struct {
	mu    sync.Mutex
	rows  map[string]ports.OutboxRecord
	order []string
}

func (r *OutboxRepository) Enqueue(_ context.Context, record ports.OutboxRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[record.RecordID]; ok {
		return domain.ErrConflict
	}
	r.rows[record.RecordID] = record
	r.order = append(r.order, record.RecordID)
	return nil
}

func (r *OutboxRepository) ListPending(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.order {
		row, ok := r.rows[id]
		if !ok || row.PublishedAt != nil {
			continue
		}
		out = append(out, row)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(_ context.Context, recordID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[recordID]
	if !ok {
		return domain.ErrNotFound
	}
	row.PublishedAt = &at
	r.rows[recordID] = row
	return nil
}

func (r *OutboxRepository) MarkFailed(_ context.Context, recordID string, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[recordID]
	if !ok {
		return domain.ErrNotFound
	}
	row.RetryCount++
	row.LastError = reason
	r.rows[recordID] = row
	return nil
}
