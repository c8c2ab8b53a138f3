package application

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
)

// Create opens a new escrow account keyed by the caller's own account id.
// The caller becomes the first admin and a zero-value lock is issued so the
// lock invariant holds from the very first operation.
func (s *EscrowService) Create(ctx context.Context, actor Actor) (domain.EscrowAccount, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowAccount{}, domain.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	escrowID := actor.SubjectID
	if _, err := s.escrows.Get(ctx, escrowID); err == nil {
		return domain.EscrowAccount{}, domain.ErrEscrowAlreadyExists
	} else if !errors.Is(err, domain.ErrNoSuchEscrow) {
		return domain.EscrowAccount{}, err
	}

	now := s.nowFn()
	row := domain.EscrowAccount{
		EscrowID:      escrowID,
		Admins:        []string{actor.SubjectID},
		Contributions: []domain.Contribution{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.escrows.Create(ctx, row); err != nil {
		return domain.EscrowAccount{}, err
	}
	if err := s.ledger.SetLock(ctx, domain.EscrowLockTag, escrowID, 0); err != nil {
		return domain.EscrowAccount{}, err
	}
	if err := s.adminIndex.Put(ctx, domain.AdminIndexEntry{AdminID: actor.SubjectID, EscrowID: escrowID, CreatedAt: now}); err != nil {
		return domain.EscrowAccount{}, err
	}

	s.emit(ctx, domain.EventEscrowCreated, escrowID, actor.RequestID, contracts.EscrowCreatedPayload{
		EscrowID:  escrowID,
		CreatorID: actor.SubjectID,
		CreatedAt: now.UTC().Format(time.RFC3339),
	})
	return row, nil
}

// Fund appends a contribution record, moves the funds onto the escrow
// account, and re-issues the lock for the grown balance.
func (s *EscrowService) Fund(ctx context.Context, actor Actor, escrowID string, amount int64) (domain.EscrowAccount, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowAccount{}, domain.ErrUnauthorized
	}
	if amount <= 0 {
		return domain.EscrowAccount{}, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, err := s.escrows.Get(ctx, escrowID)
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	if esc.IsFrozen {
		return domain.EscrowAccount{}, domain.ErrFrozen
	}
	if !esc.IsOpen && !esc.IsAdmin(actor.SubjectID) {
		return domain.EscrowAccount{}, domain.ErrUnauthorized
	}
	if len(esc.Contributions) >= domain.MaxContributions {
		return domain.EscrowAccount{}, domain.ErrLimitExceeded
	}
	if err := s.ledger.EnsureCanWithdraw(ctx, actor.SubjectID, amount); err != nil {
		return domain.EscrowAccount{}, err
	}

	if err := s.ledger.Transfer(ctx, actor.SubjectID, escrowID, amount, true); err != nil {
		return domain.EscrowAccount{}, err
	}
	esc.Contributions = append(esc.Contributions, domain.Contribution{Contributor: actor.SubjectID, Amount: amount})
	esc.Amount += amount
	esc.TotalContributed += amount
	esc.UpdatedAt = s.nowFn()
	if err := s.ledger.SetLock(ctx, domain.EscrowLockTag, escrowID, esc.Amount); err != nil {
		return domain.EscrowAccount{}, err
	}
	if err := s.escrows.Update(ctx, esc); err != nil {
		return domain.EscrowAccount{}, err
	}

	s.emit(ctx, domain.EventEscrowFunded, escrowID, actor.RequestID, contracts.EscrowFundedPayload{
		EscrowID:         escrowID,
		FunderID:         actor.SubjectID,
		Amount:           amount,
		EscrowBalance:    esc.Amount,
		TotalContributed: esc.TotalContributed,
		FundedAt:         esc.UpdatedAt.UTC().Format(time.RFC3339),
	})
	return esc, nil
}

// Payout disburses escrow funds to a non-admin payee. Disbursement to an
// admin is categorically refused so pooled funds cannot be skimmed from the
// inside.
func (s *EscrowService) Payout(ctx context.Context, actor Actor, escrowID, payeeID string, amount int64) (domain.EscrowAccount, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowAccount{}, domain.ErrUnauthorized
	}
	if amount <= 0 || strings.TrimSpace(payeeID) == "" {
		return domain.EscrowAccount{}, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, err := s.escrows.Get(ctx, escrowID)
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	if esc.IsFrozen {
		return domain.EscrowAccount{}, domain.ErrFrozen
	}
	if !esc.IsAdmin(actor.SubjectID) {
		return domain.EscrowAccount{}, domain.ErrUnauthorized
	}
	if esc.IsAdmin(payeeID) {
		return domain.EscrowAccount{}, domain.ErrSelfDistribution
	}
	if amount > esc.Amount {
		return domain.EscrowAccount{}, domain.ErrInsufficientEscrowFunds
	}

	if err := s.ledger.RemoveLock(ctx, domain.EscrowLockTag, escrowID); err != nil {
		return domain.EscrowAccount{}, err
	}
	if err := s.ledger.Transfer(ctx, escrowID, payeeID, amount, true); err != nil {
		// Restore the lock so the balance stays non-spendable.
		_ = s.ledger.SetLock(ctx, domain.EscrowLockTag, escrowID, esc.Amount)
		return domain.EscrowAccount{}, err
	}
	esc.Amount -= amount
	esc.UpdatedAt = s.nowFn()
	if err := s.ledger.SetLock(ctx, domain.EscrowLockTag, escrowID, esc.Amount); err != nil {
		return domain.EscrowAccount{}, err
	}
	if err := s.escrows.Update(ctx, esc); err != nil {
		return domain.EscrowAccount{}, err
	}

	s.emit(ctx, domain.EventEscrowPaidOut, escrowID, actor.RequestID, contracts.EscrowPaidOutPayload{
		EscrowID:      escrowID,
		AdminID:       actor.SubjectID,
		PayeeID:       payeeID,
		Amount:        amount,
		EscrowBalance: esc.Amount,
		PaidOutAt:     esc.UpdatedAt.UTC().Format(time.RFC3339),
	})
	return esc, nil
}

// Close distributes the remaining balance to contributors proportionally to
// their lifetime contributions and deletes the escrow. Individual transfers
// are best-effort; a failed disbursement never aborts the close. Shares use
// truncating integer arithmetic, so the sum of disbursements can never
// exceed the remaining balance; truncation dust is left unclaimed on the
// removed account.
func (s *EscrowService) Close(ctx context.Context, actor Actor, escrowID string) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, err := s.escrows.Get(ctx, escrowID)
	if err != nil {
		return err
	}
	if esc.IsFrozen {
		return domain.ErrFrozen
	}
	if !esc.IsAdmin(actor.SubjectID) {
		return domain.ErrUnauthorized
	}

	if err := s.ledger.RemoveLock(ctx, domain.EscrowLockTag, escrowID); err != nil {
		return err
	}

	var totalDisbursed int64
	distributedTo := 0
	if esc.TotalContributed > 0 {
		for _, c := range esc.Contributions {
			share := proportionalShare(esc.Amount, c.Amount, esc.TotalContributed)
			if share == 0 {
				continue
			}
			if err := s.ledger.Transfer(ctx, escrowID, c.Contributor, share, true); err != nil {
				slog.Default().WarnContext(ctx, "close disbursement failed",
					"module", "application.escrow",
					"operation", "close",
					"escrow_id", escrowID,
					"contributor", c.Contributor,
					"amount", share,
					"error", err,
				)
				continue
			}
			totalDisbursed += share
			distributedTo++
		}
	}

	if err := s.escrows.Delete(ctx, escrowID); err != nil {
		return err
	}
	for _, admin := range esc.Admins {
		if err := s.adminIndex.Remove(ctx, admin, escrowID); err != nil {
			return err
		}
	}

	now := s.nowFn()
	s.emit(ctx, domain.EventEscrowClosed, escrowID, actor.RequestID, contracts.EscrowClosedPayload{
		EscrowID:        escrowID,
		AdminID:         actor.SubjectID,
		DistributedTo:   distributedTo,
		TotalDisbursed:  totalDisbursed,
		ResidualBalance: esc.Amount - totalDisbursed,
		ClosedAt:        now.UTC().Format(time.RFC3339),
	})
	return nil
}

// EnableOpenContribution lets any account fund the escrow.
func (s *EscrowService) EnableOpenContribution(ctx context.Context, actor Actor, escrowID string) error {
	return s.setOpen(ctx, actor, escrowID, true, domain.EventEscrowOpenEnabled)
}

// DisableOpenContribution restricts funding to admins.
func (s *EscrowService) DisableOpenContribution(ctx context.Context, actor Actor, escrowID string) error {
	return s.setOpen(ctx, actor, escrowID, false, domain.EventEscrowOpenDisabled)
}

func (s *EscrowService) setOpen(ctx context.Context, actor Actor, escrowID string, open bool, eventType string) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, err := s.escrows.Get(ctx, escrowID)
	if err != nil {
		return err
	}
	if esc.IsFrozen {
		return domain.ErrFrozen
	}
	if !esc.IsAdmin(actor.SubjectID) {
		return domain.ErrUnauthorized
	}

	esc.IsOpen = open
	esc.UpdatedAt = s.nowFn()
	if err := s.escrows.Update(ctx, esc); err != nil {
		return err
	}
	s.emit(ctx, eventType, escrowID, actor.RequestID, contracts.EscrowFlagChangedPayload{
		EscrowID:  escrowID,
		AdminID:   actor.SubjectID,
		ChangedAt: esc.UpdatedAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// Freeze blocks every mutating operation except Thaw. Freezing an already
// frozen escrow fails the same way any other mutation on it would.
func (s *EscrowService) Freeze(ctx context.Context, actor Actor, escrowID string) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, err := s.escrows.Get(ctx, escrowID)
	if err != nil {
		return err
	}
	if esc.IsFrozen {
		return domain.ErrFrozen
	}
	if !esc.IsAdmin(actor.SubjectID) {
		return domain.ErrUnauthorized
	}

	esc.IsFrozen = true
	esc.UpdatedAt = s.nowFn()
	if err := s.escrows.Update(ctx, esc); err != nil {
		return err
	}
	s.emit(ctx, domain.EventEscrowFrozen, escrowID, actor.RequestID, contracts.EscrowFlagChangedPayload{
		EscrowID:  escrowID,
		AdminID:   actor.SubjectID,
		ChangedAt: esc.UpdatedAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// Thaw lifts a freeze. It is the only mutation allowed while frozen.
func (s *EscrowService) Thaw(ctx context.Context, actor Actor, escrowID string) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, err := s.escrows.Get(ctx, escrowID)
	if err != nil {
		return err
	}
	if !esc.IsFrozen {
		return domain.ErrNotFrozen
	}
	if !esc.IsAdmin(actor.SubjectID) {
		return domain.ErrUnauthorized
	}

	esc.IsFrozen = false
	esc.UpdatedAt = s.nowFn()
	if err := s.escrows.Update(ctx, esc); err != nil {
		return err
	}
	s.emit(ctx, domain.EventEscrowThawed, escrowID, actor.RequestID, contracts.EscrowFlagChangedPayload{
		EscrowID:  escrowID,
		AdminID:   actor.SubjectID,
		ChangedAt: esc.UpdatedAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// AddAdmin appends a new admin and records it in the reverse-lookup index.
func (s *EscrowService) AddAdmin(ctx context.Context, actor Actor, escrowID, targetID string) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	if strings.TrimSpace(targetID) == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, err := s.escrows.Get(ctx, escrowID)
	if err != nil {
		return err
	}
	if esc.IsFrozen {
		return domain.ErrFrozen
	}
	if !esc.IsAdmin(actor.SubjectID) {
		return domain.ErrUnauthorized
	}
	if esc.IsAdmin(targetID) {
		return domain.ErrAdminAlreadyPresent
	}
	if len(esc.Admins) >= domain.MaxEscrowAdmins {
		return domain.ErrLimitExceeded
	}

	now := s.nowFn()
	esc.Admins = append(esc.Admins, targetID)
	esc.UpdatedAt = now
	if err := s.escrows.Update(ctx, esc); err != nil {
		return err
	}
	if err := s.adminIndex.Put(ctx, domain.AdminIndexEntry{AdminID: targetID, EscrowID: escrowID, CreatedAt: now}); err != nil {
		return err
	}
	s.emit(ctx, domain.EventEscrowAdminAdded, escrowID, actor.RequestID, contracts.EscrowAdminChangedPayload{
		EscrowID:  escrowID,
		AdminID:   actor.SubjectID,
		TargetID:  targetID,
		ChangedAt: now.UTC().Format(time.RFC3339),
	})
	return nil
}

// RemoveAdmin drops an admin from the set and the reverse-lookup index.
// Removing the last remaining admin is allowed and leaves the escrow
// permanently unmanageable; callers own that decision.
func (s *EscrowService) RemoveAdmin(ctx context.Context, actor Actor, escrowID, targetID string) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	if strings.TrimSpace(targetID) == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, err := s.escrows.Get(ctx, escrowID)
	if err != nil {
		return err
	}
	if esc.IsFrozen {
		return domain.ErrFrozen
	}
	if !esc.IsAdmin(actor.SubjectID) {
		return domain.ErrUnauthorized
	}
	if !esc.IsAdmin(targetID) {
		return domain.ErrAdminNotPresent
	}

	admins := make([]string, 0, len(esc.Admins)-1)
	for _, a := range esc.Admins {
		if a != targetID {
			admins = append(admins, a)
		}
	}
	esc.Admins = admins
	esc.UpdatedAt = s.nowFn()
	if err := s.escrows.Update(ctx, esc); err != nil {
		return err
	}
	if err := s.adminIndex.Remove(ctx, targetID, escrowID); err != nil {
		return err
	}
	s.emit(ctx, domain.EventEscrowAdminRemoved, escrowID, actor.RequestID, contracts.EscrowAdminChangedPayload{
		EscrowID:  escrowID,
		AdminID:   actor.SubjectID,
		TargetID:  targetID,
		ChangedAt: esc.UpdatedAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// GetEscrow returns the escrow account state.
func (s *EscrowService) GetEscrow(ctx context.Context, actor Actor, escrowID string) (domain.EscrowAccount, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.EscrowAccount{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(escrowID) == "" {
		return domain.EscrowAccount{}, domain.ErrInvalidInput
	}
	return s.escrows.Get(ctx, escrowID)
}

// ListEscrowsForAdmin resolves the admin-index projection back to accounts.
func (s *EscrowService) ListEscrowsForAdmin(ctx context.Context, actor Actor, adminID string) ([]domain.EscrowAccount, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(adminID) == "" {
		adminID = actor.SubjectID
	}
	ids, err := s.adminIndex.ListEscrowIDs(ctx, adminID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EscrowAccount, 0, len(ids))
	for _, id := range ids {
		esc, err := s.escrows.Get(ctx, id)
		if errors.Is(err, domain.ErrNoSuchEscrow) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, esc)
	}
	return out, nil
}

// WithdrawForClaim is the EscrowFundsSource implementation used by the
// payment engine during escrow-sourced claims. The lock is re-issued for the
// reduced balance in the same serialized section as the transfer.
func (s *EscrowService) WithdrawForClaim(ctx context.Context, escrowID, adminID, payeeID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, err := s.escrows.Get(ctx, escrowID)
	if errors.Is(err, domain.ErrNoSuchEscrow) {
		return domain.ErrNoEscrowAccountFound
	}
	if err != nil {
		return err
	}
	if esc.IsFrozen {
		return domain.ErrFrozen
	}
	if !esc.IsAdmin(adminID) {
		return domain.ErrUnauthorized
	}
	if amount > esc.Amount {
		return domain.ErrInsufficientEscrowFunds
	}

	if err := s.ledger.RemoveLock(ctx, domain.EscrowLockTag, escrowID); err != nil {
		return err
	}
	if err := s.ledger.Transfer(ctx, escrowID, payeeID, amount, true); err != nil {
		_ = s.ledger.SetLock(ctx, domain.EscrowLockTag, escrowID, esc.Amount)
		return err
	}
	esc.Amount -= amount
	esc.UpdatedAt = s.nowFn()
	if err := s.ledger.SetLock(ctx, domain.EscrowLockTag, escrowID, esc.Amount); err != nil {
		return err
	}
	return s.escrows.Update(ctx, esc)
}

// proportionalShare computes pool * contributed / total with truncation,
// widening through big.Int so the product cannot overflow int64.
func proportionalShare(pool, contributed, total int64) int64 {
	if total <= 0 || pool <= 0 || contributed <= 0 {
		return 0
	}
	n := new(big.Int).Mul(big.NewInt(pool), big.NewInt(contributed))
	n.Quo(n, big.NewInt(total))
	return n.Int64()
}
