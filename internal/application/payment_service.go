package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
)

// Initialize stores a payment agreement verbatim under (payer, payee,
// payment id). The schedule is not validated against the total and dates are
// not required to ascend; both are caller responsibilities. Re-invocation
// with the same key fails ErrPaymentAlreadyInitialized and leaves the first
// agreement untouched, so upstream workflows can call this defensively.
func (s *PaymentService) Initialize(ctx context.Context, actor Actor, input InitializePaymentInput) (domain.PaymentAgreement, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.PaymentAgreement{}, domain.ErrUnauthorized
	}
	input.PayeeID = strings.TrimSpace(input.PayeeID)
	input.PaymentID = strings.TrimSpace(input.PaymentID)
	input.PaymentAccountID = strings.TrimSpace(input.PaymentAccountID)
	if input.PayeeID == "" || input.PaymentID == "" || input.PaymentAccountID == "" {
		return domain.PaymentAgreement{}, domain.ErrInvalidInput
	}
	source := domain.PaymentSource(input.Source)
	if source != domain.PaymentSourcePersonal && source != domain.PaymentSourceEscrow {
		return domain.PaymentAgreement{}, domain.ErrInvalidInput
	}
	if len(input.PaymentSchedule) > domain.MaxScheduledPayments {
		return domain.PaymentAgreement{}, domain.ErrLimitExceeded
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.agreements.Get(ctx, actor.SubjectID, input.PayeeID, input.PaymentID); err == nil {
		return domain.PaymentAgreement{}, domain.ErrPaymentAlreadyInitialized
	} else if !errors.Is(err, domain.ErrNoSuchPayment) {
		return domain.PaymentAgreement{}, err
	}

	schedule := make([]domain.ScheduledPayment, 0, len(input.PaymentSchedule))
	for _, sp := range input.PaymentSchedule {
		schedule = append(schedule, domain.ScheduledPayment{
			PaymentDate:    sp.PaymentDate,
			AmountPerClaim: sp.AmountPerClaim,
			Released:       sp.Released,
		})
	}
	now := s.nowFn()
	row := domain.PaymentAgreement{
		PayerID:            actor.SubjectID,
		PayeeID:            input.PayeeID,
		PaymentID:          input.PaymentID,
		RFPReferenceID:     input.RFPReferenceID,
		TotalPaymentAmount: input.TotalPaymentAmount,
		PaymentSchedule:    schedule,
		PaymentMethod:      domain.PaymentMethod{Source: source, AccountID: input.PaymentAccountID},
		AdministratorID:    actor.SubjectID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.agreements.Create(ctx, row); err != nil {
		return domain.PaymentAgreement{}, err
	}

	s.emit(ctx, domain.EventPaymentInitialized, row.PaymentID, actor.RequestID, contracts.PaymentInitializedPayload{
		PayerID:            row.PayerID,
		PayeeID:            row.PayeeID,
		PaymentID:          row.PaymentID,
		PayingAccountID:    row.PaymentMethod.AccountID,
		TotalPaymentAmount: row.TotalPaymentAmount,
		Installments:       len(row.PaymentSchedule),
		InitializedAt:      now.UTC().Format(time.RFC3339),
	})
	return row, nil
}

// Claim pays out the head of the schedule to the calling payee. The head
// must be due and released. Personal-account agreements transfer directly;
// escrow-sourced agreements delegate through the escrow funds source, and
// the schedule only advances once that delegated step has succeeded, so the
// two commit or fail together.
func (s *PaymentService) Claim(ctx context.Context, actor Actor, payerID, paymentID string) (ClaimResult, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return ClaimResult{}, domain.ErrUnauthorized
	}
	payerID = strings.TrimSpace(payerID)
	paymentID = strings.TrimSpace(paymentID)
	if payerID == "" || paymentID == "" {
		return ClaimResult{}, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	agreement, err := s.agreements.Get(ctx, payerID, actor.SubjectID, paymentID)
	if err != nil {
		return ClaimResult{}, err
	}
	if len(agreement.PaymentSchedule) == 0 {
		return ClaimResult{}, domain.ErrNoScheduledPayment
	}
	next := agreement.PaymentSchedule[0]
	if s.nowFn().Unix() < next.PaymentDate {
		return ClaimResult{}, domain.ErrPaymentNotAvailable
	}
	if !next.Released {
		return ClaimResult{}, domain.ErrPaymentNotReleased
	}

	switch agreement.PaymentMethod.Source {
	case domain.PaymentSourceEscrow:
		if err := s.escrowFunds.WithdrawForClaim(ctx, agreement.PaymentMethod.AccountID, payerID, actor.SubjectID, next.AmountPerClaim); err != nil {
			return ClaimResult{}, err
		}
	default:
		if err := s.ledger.Transfer(ctx, agreement.PaymentMethod.AccountID, actor.SubjectID, next.AmountPerClaim, true); err != nil {
			return ClaimResult{}, err
		}
	}

	agreement.PaymentSchedule = agreement.PaymentSchedule[1:]
	agreement.UpdatedAt = s.nowFn()
	if err := s.agreements.Update(ctx, agreement); err != nil {
		return ClaimResult{}, err
	}

	s.emit(ctx, domain.EventPaymentClaimed, paymentID, actor.RequestID, contracts.PaymentClaimedPayload{
		PayerID:   payerID,
		PayeeID:   actor.SubjectID,
		PaymentID: paymentID,
		Amount:    next.AmountPerClaim,
		Source:    string(agreement.PaymentMethod.Source),
		ClaimedAt: agreement.UpdatedAt.UTC().Format(time.RFC3339),
	})
	return ClaimResult{AmountClaimed: next.AmountPerClaim, RemainingClaims: len(agreement.PaymentSchedule)}, nil
}

// BlockNextPayment blocks exactly the next due claim. Once that claim is
// made and removed, the newly exposed head keeps whatever released value it
// was given at schedule creation unless re-blocked; that carry-over is
// intended.
func (s *PaymentService) BlockNextPayment(ctx context.Context, actor Actor, payeeID, paymentID string) error {
	return s.setNextReleaseStatus(ctx, actor, payeeID, paymentID, false)
}

// ReleaseNextPayment frees the next due claim for claiming.
func (s *PaymentService) ReleaseNextPayment(ctx context.Context, actor Actor, payeeID, paymentID string) error {
	return s.setNextReleaseStatus(ctx, actor, payeeID, paymentID, true)
}

func (s *PaymentService) setNextReleaseStatus(ctx context.Context, actor Actor, payeeID, paymentID string, released bool) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	payeeID = strings.TrimSpace(payeeID)
	paymentID = strings.TrimSpace(paymentID)
	if payeeID == "" || paymentID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	agreement, err := s.agreements.Get(ctx, actor.SubjectID, payeeID, paymentID)
	if err != nil {
		return err
	}
	if len(agreement.PaymentSchedule) == 0 {
		return domain.ErrNoScheduledPayment
	}

	agreement.PaymentSchedule[0].Released = released
	agreement.UpdatedAt = s.nowFn()
	if err := s.agreements.Update(ctx, agreement); err != nil {
		return err
	}

	s.emit(ctx, domain.EventPaymentReleaseStatusSet, paymentID, actor.RequestID, contracts.PaymentReleaseStatusPayload{
		PayerID:   actor.SubjectID,
		PayeeID:   payeeID,
		PaymentID: paymentID,
		Released:  released,
		ChangedAt: agreement.UpdatedAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// GetAgreement returns the stored agreement for the triple key.
func (s *PaymentService) GetAgreement(ctx context.Context, actor Actor, payerID, payeeID, paymentID string) (domain.PaymentAgreement, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.PaymentAgreement{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(payerID) == "" || strings.TrimSpace(payeeID) == "" || strings.TrimSpace(paymentID) == "" {
		return domain.PaymentAgreement{}, domain.ErrInvalidInput
	}
	return s.agreements.Get(ctx, payerID, payeeID, paymentID)
}
