package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/adapters/ledger"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
)

type settlementFixture struct {
	escrows  *application.EscrowService
	payments *application.PaymentService
	repos    *memory.Repositories
	balances *ledger.MemoryBalanceService
	now      time.Time
}

func newSettlementFixture() *settlementFixture {
	f := &settlementFixture{
		repos:    memory.NewRepositories(),
		balances: ledger.NewMemoryBalanceService(0),
		now:      time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	nowFn := func() time.Time { return f.now }
	f.escrows = application.NewEscrowService(application.EscrowDependencies{
		Escrows:    f.repos.Escrows,
		AdminIndex: f.repos.AdminIndex,
		Outbox:     f.repos.Outbox,
		Ledger:     f.balances,
		NowFn:      nowFn,
	})
	f.payments = application.NewPaymentService(application.PaymentDependencies{
		Agreements:  f.repos.Agreements,
		Ledger:      f.balances,
		EscrowFunds: f.escrows,
		Outbox:      f.repos.Outbox,
		NowFn:       nowFn,
	})
	return f
}

func (f *settlementFixture) initialize(t *testing.T, payer string, input application.InitializePaymentInput) domain.PaymentAgreement {
	t.Helper()
	agreement, err := f.payments.Initialize(context.Background(), actor(payer), input)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return agreement
}

func personalInput(payee, paymentID, account string, schedule ...application.ScheduledPaymentInput) application.InitializePaymentInput {
	return application.InitializePaymentInput{
		PayeeID:            payee,
		PaymentID:          paymentID,
		RFPReferenceID:     "rfp-1",
		TotalPaymentAmount: 1000,
		PaymentSchedule:    schedule,
		Source:             string(domain.PaymentSourcePersonal),
		PaymentAccountID:   account,
	}
}

func TestInitializeRejectsDuplicateKey(t *testing.T) {
	t.Parallel()
	f := newSettlementFixture()
	ctx := context.Background()

	first := f.initialize(t, "payer", personalInput("payee", "pay-1", "payer",
		application.ScheduledPaymentInput{PaymentDate: f.now.Unix(), AmountPerClaim: 500, Released: true},
	))
	if len(first.PaymentSchedule) != 1 {
		t.Fatalf("expected one installment, got %d", len(first.PaymentSchedule))
	}

	_, err := f.payments.Initialize(ctx, actor("payer"), personalInput("payee", "pay-1", "payer"))
	if !errors.Is(err, domain.ErrPaymentAlreadyInitialized) {
		t.Fatalf("expected ErrPaymentAlreadyInitialized, got %v", err)
	}

	stored, err := f.payments.GetAgreement(ctx, actor("payer"), "payer", "payee", "pay-1")
	if err != nil {
		t.Fatalf("GetAgreement: %v", err)
	}
	if len(stored.PaymentSchedule) != 1 || stored.PaymentSchedule[0].AmountPerClaim != 500 {
		t.Fatalf("first agreement was disturbed: %+v", stored)
	}
}

func TestInitializeValidatesSourceAndIdentifiers(t *testing.T) {
	t.Parallel()
	f := newSettlementFixture()
	ctx := context.Background()

	input := personalInput("payee", "pay-1", "payer")
	input.Source = "credit_card"
	if _, err := f.payments.Initialize(ctx, actor("payer"), input); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown source, got %v", err)
	}

	input = personalInput("", "pay-1", "payer")
	if _, err := f.payments.Initialize(ctx, actor("payer"), input); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty payee, got %v", err)
	}
}

func TestClaimGatesOnDueDateAndReleaseFlag(t *testing.T) {
	t.Parallel()
	f := newSettlementFixture()
	ctx := context.Background()

	f.balances.Deposit("payer", 1000)
	f.initialize(t, "payer", personalInput("payee", "pay-1", "payer",
		application.ScheduledPaymentInput{PaymentDate: f.now.Add(24 * time.Hour).Unix(), AmountPerClaim: 500, Released: true},
	))

	if _, err := f.payments.Claim(ctx, actor("payee"), "payer", "pay-1"); !errors.Is(err, domain.ErrPaymentNotAvailable) {
		t.Fatalf("expected ErrPaymentNotAvailable before due date, got %v", err)
	}

	f.now = f.now.Add(48 * time.Hour)
	if err := f.payments.BlockNextPayment(ctx, actor("payer"), "payee", "pay-1"); err != nil {
		t.Fatalf("BlockNextPayment: %v", err)
	}
	if _, err := f.payments.Claim(ctx, actor("payee"), "payer", "pay-1"); !errors.Is(err, domain.ErrPaymentNotReleased) {
		t.Fatalf("expected ErrPaymentNotReleased while blocked, got %v", err)
	}

	if err := f.payments.ReleaseNextPayment(ctx, actor("payer"), "payee", "pay-1"); err != nil {
		t.Fatalf("ReleaseNextPayment: %v", err)
	}
	result, err := f.payments.Claim(ctx, actor("payee"), "payer", "pay-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if result.AmountClaimed != 500 || result.RemainingClaims != 0 {
		t.Fatalf("unexpected claim result: %+v", result)
	}
	if bal, _ := f.balances.Balance("payee"); bal != 500 {
		t.Fatalf("expected payee balance 500, got %d", bal)
	}

	if _, err := f.payments.Claim(ctx, actor("payee"), "payer", "pay-1"); !errors.Is(err, domain.ErrNoScheduledPayment) {
		t.Fatalf("expected ErrNoScheduledPayment on empty schedule, got %v", err)
	}
}

func TestBlockAndReleaseTouchOnlyTheScheduleHead(t *testing.T) {
	t.Parallel()
	f := newSettlementFixture()
	ctx := context.Background()

	f.initialize(t, "payer", personalInput("payee", "pay-1", "payer",
		application.ScheduledPaymentInput{PaymentDate: f.now.Unix(), AmountPerClaim: 100, Released: true},
		application.ScheduledPaymentInput{PaymentDate: f.now.Unix(), AmountPerClaim: 200, Released: true},
	))

	if err := f.payments.BlockNextPayment(ctx, actor("payer"), "payee", "pay-1"); err != nil {
		t.Fatalf("BlockNextPayment: %v", err)
	}
	agreement, err := f.payments.GetAgreement(ctx, actor("payer"), "payer", "payee", "pay-1")
	if err != nil {
		t.Fatalf("GetAgreement: %v", err)
	}
	if agreement.PaymentSchedule[0].Released {
		t.Fatalf("expected head blocked")
	}
	if !agreement.PaymentSchedule[1].Released {
		t.Fatalf("expected second installment untouched")
	}
}

func TestClaimFromEscrowSourceReducesEscrowAndLock(t *testing.T) {
	t.Parallel()
	f := newSettlementFixture()
	ctx := context.Background()

	if _, err := f.escrows.Create(ctx, actor("payer")); err != nil {
		t.Fatalf("Create escrow: %v", err)
	}
	f.balances.Deposit("payer", 800)
	if _, err := f.escrows.Fund(ctx, actor("payer"), "payer", 800); err != nil {
		t.Fatalf("Fund escrow: %v", err)
	}

	input := personalInput("payee", "pay-1", "payer",
		application.ScheduledPaymentInput{PaymentDate: f.now.Unix(), AmountPerClaim: 500, Released: true},
	)
	input.Source = string(domain.PaymentSourceEscrow)
	f.initialize(t, "payer", input)

	result, err := f.payments.Claim(ctx, actor("payee"), "payer", "pay-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if result.AmountClaimed != 500 {
		t.Fatalf("expected 500 claimed, got %d", result.AmountClaimed)
	}
	if bal, _ := f.balances.Balance("payee"); bal != 500 {
		t.Fatalf("expected payee balance 500, got %d", bal)
	}
	esc, err := f.repos.Escrows.Get(ctx, "payer")
	if err != nil {
		t.Fatalf("Get escrow: %v", err)
	}
	if esc.Amount != 300 {
		t.Fatalf("expected escrow amount 300, got %d", esc.Amount)
	}
	if lock, _ := f.balances.LockedAmount(domain.EscrowLockTag, "payer"); lock != 300 {
		t.Fatalf("lock %d does not match escrow amount 300", lock)
	}
}

func TestClaimFromFrozenEscrowLeavesScheduleIntact(t *testing.T) {
	t.Parallel()
	f := newSettlementFixture()
	ctx := context.Background()

	if _, err := f.escrows.Create(ctx, actor("payer")); err != nil {
		t.Fatalf("Create escrow: %v", err)
	}
	f.balances.Deposit("payer", 800)
	if _, err := f.escrows.Fund(ctx, actor("payer"), "payer", 800); err != nil {
		t.Fatalf("Fund escrow: %v", err)
	}

	input := personalInput("payee", "pay-1", "payer",
		application.ScheduledPaymentInput{PaymentDate: f.now.Unix(), AmountPerClaim: 500, Released: true},
	)
	input.Source = string(domain.PaymentSourceEscrow)
	f.initialize(t, "payer", input)

	if err := f.escrows.Freeze(ctx, actor("payer"), "payer"); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if _, err := f.payments.Claim(ctx, actor("payee"), "payer", "pay-1"); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}

	agreement, err := f.payments.GetAgreement(ctx, actor("payer"), "payer", "payee", "pay-1")
	if err != nil {
		t.Fatalf("GetAgreement: %v", err)
	}
	if len(agreement.PaymentSchedule) != 1 {
		t.Fatalf("schedule must not advance on failed claim, got %d entries", len(agreement.PaymentSchedule))
	}
	if bal, _ := f.balances.Balance("payee"); bal != 0 {
		t.Fatalf("expected no transfer, payee balance %d", bal)
	}
}

func TestClaimAgainstMissingEscrowAccount(t *testing.T) {
	t.Parallel()
	f := newSettlementFixture()
	ctx := context.Background()

	input := personalInput("payee", "pay-1", "ghost-escrow",
		application.ScheduledPaymentInput{PaymentDate: f.now.Unix(), AmountPerClaim: 500, Released: true},
	)
	input.Source = string(domain.PaymentSourceEscrow)
	f.initialize(t, "payer", input)

	if _, err := f.payments.Claim(ctx, actor("payee"), "payer", "pay-1"); !errors.Is(err, domain.ErrNoEscrowAccountFound) {
		t.Fatalf("expected ErrNoEscrowAccountFound, got %v", err)
	}
}

func TestPaymentOperationsEnqueueOutboxEvents(t *testing.T) {
	t.Parallel()
	f := newSettlementFixture()
	ctx := context.Background()

	f.balances.Deposit("payer", 500)
	f.initialize(t, "payer", personalInput("payee", "pay-1", "payer",
		application.ScheduledPaymentInput{PaymentDate: f.now.Unix(), AmountPerClaim: 500, Released: true},
	))
	if _, err := f.payments.Claim(ctx, actor("payee"), "payer", "pay-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	pending, err := f.repos.Outbox.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 outbox records, got %d", len(pending))
	}
	if pending[0].EventType != domain.EventPaymentInitialized || pending[1].EventType != domain.EventPaymentClaimed {
		t.Fatalf("unexpected event order: %s, %s", pending[0].EventType, pending[1].EventType)
	}
	for _, record := range pending {
		if record.PartitionKey != "pay-1" {
			t.Fatalf("expected partition key pay-1, got %s", record.PartitionKey)
		}
	}
}
