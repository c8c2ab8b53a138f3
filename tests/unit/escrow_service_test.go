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

type escrowFixture struct {
	svc      *application.EscrowService
	repos    *memory.Repositories
	balances *ledger.MemoryBalanceService
	now      time.Time
}

func newEscrowFixture() *escrowFixture {
	f := &escrowFixture{
		repos:    memory.NewRepositories(),
		balances: ledger.NewMemoryBalanceService(0),
		now:      time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = application.NewEscrowService(application.EscrowDependencies{
		Escrows:    f.repos.Escrows,
		AdminIndex: f.repos.AdminIndex,
		Outbox:     f.repos.Outbox,
		Ledger:     f.balances,
		NowFn:      func() time.Time { return f.now },
	})
	return f
}

func actor(subject string) application.Actor {
	return application.Actor{SubjectID: subject, Role: "member", RequestID: "req-" + subject}
}

func TestCreateEscrowIssuesZeroLockAndIndexesAdmin(t *testing.T) {
	t.Parallel()
	f := newEscrowFixture()
	ctx := context.Background()

	esc, err := f.svc.Create(ctx, actor("alice"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if esc.EscrowID != "alice" || len(esc.Admins) != 1 || esc.Admins[0] != "alice" {
		t.Fatalf("unexpected escrow: %+v", esc)
	}
	lock, ok := f.balances.LockedAmount(domain.EscrowLockTag, "alice")
	if !ok || lock != 0 {
		t.Fatalf("expected zero lock, got %d (present=%v)", lock, ok)
	}
	ids, err := f.repos.AdminIndex.ListEscrowIDs(ctx, "alice")
	if err != nil {
		t.Fatalf("ListEscrowIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "alice" {
		t.Fatalf("expected index entry for alice, got %v", ids)
	}

	if _, err := f.svc.Create(ctx, actor("alice")); !errors.Is(err, domain.ErrEscrowAlreadyExists) {
		t.Fatalf("expected ErrEscrowAlreadyExists, got %v", err)
	}
}

func TestFundGrowsBalanceAndLockTogether(t *testing.T) {
	t.Parallel()
	f := newEscrowFixture()
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, actor("alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.balances.Deposit("alice", 100)

	esc, err := f.svc.Fund(ctx, actor("alice"), "alice", 70)
	if err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if esc.Amount != 70 || esc.TotalContributed != 70 {
		t.Fatalf("expected amount=70 total=70, got %+v", esc)
	}
	if len(esc.Contributions) != 1 || esc.Contributions[0].Contributor != "alice" || esc.Contributions[0].Amount != 70 {
		t.Fatalf("unexpected contributions: %+v", esc.Contributions)
	}
	if lock, _ := f.balances.LockedAmount(domain.EscrowLockTag, "alice"); lock != esc.Amount {
		t.Fatalf("lock %d does not match escrow amount %d", lock, esc.Amount)
	}

	if _, err := f.svc.Fund(ctx, actor("alice"), "alice", 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero amount, got %v", err)
	}
}

func TestFundAuthorizationFollowsOpenFlag(t *testing.T) {
	t.Parallel()
	f := newEscrowFixture()
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, actor("alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.balances.Deposit("bob", 50)

	if _, err := f.svc.Fund(ctx, actor("bob"), "alice", 50); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for outsider on closed escrow, got %v", err)
	}
	if err := f.svc.EnableOpenContribution(ctx, actor("alice"), "alice"); err != nil {
		t.Fatalf("EnableOpenContribution: %v", err)
	}
	if _, err := f.svc.Fund(ctx, actor("bob"), "alice", 50); err != nil {
		t.Fatalf("Fund after open contribution: %v", err)
	}
	if err := f.svc.DisableOpenContribution(ctx, actor("alice"), "alice"); err != nil {
		t.Fatalf("DisableOpenContribution: %v", err)
	}
	f.balances.Deposit("bob", 10)
	if _, err := f.svc.Fund(ctx, actor("bob"), "alice", 10); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after disabling, got %v", err)
	}
}

func TestPayoutKeepsLockInvariantAndGuardsAdmins(t *testing.T) {
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

	if _, err := f.svc.Payout(ctx, actor("alice"), "alice", "alice", 10); !errors.Is(err, domain.ErrSelfDistribution) {
		t.Fatalf("expected ErrSelfDistribution, got %v", err)
	}
	if _, err := f.svc.Payout(ctx, actor("alice"), "alice", "carol", 150); !errors.Is(err, domain.ErrInsufficientEscrowFunds) {
		t.Fatalf("expected ErrInsufficientEscrowFunds, got %v", err)
	}
	if _, err := f.svc.Payout(ctx, actor("mallory"), "alice", "carol", 10); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin, got %v", err)
	}

	esc, err := f.svc.Payout(ctx, actor("alice"), "alice", "carol", 30)
	if err != nil {
		t.Fatalf("Payout: %v", err)
	}
	if esc.Amount != 70 {
		t.Fatalf("expected escrow amount 70, got %d", esc.Amount)
	}
	if lock, _ := f.balances.LockedAmount(domain.EscrowLockTag, "alice"); lock != 70 {
		t.Fatalf("lock %d does not match escrow amount 70", lock)
	}
	if bal, _ := f.balances.Balance("carol"); bal != 30 {
		t.Fatalf("expected carol balance 30, got %d", bal)
	}
}

func TestCloseDistributesProportionallyAndRemovesAccount(t *testing.T) {
	t.Parallel()
	f := newEscrowFixture()
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, actor("alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.svc.EnableOpenContribution(ctx, actor("alice"), "alice"); err != nil {
		t.Fatalf("EnableOpenContribution: %v", err)
	}
	f.balances.Deposit("a", 60)
	f.balances.Deposit("b", 40)
	if _, err := f.svc.Fund(ctx, actor("a"), "alice", 60); err != nil {
		t.Fatalf("Fund a: %v", err)
	}
	if _, err := f.svc.Fund(ctx, actor("b"), "alice", 40); err != nil {
		t.Fatalf("Fund b: %v", err)
	}

	if err := f.svc.Close(ctx, actor("alice"), "alice"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if bal, _ := f.balances.Balance("a"); bal != 60 {
		t.Fatalf("expected a refunded 60, got %d", bal)
	}
	if bal, _ := f.balances.Balance("b"); bal != 40 {
		t.Fatalf("expected b refunded 40, got %d", bal)
	}
	if _, err := f.repos.Escrows.Get(ctx, "alice"); !errors.Is(err, domain.ErrNoSuchEscrow) {
		t.Fatalf("expected escrow deleted, got %v", err)
	}
	ids, err := f.repos.AdminIndex.ListEscrowIDs(ctx, "alice")
	if err != nil {
		t.Fatalf("ListEscrowIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty admin index, got %v", ids)
	}
}

func TestFreezeGatesEveryMutationExceptThaw(t *testing.T) {
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
	if err := f.svc.Freeze(ctx, actor("alice"), "alice"); err != nil {
		t.Fatalf("Freeze: %v", err)
	}

	if _, err := f.svc.Fund(ctx, actor("alice"), "alice", 1); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("Fund while frozen: expected ErrFrozen, got %v", err)
	}
	if _, err := f.svc.Payout(ctx, actor("alice"), "alice", "carol", 1); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("Payout while frozen: expected ErrFrozen, got %v", err)
	}
	if err := f.svc.Close(ctx, actor("alice"), "alice"); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("Close while frozen: expected ErrFrozen, got %v", err)
	}
	if err := f.svc.AddAdmin(ctx, actor("alice"), "alice", "bob"); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("AddAdmin while frozen: expected ErrFrozen, got %v", err)
	}
	if err := f.svc.EnableOpenContribution(ctx, actor("alice"), "alice"); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("EnableOpenContribution while frozen: expected ErrFrozen, got %v", err)
	}
	if err := f.svc.Freeze(ctx, actor("alice"), "alice"); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("double Freeze: expected ErrFrozen, got %v", err)
	}

	if err := f.svc.Thaw(ctx, actor("alice"), "alice"); err != nil {
		t.Fatalf("Thaw: %v", err)
	}
	if err := f.svc.Thaw(ctx, actor("alice"), "alice"); !errors.Is(err, domain.ErrNotFrozen) {
		t.Fatalf("Thaw on thawed escrow: expected ErrNotFrozen, got %v", err)
	}
	if _, err := f.svc.Fund(ctx, actor("alice"), "alice", 1); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected funding to reach the ledger again, got %v", err)
	}
}

func TestAdminMembershipAndIndexStayAligned(t *testing.T) {
	t.Parallel()
	f := newEscrowFixture()
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, actor("alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.svc.AddAdmin(ctx, actor("alice"), "alice", "bob"); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	if err := f.svc.AddAdmin(ctx, actor("alice"), "alice", "bob"); !errors.Is(err, domain.ErrAdminAlreadyPresent) {
		t.Fatalf("expected ErrAdminAlreadyPresent, got %v", err)
	}

	escrows, err := f.svc.ListEscrowsForAdmin(ctx, actor("bob"), "bob")
	if err != nil {
		t.Fatalf("ListEscrowsForAdmin: %v", err)
	}
	if len(escrows) != 1 || escrows[0].EscrowID != "alice" {
		t.Fatalf("expected bob to manage alice's escrow, got %+v", escrows)
	}

	if err := f.svc.RemoveAdmin(ctx, actor("alice"), "alice", "carol"); !errors.Is(err, domain.ErrAdminNotPresent) {
		t.Fatalf("expected ErrAdminNotPresent, got %v", err)
	}
	if err := f.svc.RemoveAdmin(ctx, actor("alice"), "alice", "bob"); err != nil {
		t.Fatalf("RemoveAdmin: %v", err)
	}
	escrows, err = f.svc.ListEscrowsForAdmin(ctx, actor("bob"), "bob")
	if err != nil {
		t.Fatalf("ListEscrowsForAdmin after removal: %v", err)
	}
	if len(escrows) != 0 {
		t.Fatalf("expected empty list after removal, got %+v", escrows)
	}
}

func TestEscrowOperationsEnqueueOutboxEvents(t *testing.T) {
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
	if _, err := f.svc.Payout(ctx, actor("alice"), "alice", "carol", 25); err != nil {
		t.Fatalf("Payout: %v", err)
	}

	pending, err := f.repos.Outbox.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 outbox records, got %d", len(pending))
	}
	want := []string{domain.EventEscrowCreated, domain.EventEscrowFunded, domain.EventEscrowPaidOut}
	for i, record := range pending {
		if record.EventType != want[i] {
			t.Fatalf("record %d: expected %s, got %s", i, want[i], record.EventType)
		}
		if record.PartitionKey != "alice" {
			t.Fatalf("record %d: expected partition key alice, got %s", i, record.PartitionKey)
		}
	}
}
