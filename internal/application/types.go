package application

import (
	"sync"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/ports"
)

type Config struct {
	ServiceName string
}

// Actor is the already-authenticated caller identity attached by the
// transport layer. SubjectID is the caller's ledger account id.
type Actor struct {
	SubjectID string
	Role      string
	RequestID string
}

// EscrowService owns the escrow ledger state machine. A single mutex
// serializes every public operation so no two mutations interleave; each
// operation validates everything that can fail before its first write.
type EscrowService struct {
	cfg        Config
	mu         sync.Mutex
	escrows    ports.EscrowRepository
	adminIndex ports.AdminIndexRepository
	outbox     ports.OutboxRepository
	ledger     ports.LedgerBalanceService
	nowFn      func() time.Time
}

type EscrowDependencies struct {
	Config     Config
	Escrows    ports.EscrowRepository
	AdminIndex ports.AdminIndexRepository
	Outbox     ports.OutboxRepository
	Ledger     ports.LedgerBalanceService
	NowFn      func() time.Time
}

func NewEscrowService(deps EscrowDependencies) *EscrowService {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M15-Settlement-Core-Service"
	}
	nowFn := deps.NowFn
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &EscrowService{
		cfg:        cfg,
		escrows:    deps.Escrows,
		adminIndex: deps.AdminIndex,
		outbox:     deps.Outbox,
		ledger:     deps.Ledger,
		nowFn:      nowFn,
	}
}

// PaymentService owns payer->payee installment schedules. Escrow-sourced
// claims are delegated through the EscrowFundsSource boundary; the schedule
// only advances after the delegated transfer has succeeded.
type PaymentService struct {
	cfg         Config
	mu          sync.Mutex
	agreements  ports.PaymentAgreementRepository
	ledger      ports.LedgerBalanceService
	escrowFunds ports.EscrowFundsSource
	outbox      ports.OutboxRepository
	nowFn       func() time.Time
}

type PaymentDependencies struct {
	Config      Config
	Agreements  ports.PaymentAgreementRepository
	Ledger      ports.LedgerBalanceService
	EscrowFunds ports.EscrowFundsSource
	Outbox      ports.OutboxRepository
	NowFn       func() time.Time
}

func NewPaymentService(deps PaymentDependencies) *PaymentService {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M15-Settlement-Core-Service"
	}
	nowFn := deps.NowFn
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &PaymentService{
		cfg:         cfg,
		agreements:  deps.Agreements,
		ledger:      deps.Ledger,
		escrowFunds: deps.EscrowFunds,
		outbox:      deps.Outbox,
		nowFn:       nowFn,
	}
}

type InitializePaymentInput struct {
	PayeeID            string
	PaymentID          string
	RFPReferenceID     string
	TotalPaymentAmount int64
	PaymentSchedule    []ScheduledPaymentInput
	Source             string
	PaymentAccountID   string
}

type ScheduledPaymentInput struct {
	PaymentDate    int64
	AmountPerClaim int64
	Released       bool
}

type ClaimResult struct {
	AmountClaimed   int64
	RemainingClaims int
}
