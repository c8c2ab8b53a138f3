package ledger

import (
	"context"
	"sync"

	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
)

type lockKey struct {
	tag     string
	account string
}

// MemoryBalanceService is an in-process stand-in for the platform ledger
// balance store. Accounts funded below MinimumBalance are reaped on transfer
// when the caller allows removal; locked amounts are non-spendable but still
// count toward the account's balance.
type MemoryBalanceService struct {
	mu             sync.Mutex
	balances       map[string]int64
	locks          map[lockKey]int64
	minimumBalance int64
}

func NewMemoryBalanceService(minimumBalance int64) *MemoryBalanceService {
	if minimumBalance < 0 {
		minimumBalance = 0
	}
	return &MemoryBalanceService{
		balances:       map[string]int64{},
		locks:          map[lockKey]int64{},
		minimumBalance: minimumBalance,
	}
}

// Deposit seeds an account balance. Test and bootstrap helper.
func (s *MemoryBalanceService) Deposit(account string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] += amount
}

func (s *MemoryBalanceService) Transfer(_ context.Context, from, to string, amount int64, allowRemoval bool) error {
	if amount <= 0 {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.balances[from]
	spendable := balance - s.lockedTotal(from)
	if spendable < amount {
		return domain.ErrInsufficientBalance
	}
	if !allowRemoval && balance-amount < s.minimumBalance {
		return domain.ErrInsufficientBalance
	}

	s.balances[from] = balance - amount
	s.balances[to] += amount
	if allowRemoval && s.balances[from] == 0 && s.lockedTotal(from) == 0 {
		delete(s.balances, from)
	}
	return nil
}

func (s *MemoryBalanceService) SetLock(_ context.Context, tag, account string, amount int64) error {
	if amount < 0 {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[lockKey{tag: tag, account: account}] = amount
	return nil
}

func (s *MemoryBalanceService) RemoveLock(_ context.Context, tag, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, lockKey{tag: tag, account: account})
	return nil
}

func (s *MemoryBalanceService) FreeBalance(_ context.Context, account string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[account] - s.lockedTotal(account), nil
}

func (s *MemoryBalanceService) EnsureCanWithdraw(_ context.Context, account string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[account]-s.lockedTotal(account)-amount < s.minimumBalance {
		return domain.ErrInsufficientBalance
	}
	return nil
}

// LockedAmount reports the amount currently held under a tag. Test helper.
func (s *MemoryBalanceService) LockedAmount(tag, account string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, ok := s.locks[lockKey{tag: tag, account: account}]
	return amount, ok
}

// Balance reports the full balance of an account. Test helper.
func (s *MemoryBalanceService) Balance(account string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, ok := s.balances[account]
	return amount, ok
}

func (s *MemoryBalanceService) lockedTotal(account string) int64 {
	var total int64
	for key, amount := range s.locks {
		if key.account == account {
			total += amount
		}
	}
	return total
}
