package ports

import "context"

// LedgerBalanceService is the external account-balance store both settlement
// components draw on. Transfers with allowRemoval permit the source account
// to be reaped when its balance reaches zero. Locks tag a named, adjustable
// amount of an account's balance as non-spendable; re-issuing a lock under
// the same tag replaces the previous amount.
type LedgerBalanceService interface {
	Transfer(ctx context.Context, from, to string, amount int64, allowRemoval bool) error
	SetLock(ctx context.Context, tag, account string, amount int64) error
	RemoveLock(ctx context.Context, tag, account string) error
	FreeBalance(ctx context.Context, account string) (int64, error)
	EnsureCanWithdraw(ctx context.Context, account string, amount int64) error
}

// EscrowFundsSource is the internal boundary the payment engine delegates
// through when a claim draws from an escrow account. Implemented by the
// escrow service; the payment engine never touches escrow storage directly.
type EscrowFundsSource interface {
	WithdrawForClaim(ctx context.Context, escrowID, adminID, payeeID string, amount int64) error
}
