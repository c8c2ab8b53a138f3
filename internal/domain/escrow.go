package domain

import "time"

// EscrowLockTag is the single named lock under which every escrow account's
// available balance is held non-spendable in the ledger balance service.
const EscrowLockTag = "escrowlk"

const (
	MaxEscrowAdmins      = 64
	MaxContributions     = 4096
	MaxScheduledPayments = 1024
)

// Contribution is one append-only funding record. Entries are never merged
// per contributor and never pruned except when the escrow is closed.
type Contribution struct {
	Contributor string `json:"contributor"`
	Amount      int64  `json:"amount"`
}

// EscrowAccount is a pooled fund account. EscrowID doubles as the ledger
// account identifier the pooled funds sit on; Amount must always equal the
// amount most recently locked on that account under EscrowLockTag.
type EscrowAccount struct {
	EscrowID         string         `json:"escrow_id"`
	Admins           []string       `json:"admins"`
	Contributions    []Contribution `json:"contributions"`
	Amount           int64          `json:"amount"`
	TotalContributed int64          `json:"total_contributed"`
	IsFrozen         bool           `json:"is_frozen"`
	IsOpen           bool           `json:"is_open"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsAdmin reports whether the account id is in the current admin set.
func (e EscrowAccount) IsAdmin(accountID string) bool {
	for _, a := range e.Admins {
		if a == accountID {
			return true
		}
	}
	return false
}

// AdminIndexEntry is the derived reverse lookup from an admin account to an
// escrow it administers. The escrow's Admins list stays authoritative; this
// projection is maintained in lock-step by the escrow mutators only.
type AdminIndexEntry struct {
	AdminID   string    `json:"admin_id"`
	EscrowID  string    `json:"escrow_id"`
	CreatedAt time.Time `json:"created_at"`
}
