package domain

import "time"

type PaymentSource string

const (
	PaymentSourcePersonal PaymentSource = "personal_account"
	PaymentSourceEscrow   PaymentSource = "escrow_account"
)

// PaymentMethod names the account a payment agreement draws from. When
// Source is PaymentSourceEscrow, AccountID must name a live escrow account;
// that is checked at claim time, not at initialization.
type PaymentMethod struct {
	Source    PaymentSource `json:"source"`
	AccountID string        `json:"account_id"`
}

// ScheduledPayment is one claimable installment, gated by date and the
// released flag. Only the head of a schedule is ever addressable.
type ScheduledPayment struct {
	PaymentDate    int64 `json:"payment_date"`
	AmountPerClaim int64 `json:"amount_per_claim"`
	Released       bool  `json:"released"`
}

// PaymentAgreement is an installment plan from payer to payee. The triple
// (PayerID, PayeeID, PaymentID) forms the unique identity. The schedule keeps
// its caller-supplied order; index 0 is always the next payment due.
type PaymentAgreement struct {
	PayerID            string             `json:"payer_id"`
	PayeeID            string             `json:"payee_id"`
	PaymentID          string             `json:"payment_id"`
	RFPReferenceID     string             `json:"rfp_reference_id"`
	TotalPaymentAmount int64              `json:"total_payment_amount"`
	PaymentSchedule    []ScheduledPayment `json:"payment_schedule"`
	PaymentMethod      PaymentMethod      `json:"payment_method"`
	AdministratorID    string             `json:"administrator_id"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}
