package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type EscrowCreatedPayload struct {
	EscrowID  string `json:"escrow_id"`
	CreatorID string `json:"creator_id"`
	CreatedAt string `json:"created_at"`
}

type EscrowFundedPayload struct {
	EscrowID         string `json:"escrow_id"`
	FunderID         string `json:"funder_id"`
	Amount           int64  `json:"amount"`
	EscrowBalance    int64  `json:"escrow_balance"`
	TotalContributed int64  `json:"total_contributed"`
	FundedAt         string `json:"funded_at"`
}

type EscrowPaidOutPayload struct {
	EscrowID      string `json:"escrow_id"`
	AdminID       string `json:"admin_id"`
	PayeeID       string `json:"payee_id"`
	Amount        int64  `json:"amount"`
	EscrowBalance int64  `json:"escrow_balance"`
	PaidOutAt     string `json:"paid_out_at"`
}

type EscrowClosedPayload struct {
	EscrowID        string `json:"escrow_id"`
	AdminID         string `json:"admin_id"`
	DistributedTo   int    `json:"distributed_to"`
	TotalDisbursed  int64  `json:"total_disbursed"`
	ResidualBalance int64  `json:"residual_balance"`
	ClosedAt        string `json:"closed_at"`
}

type EscrowFlagChangedPayload struct {
	EscrowID  string `json:"escrow_id"`
	AdminID   string `json:"admin_id"`
	ChangedAt string `json:"changed_at"`
}

type EscrowAdminChangedPayload struct {
	EscrowID  string `json:"escrow_id"`
	AdminID   string `json:"admin_id"`
	TargetID  string `json:"target_id"`
	ChangedAt string `json:"changed_at"`
}

type PaymentInitializedPayload struct {
	PayerID            string `json:"payer_id"`
	PayeeID            string `json:"payee_id"`
	PaymentID          string `json:"payment_id"`
	PayingAccountID    string `json:"paying_account_id"`
	TotalPaymentAmount int64  `json:"total_payment_amount"`
	Installments       int    `json:"installments"`
	InitializedAt      string `json:"initialized_at"`
}

type PaymentClaimedPayload struct {
	PayerID   string `json:"payer_id"`
	PayeeID   string `json:"payee_id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Source    string `json:"source"`
	ClaimedAt string `json:"claimed_at"`
}

type PaymentReleaseStatusPayload struct {
	PayerID   string `json:"payer_id"`
	PayeeID   string `json:"payee_id"`
	PaymentID string `json:"payment_id"`
	Released  bool   `json:"released"`
	ChangedAt string `json:"changed_at"`
}
