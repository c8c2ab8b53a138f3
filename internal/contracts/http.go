package contracts

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type FundEscrowRequest struct {
	Amount int64 `json:"amount"`
}

type PayoutEscrowRequest struct {
	PayeeID string `json:"payee_id"`
	Amount  int64  `json:"amount"`
}

type AdminRequest struct {
	AdminID string `json:"admin_id"`
}

type EscrowResponse struct {
	EscrowID         string             `json:"escrow_id"`
	Admins           []string           `json:"admins"`
	Contributions    []ContributionView `json:"contributions"`
	Amount           int64              `json:"amount"`
	TotalContributed int64              `json:"total_contributed"`
	IsFrozen         bool               `json:"is_frozen"`
	IsOpen           bool               `json:"is_open"`
}

type ContributionView struct {
	Contributor string `json:"contributor"`
	Amount      int64  `json:"amount"`
}

type ScheduledPaymentView struct {
	PaymentDate    int64 `json:"payment_date"`
	AmountPerClaim int64 `json:"amount_per_claim"`
	Released       bool  `json:"released"`
}

type InitializePaymentRequest struct {
	PayeeID            string                 `json:"payee_id"`
	PaymentID          string                 `json:"payment_id"`
	RFPReferenceID     string                 `json:"rfp_reference_id"`
	TotalPaymentAmount int64                  `json:"total_payment_amount"`
	PaymentSchedule    []ScheduledPaymentView `json:"payment_schedule"`
	PaymentSource      string                 `json:"payment_source"`
	PaymentAccountID   string                 `json:"payment_account_id"`
}

type ClaimPaymentRequest struct {
	PayerID   string `json:"payer_id"`
	PaymentID string `json:"payment_id"`
}

type ClaimPaymentResponse struct {
	PayerID         string `json:"payer_id"`
	PayeeID         string `json:"payee_id"`
	PaymentID       string `json:"payment_id"`
	AmountClaimed   int64  `json:"amount_claimed"`
	RemainingClaims int    `json:"remaining_claims"`
}

type ReleaseStatusRequest struct {
	PayeeID   string `json:"payee_id"`
	PaymentID string `json:"payment_id"`
}

type PaymentAgreementResponse struct {
	PayerID            string                 `json:"payer_id"`
	PayeeID            string                 `json:"payee_id"`
	PaymentID          string                 `json:"payment_id"`
	RFPReferenceID     string                 `json:"rfp_reference_id"`
	TotalPaymentAmount int64                  `json:"total_payment_amount"`
	PaymentSchedule    []ScheduledPaymentView `json:"payment_schedule"`
	PaymentSource      string                 `json:"payment_source"`
	PaymentAccountID   string                 `json:"payment_account_id"`
	AdministratorID    string                 `json:"administrator_id"`
}
