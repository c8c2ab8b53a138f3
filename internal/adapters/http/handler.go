package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
)

type Handler struct {
	escrows  *application.EscrowService
	payments *application.PaymentService
}

func NewHandler(escrows *application.EscrowService, payments *application.PaymentService) *Handler {
	return &Handler{escrows: escrows, payments: payments}
}

func (h *Handler) createEscrow(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	escrow, err := h.escrows.Create(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "escrow created", toEscrowResponse(escrow))
}

func (h *Handler) getEscrow(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	escrow, err := h.escrows.GetEscrow(r.Context(), actor, chi.URLParam(r, "escrowID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "escrow", toEscrowResponse(escrow))
}

func (h *Handler) listEscrows(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	adminID := strings.TrimSpace(r.URL.Query().Get("admin_id"))
	if adminID == "" {
		adminID = actor.SubjectID
	}
	escrows, err := h.escrows.ListEscrowsForAdmin(r.Context(), actor, adminID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]contracts.EscrowResponse, 0, len(escrows))
	for _, escrow := range escrows {
		out = append(out, toEscrowResponse(escrow))
	}
	writeSuccess(w, http.StatusOK, "escrows", out)
}

func (h *Handler) fundEscrow(w http.ResponseWriter, r *http.Request) {
	var req contracts.FundEscrowRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFromContext(r.Context())
	escrow, err := h.escrows.Fund(r.Context(), actor, chi.URLParam(r, "escrowID"), req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "escrow funded", toEscrowResponse(escrow))
}

func (h *Handler) payoutEscrow(w http.ResponseWriter, r *http.Request) {
	var req contracts.PayoutEscrowRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFromContext(r.Context())
	escrow, err := h.escrows.Payout(r.Context(), actor, chi.URLParam(r, "escrowID"), req.PayeeID, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "payout processed", toEscrowResponse(escrow))
}

func (h *Handler) closeEscrow(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if err := h.escrows.Close(r.Context(), actor, chi.URLParam(r, "escrowID")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "escrow closed", nil)
}

func (h *Handler) freezeEscrow(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if err := h.escrows.Freeze(r.Context(), actor, chi.URLParam(r, "escrowID")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "escrow frozen", nil)
}

func (h *Handler) thawEscrow(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if err := h.escrows.Thaw(r.Context(), actor, chi.URLParam(r, "escrowID")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "escrow thawed", nil)
}

func (h *Handler) enableOpenContribution(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if err := h.escrows.EnableOpenContribution(r.Context(), actor, chi.URLParam(r, "escrowID")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "open contribution enabled", nil)
}

func (h *Handler) disableOpenContribution(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if err := h.escrows.DisableOpenContribution(r.Context(), actor, chi.URLParam(r, "escrowID")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "open contribution disabled", nil)
}

func (h *Handler) addAdmin(w http.ResponseWriter, r *http.Request) {
	var req contracts.AdminRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFromContext(r.Context())
	if err := h.escrows.AddAdmin(r.Context(), actor, chi.URLParam(r, "escrowID"), req.AdminID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "admin added", nil)
}

func (h *Handler) removeAdmin(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if err := h.escrows.RemoveAdmin(r.Context(), actor, chi.URLParam(r, "escrowID"), chi.URLParam(r, "adminID")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "admin removed", nil)
}

func (h *Handler) initializePayment(w http.ResponseWriter, r *http.Request) {
	var req contracts.InitializePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFromContext(r.Context())
	schedule := make([]application.ScheduledPaymentInput, 0, len(req.PaymentSchedule))
	for _, item := range req.PaymentSchedule {
		schedule = append(schedule, application.ScheduledPaymentInput{
			PaymentDate:    item.PaymentDate,
			AmountPerClaim: item.AmountPerClaim,
			Released:       item.Released,
		})
	}
	agreement, err := h.payments.Initialize(r.Context(), actor, application.InitializePaymentInput{
		PayeeID:            req.PayeeID,
		PaymentID:          req.PaymentID,
		RFPReferenceID:     req.RFPReferenceID,
		TotalPaymentAmount: req.TotalPaymentAmount,
		PaymentSchedule:    schedule,
		Source:             req.PaymentSource,
		PaymentAccountID:   req.PaymentAccountID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "payment initialized", toAgreementResponse(agreement))
}

func (h *Handler) claimPayment(w http.ResponseWriter, r *http.Request) {
	var req contracts.ClaimPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFromContext(r.Context())
	result, err := h.payments.Claim(r.Context(), actor, req.PayerID, req.PaymentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "payment claimed", contracts.ClaimPaymentResponse{
		PayerID:         req.PayerID,
		PayeeID:         actor.SubjectID,
		PaymentID:       req.PaymentID,
		AmountClaimed:   result.AmountClaimed,
		RemainingClaims: result.RemainingClaims,
	})
}

func (h *Handler) blockNextPayment(w http.ResponseWriter, r *http.Request) {
	var req contracts.ReleaseStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFromContext(r.Context())
	if err := h.payments.BlockNextPayment(r.Context(), actor, req.PayeeID, req.PaymentID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "next payment blocked", nil)
}

func (h *Handler) releaseNextPayment(w http.ResponseWriter, r *http.Request) {
	var req contracts.ReleaseStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFromContext(r.Context())
	if err := h.payments.ReleaseNextPayment(r.Context(), actor, req.PayeeID, req.PaymentID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "next payment released", nil)
}

func (h *Handler) getAgreement(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	agreement, err := h.payments.GetAgreement(r.Context(), actor,
		chi.URLParam(r, "payerID"), chi.URLParam(r, "payeeID"), chi.URLParam(r, "paymentID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "payment agreement", toAgreementResponse(agreement))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context()))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapDomainError(err)
	writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
}

func toEscrowResponse(escrow domain.EscrowAccount) contracts.EscrowResponse {
	contributions := make([]contracts.ContributionView, 0, len(escrow.Contributions))
	for _, c := range escrow.Contributions {
		contributions = append(contributions, contracts.ContributionView{
			Contributor: c.Contributor,
			Amount:      c.Amount,
		})
	}
	return contracts.EscrowResponse{
		EscrowID:         escrow.EscrowID,
		Admins:           escrow.Admins,
		Contributions:    contributions,
		Amount:           escrow.Amount,
		TotalContributed: escrow.TotalContributed,
		IsFrozen:         escrow.IsFrozen,
		IsOpen:           escrow.IsOpen,
	}
}

func toAgreementResponse(agreement domain.PaymentAgreement) contracts.PaymentAgreementResponse {
	schedule := make([]contracts.ScheduledPaymentView, 0, len(agreement.PaymentSchedule))
	for _, item := range agreement.PaymentSchedule {
		schedule = append(schedule, contracts.ScheduledPaymentView{
			PaymentDate:    item.PaymentDate,
			AmountPerClaim: item.AmountPerClaim,
			Released:       item.Released,
		})
	}
	return contracts.PaymentAgreementResponse{
		PayerID:            agreement.PayerID,
		PayeeID:            agreement.PayeeID,
		PaymentID:          agreement.PaymentID,
		RFPReferenceID:     agreement.RFPReferenceID,
		TotalPaymentAmount: agreement.TotalPaymentAmount,
		PaymentSchedule:    schedule,
		PaymentSource:      string(agreement.PaymentMethod.Source),
		PaymentAccountID:   agreement.PaymentMethod.AccountID,
		AdministratorID:    agreement.AdministratorID,
	}
}
