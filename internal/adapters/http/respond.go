package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-settlement-core-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, contracts.SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message, requestID string) {
	writeJSON(w, statusCode, contracts.ErrorResponse{
		Status: "error",
		Error: contracts.ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}

func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, domain.ErrEscrowAlreadyExists):
		return http.StatusConflict, "escrow_already_exists"
	case errors.Is(err, domain.ErrPaymentAlreadyInitialized):
		return http.StatusConflict, "payment_already_initialized"
	case errors.Is(err, domain.ErrAdminAlreadyPresent):
		return http.StatusConflict, "admin_already_present"
	case errors.Is(err, domain.ErrAdminNotPresent):
		return http.StatusNotFound, "admin_not_present"
	case errors.Is(err, domain.ErrNoSuchEscrow), errors.Is(err, domain.ErrNoEscrowAccountFound):
		return http.StatusNotFound, "no_such_escrow"
	case errors.Is(err, domain.ErrNoSuchPayment):
		return http.StatusNotFound, "no_such_payment"
	case errors.Is(err, domain.ErrNoScheduledPayment):
		return http.StatusConflict, "no_scheduled_payment"
	case errors.Is(err, domain.ErrPaymentNotAvailable):
		return http.StatusConflict, "payment_not_available"
	case errors.Is(err, domain.ErrPaymentNotReleased):
		return http.StatusConflict, "payment_not_released"
	case errors.Is(err, domain.ErrFrozen):
		return http.StatusConflict, "frozen"
	case errors.Is(err, domain.ErrNotFrozen):
		return http.StatusConflict, "not_frozen"
	case errors.Is(err, domain.ErrSelfDistribution):
		return http.StatusBadRequest, "self_distribution"
	case errors.Is(err, domain.ErrInsufficientEscrowFunds):
		return http.StatusConflict, "insufficient_escrow_funds"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance"
	case errors.Is(err, domain.ErrLimitExceeded):
		return http.StatusConflict, "limit_exceeded"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
