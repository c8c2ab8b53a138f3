package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.Post("/escrows", handler.createEscrow)
			r.Get("/escrows", handler.listEscrows)
			r.Get("/escrows/{escrowID}", handler.getEscrow)
			r.Post("/escrows/{escrowID}/fund", handler.fundEscrow)
			r.Post("/escrows/{escrowID}/payouts", handler.payoutEscrow)
			r.Post("/escrows/{escrowID}/close", handler.closeEscrow)
			r.Post("/escrows/{escrowID}/freeze", handler.freezeEscrow)
			r.Post("/escrows/{escrowID}/thaw", handler.thawEscrow)
			r.Post("/escrows/{escrowID}/open-contribution/enable", handler.enableOpenContribution)
			r.Post("/escrows/{escrowID}/open-contribution/disable", handler.disableOpenContribution)
			r.Post("/escrows/{escrowID}/admins", handler.addAdmin)
			r.Delete("/escrows/{escrowID}/admins/{adminID}", handler.removeAdmin)

			r.Post("/payments", handler.initializePayment)
			r.Post("/payments/claims", handler.claimPayment)
			r.Post("/payments/block-next", handler.blockNextPayment)
			r.Post("/payments/release-next", handler.releaseNextPayment)
			r.Get("/payments/{payerID}/{payeeID}/{paymentID}", handler.getAgreement)
		})
	})
	return r
}
