package controllers

import (
	"net/http"

	"github.com/angelmondragon/vendorpay-backend/api/responses"
	"github.com/angelmondragon/vendorpay-backend/api/validators"
	"github.com/angelmondragon/vendorpay-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
)

// CartQuote prices a client-held cart against current catalog prices.
func CartQuote(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var body cart.QuoteInput
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}
