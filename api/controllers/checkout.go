package controllers

import (
	"net/http"

	"github.com/angelmondragon/vendorpay-backend/api/responses"
	"github.com/angelmondragon/vendorpay-backend/api/validators"
	"github.com/angelmondragon/vendorpay-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
)

// Checkout settles the cart with every vendor and records the order. Ledger
// and partial settlement failures carry the attempt breakdown in the error
// details so the client can see which vendors were paid.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		who, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkout.Request
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), checkout.Buyer{UserID: who.UserID, Email: who.Email, Role: who.Role}, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithOrderID(r.Context(), result.OrderID)
			ctx = logg.WithFields(ctx, map[string]any{
				"attempts":       len(result.Attempts),
				"order_recorded": result.OrderRecorded,
			})
			logg.Info(ctx, "checkout.completed")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
