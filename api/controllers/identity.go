package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/api/middleware"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

type caller struct {
	UserID uuid.UUID
	Email  string
	Role   enums.Role
}

// callerFromRequest reads the identity seeded by middleware.Auth.
func callerFromRequest(r *http.Request) (caller, error) {
	ctx := r.Context()
	userID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
	if err != nil {
		return caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	email := middleware.EmailFromContext(ctx)
	if email == "" {
		return caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	role, err := enums.ParseRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "role context missing")
	}
	return caller{UserID: userID, Email: email, Role: role}, nil
}
