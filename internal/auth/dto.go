package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/internal/users"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the tokens and user produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Name             string     `json:"name" validate:"required"`
	Email            string     `json:"email" validate:"required,email"`
	Password         string     `json:"password" validate:"required,min=8"`
	ConfirmPassword  string     `json:"confirm_password" validate:"required"`
	Role             enums.Role `json:"role,omitempty"`
	PaymentAddress   *string    `json:"payment_address,omitempty"`
	ProfileImagePath *string    `json:"profile_image_path,omitempty"`
}

// RefreshInput carries the identity recovered from a possibly expired access token.
type RefreshInput struct {
	UserID        uuid.UUID
	AccessTokenID string
	RefreshToken  string
}

// RefreshResult returns the rotated token pair.
type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
