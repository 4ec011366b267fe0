package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Role             enums.Role `json:"role"`
	PaymentAddress   *string    `json:"payment_address,omitempty"`
	ProfileImagePath *string    `json:"profile_image_path,omitempty"`
	IsActive         bool       `json:"is_active"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// VendorDTO is the public listing entry for a vendor.
type VendorDTO struct {
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	PaymentAddress   *string `json:"payment_address,omitempty"`
	ProfileImagePath *string `json:"profile_image_path,omitempty"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Name             string
	Email            string
	PasswordHash     string
	Role             enums.Role
	PaymentAddress   *string
	ProfileImagePath *string
}

// PaymentAddressDTO is returned by the payment address endpoints.
type PaymentAddressDTO struct {
	Email          string `json:"email"`
	PaymentAddress string `json:"payment_address"`
}

// BalanceDTO reports the ledger balance of the caller's payment address.
type BalanceDTO struct {
	PaymentAddress string `json:"payment_address"`
	Balance        string `json:"balance"`
	Currency       string `json:"currency"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Role:             u.Role,
		PaymentAddress:   u.PaymentAddress,
		ProfileImagePath: u.ProfileImagePath,
		IsActive:         u.IsActive,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func vendorFromModel(u models.User) VendorDTO {
	return VendorDTO{
		Name:             u.Name,
		Email:            u.Email,
		PaymentAddress:   u.PaymentAddress,
		ProfileImagePath: u.ProfileImagePath,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.RoleBuyer
	}
	return &models.User{
		Name:             strings.TrimSpace(c.Name),
		Email:            NormalizeEmail(c.Email),
		PasswordHash:     c.PasswordHash,
		Role:             role,
		PaymentAddress:   c.PaymentAddress,
		ProfileImagePath: c.ProfileImagePath,
		IsActive:         true,
	}
}

// NormalizeEmail is the canonical form emails are stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
