package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/ledger"
)

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePaymentAddress(ctx context.Context, email, address string) error
	ListByRole(ctx context.Context, role enums.Role) ([]models.User, error)
}

type vendorDirectory interface {
	ResolveVendorAddresses(ctx context.Context, emails []string) (map[string]string, error)
	Invalidate(ctx context.Context, email string) error
}

type balanceReader interface {
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
}

// Actor identifies the authenticated caller of a users operation.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   enums.Role
}

// Service exposes the identity operations used by the users controllers.
type Service interface {
	Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	GetPaymentAddress(ctx context.Context, email string) (*PaymentAddressDTO, error)
	SavePaymentAddress(ctx context.Context, actor Actor, email, address string) (*PaymentAddressDTO, error)
	ListVendors(ctx context.Context) ([]VendorDTO, error)
	VendorKeys(ctx context.Context, emails []string) (map[string]string, error)
	Balance(ctx context.Context, email string) (*BalanceDTO, error)
}

// ServiceParams bundles the users service collaborators.
type ServiceParams struct {
	Repo      userRepository
	Directory vendorDirectory
	Ledger    balanceReader
	Currency  string
}

type service struct {
	repo      userRepository
	directory vendorDirectory
	ledger    balanceReader
	currency  string
}

// NewService builds the users service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Directory == nil {
		return nil, fmt.Errorf("vendor directory is required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	return &service{
		repo:      params.Repo,
		directory: params.Directory,
		ledger:    params.Ledger,
		currency:  strings.TrimSpace(params.Currency),
	}, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err)
	}
	return FromModel(user), nil
}

func (s *service) GetPaymentAddress(ctx context.Context, email string) (*PaymentAddressDTO, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.PaymentAddress == nil || strings.TrimSpace(*user.PaymentAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment address not set")
	}
	return &PaymentAddressDTO{Email: user.Email, PaymentAddress: *user.PaymentAddress}, nil
}

// SavePaymentAddress stores address for email. Only the account owner or an
// admin may change it.
func (s *service) SavePaymentAddress(ctx context.Context, actor Actor, email, address string) (*PaymentAddressDTO, error) {
	target := NormalizeEmail(email)
	if target == "" {
		target = NormalizeEmail(actor.Email)
	}
	if target == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if actor.Role != enums.RoleAdmin && NormalizeEmail(actor.Email) != target {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot change another user's payment address")
	}

	address = strings.TrimSpace(address)
	if err := ledger.ValidateAddress(address); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment address").
			WithDetails(map[string]any{"field": "payment_address"})
	}

	if err := s.repo.UpdatePaymentAddress(ctx, target, address); err != nil {
		return nil, lookupError(err)
	}
	if err := s.directory.Invalidate(ctx, target); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate vendor key cache")
	}
	return &PaymentAddressDTO{Email: target, PaymentAddress: address}, nil
}

func (s *service) ListVendors(ctx context.Context) ([]VendorDTO, error) {
	rows, err := s.repo.ListByRole(ctx, enums.RoleVendor)
	if err != nil {
		return nil, pkgerrors.Degraded("identity", err)
	}
	out := make([]VendorDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, vendorFromModel(row))
	}
	return out, nil
}

func (s *service) VendorKeys(ctx context.Context, emails []string) (map[string]string, error) {
	if len(emails) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "emails are required")
	}
	return s.directory.ResolveVendorAddresses(ctx, emails)
}

func (s *service) Balance(ctx context.Context, email string) (*BalanceDTO, error) {
	addr, err := s.GetPaymentAddress(ctx, email)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.Balance(ctx, addr.PaymentAddress)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeLedger, err, "read ledger balance")
	}
	return &BalanceDTO{
		PaymentAddress: addr.PaymentAddress,
		Balance:        balance.String(),
		Currency:       s.currency,
	}, nil
}

func (s *service) findByEmail(ctx context.Context, email string) (*models.User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	user, err := s.repo.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, lookupError(err)
	}
	return user, nil
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
}
