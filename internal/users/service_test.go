package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

const testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type stubUserRepo struct {
	byEmail   map[string]*models.User
	listErr   error
	updated   map[string]string
	updateErr error
}

func newStubUserRepo(users ...*models.User) *stubUserRepo {
	repo := &stubUserRepo{byEmail: map[string]*models.User{}, updated: map[string]string{}}
	for _, u := range users {
		repo.byEmail[u.Email] = u
	}
	return repo
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdatePaymentAddress(_ context.Context, email, address string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	u, ok := s.byEmail[email]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.PaymentAddress = &address
	s.updated[email] = address
	return nil
}

func (s *stubUserRepo) ListByRole(_ context.Context, role enums.Role) ([]models.User, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.User
	for _, u := range s.byEmail {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

type stubDirectory struct {
	invalidated []string
	resolved    map[string]string
}

func (s *stubDirectory) ResolveVendorAddresses(_ context.Context, emails []string) (map[string]string, error) {
	out := map[string]string{}
	for _, e := range emails {
		if a, ok := s.resolved[e]; ok {
			out[e] = a
		}
	}
	return out, nil
}

func (s *stubDirectory) Invalidate(_ context.Context, email string) error {
	s.invalidated = append(s.invalidated, email)
	return nil
}

type stubBalance struct {
	amount decimal.Decimal
	err    error
	asked  string
}

func (s *stubBalance) Balance(_ context.Context, address string) (decimal.Decimal, error) {
	s.asked = address
	return s.amount, s.err
}

func newTestService(t *testing.T, repo *stubUserRepo, dir *stubDirectory, bal *stubBalance) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Directory: dir, Ledger: bal, Currency: "ETH"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestSavePaymentAddressSelfInvalidatesCache(t *testing.T) {
	vendor := &models.User{ID: uuid.New(), Email: "v@shop.com", Role: enums.RoleVendor}
	repo := newStubUserRepo(vendor)
	dir := &stubDirectory{}
	svc := newTestService(t, repo, dir, &stubBalance{})

	out, err := svc.SavePaymentAddress(context.Background(), Actor{Email: "V@shop.com", Role: enums.RoleVendor}, "", " "+testAddress+" ")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if out.PaymentAddress != testAddress || repo.updated["v@shop.com"] != testAddress {
		t.Fatalf("address not stored: %+v %+v", out, repo.updated)
	}
	if len(dir.invalidated) != 1 || dir.invalidated[0] != "v@shop.com" {
		t.Fatalf("expected cache invalidation, got %v", dir.invalidated)
	}
}

func TestSavePaymentAddressRules(t *testing.T) {
	vendor := &models.User{ID: uuid.New(), Email: "v@shop.com", Role: enums.RoleVendor}
	other := Actor{Email: "other@shop.com", Role: enums.RoleVendor}
	admin := Actor{Email: "root@shop.com", Role: enums.RoleAdmin}

	cases := []struct {
		name    string
		actor   Actor
		email   string
		address string
		code    pkgerrors.Code
	}{
		{"other user", other, "v@shop.com", testAddress, pkgerrors.CodeForbidden},
		{"malformed", admin, "v@shop.com", "0x1234", pkgerrors.CodeValidation},
		{"bad checksum", admin, "v@shop.com", "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", pkgerrors.CodeValidation},
		{"zero", admin, "v@shop.com", "0x0000000000000000000000000000000000000000", pkgerrors.CodeValidation},
		{"unknown user", admin, "ghost@shop.com", testAddress, pkgerrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t, newStubUserRepo(vendor), &stubDirectory{}, &stubBalance{})
			_, err := svc.SavePaymentAddress(context.Background(), tc.actor, tc.email, tc.address)
			if !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}

	svc := newTestService(t, newStubUserRepo(vendor), &stubDirectory{}, &stubBalance{})
	if _, err := svc.SavePaymentAddress(context.Background(), admin, "v@shop.com", testAddress); err != nil {
		t.Fatalf("admin save: %v", err)
	}
}

func TestGetPaymentAddressAndBalance(t *testing.T) {
	addr := testAddress
	buyer := &models.User{ID: uuid.New(), Email: "b@shop.com", Role: enums.RoleBuyer, PaymentAddress: &addr}
	empty := &models.User{ID: uuid.New(), Email: "e@shop.com", Role: enums.RoleBuyer}
	bal := &stubBalance{amount: decimal.RequireFromString("1.25")}
	svc := newTestService(t, newStubUserRepo(buyer, empty), &stubDirectory{}, bal)

	got, err := svc.GetPaymentAddress(context.Background(), "B@shop.com")
	if err != nil || got.PaymentAddress != testAddress {
		t.Fatalf("get address: %+v %v", got, err)
	}
	if _, err := svc.GetPaymentAddress(context.Background(), "e@shop.com"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unset address, got %v", err)
	}

	balance, err := svc.Balance(context.Background(), "b@shop.com")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Balance != "1.25" || balance.Currency != "ETH" || bal.asked != testAddress {
		t.Fatalf("unexpected balance %+v asked=%s", balance, bal.asked)
	}

	bal.err = errors.New("node down")
	if _, err := svc.Balance(context.Background(), "b@shop.com"); !pkgerrors.IsCode(err, pkgerrors.CodeLedger) {
		t.Fatalf("expected ledger error, got %v", err)
	}
}

func TestListVendorsDegradedOnRepoFailure(t *testing.T) {
	repo := newStubUserRepo()
	repo.listErr = errors.New("db down")
	svc := newTestService(t, repo, &stubDirectory{}, &stubBalance{})

	_, err := svc.ListVendors(context.Background())
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	details, _ := pkgerrors.As(err).Details().(map[string]any)
	if details["degraded"] != true || details["collaborator"] != "identity" {
		t.Fatalf("unexpected details %+v", details)
	}
}

func TestVendorKeysRequiresEmails(t *testing.T) {
	dir := &stubDirectory{resolved: map[string]string{"v@shop.com": testAddress}}
	svc := newTestService(t, newStubUserRepo(), dir, &stubBalance{})

	if _, err := svc.VendorKeys(context.Background(), nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	keys, err := svc.VendorKeys(context.Background(), []string{"v@shop.com", "x@shop.com"})
	if err != nil || len(keys) != 1 || keys["v@shop.com"] != testAddress {
		t.Fatalf("unexpected keys %+v %v", keys, err)
	}
}
