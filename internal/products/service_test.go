package products

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

type stubProductRepo struct {
	products map[uuid.UUID]*models.Product
	findHits int
	err      error
	lastList ListProductsInput
}

func newStubProductRepo(products ...*models.Product) *stubProductRepo {
	repo := &stubProductRepo{products: map[uuid.UUID]*models.Product{}}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (s *stubProductRepo) CreateProduct(_ context.Context, p *models.Product) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	p.ID = uuid.New()
	s.products[p.ID] = p
	return p, nil
}

func (s *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	s.findHits++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *stubProductRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubProductRepo) UpdatePrice(_ context.Context, id uuid.UUID, vendor string, price decimal.Decimal) error {
	p, ok := s.products[id]
	if !ok || p.VendorEmail != vendor {
		return gorm.ErrRecordNotFound
	}
	p.Price = price
	return nil
}

func (s *stubProductRepo) DeleteProduct(_ context.Context, id uuid.UUID, vendor string) error {
	p, ok := s.products[id]
	if !ok || p.VendorEmail != vendor {
		return gorm.ErrRecordNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *stubProductRepo) ListProducts(_ context.Context, input ListProductsInput) (*ProductListResult, error) {
	s.lastList = input
	if s.err != nil {
		return nil, s.err
	}
	return &ProductListResult{Products: []ProductDTO{}}, nil
}

type memCache struct {
	values map[string]string
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memCache) CacheKey(kind, id string) string { return kind + ":" + id }

var vendorActor = Actor{Email: "v@shop.com", Role: enums.RoleVendor}

func newTestService(t *testing.T, repo *stubProductRepo, cache vendorCache) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Cache: cache})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateValidatesInput(t *testing.T) {
	svc := newTestService(t, newStubProductRepo(), nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		actor Actor
		input CreateProductInput
		code  pkgerrors.Code
	}{
		{"buyer", Actor{Email: "b@shop.com", Role: enums.RoleBuyer}, CreateProductInput{Name: "x", Price: decimal.NewFromInt(1)}, pkgerrors.CodeForbidden},
		{"zero price", vendorActor, CreateProductInput{Name: "x"}, pkgerrors.CodeValidation},
		{"negative price", vendorActor, CreateProductInput{Name: "x", Price: decimal.NewFromInt(-1)}, pkgerrors.CodeValidation},
		{"blank name", vendorActor, CreateProductInput{Name: " ", Price: decimal.NewFromInt(1)}, pkgerrors.CodeValidation},
		{"too many images", vendorActor, CreateProductInput{Name: "x", Price: decimal.NewFromInt(1), OtherImages: []string{"1", "2", "3", "4"}}, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.actor, tc.input); !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}

	dto, err := svc.Create(ctx, Actor{Email: " V@Shop.com ", Role: enums.RoleVendor}, CreateProductInput{Name: " Lamp ", Price: decimal.RequireFromString("9.99"), OtherImages: []string{" a.png ", ""}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.VendorEmail != "v@shop.com" || dto.Name != "Lamp" || len(dto.OtherImages) != 1 || dto.OtherImages[0] != "a.png" {
		t.Fatalf("unexpected product %+v", dto)
	}
}

func TestGetRejectsInvalidAndUnknownIDs(t *testing.T) {
	svc := newTestService(t, newStubProductRepo(), nil)
	if _, err := svc.Get(context.Background(), "not-a-uuid"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	if _, err := svc.Get(context.Background(), uuid.NewString()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdatePriceAndDeleteAreOwnerOnly(t *testing.T) {
	p := &models.Product{ID: uuid.New(), VendorEmail: "v@shop.com", Name: "Lamp", Price: decimal.NewFromInt(10)}
	repo := newStubProductRepo(p)
	svc := newTestService(t, repo, nil)
	ctx := context.Background()
	other := Actor{Email: "x@shop.com", Role: enums.RoleVendor}

	if _, err := svc.UpdatePrice(ctx, other, p.ID.String(), decimal.NewFromInt(5)); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.UpdatePrice(ctx, vendorActor, p.ID.String(), decimal.Zero); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	dto, err := svc.UpdatePrice(ctx, vendorActor, p.ID.String(), decimal.RequireFromString("7.25"))
	if err != nil || dto.Price.String() != "7.25" {
		t.Fatalf("update price: %+v %v", dto, err)
	}

	if err := svc.Delete(ctx, other, p.ID.String()); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, vendorActor, p.ID.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, vendorActor, p.ID.String()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestGetProductVendorCachesAndInvalidates(t *testing.T) {
	p := &models.Product{ID: uuid.New(), VendorEmail: "v@shop.com", Name: "Lamp", Price: decimal.NewFromInt(10)}
	repo := newStubProductRepo(p)
	cache := &memCache{values: map[string]string{}}
	svc := newTestService(t, repo, cache)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := svc.GetProductVendor(ctx, p.ID.String())
		if err != nil || out.VendorEmail != "v@shop.com" {
			t.Fatalf("get vendor: %+v %v", out, err)
		}
	}
	if repo.findHits != 1 {
		t.Fatalf("expected one repo read, got %d", repo.findHits)
	}

	if _, err := svc.UpdatePrice(ctx, vendorActor, p.ID.String(), decimal.NewFromInt(11)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok := cache.values[vendorCacheKind+":"+p.ID.String()]; ok {
		t.Fatalf("expected cache entry to be invalidated")
	}
}

func TestRepositoryFailureIsDegraded(t *testing.T) {
	repo := newStubProductRepo()
	repo.err = errors.New("connection refused")
	svc := newTestService(t, repo, nil)

	_, err := svc.Get(context.Background(), uuid.NewString())
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	details, _ := pkgerrors.As(err).Details().(map[string]any)
	if details["reason"] != "CATALOG_UNAVAILABLE" || details["degraded"] != true {
		t.Fatalf("unexpected details %+v", details)
	}

	if _, err := svc.Newest(context.Background(), 0); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error from newest, got %v", err)
	}
	if repo.lastList.Limit != DefaultNewestLimit {
		t.Fatalf("expected default newest limit, got %d", repo.lastList.Limit)
	}
}
