package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/pagination"
	"github.com/angelmondragon/vendorpay-backend/pkg/redis"
)

const (
	// DefaultNewestLimit is how many products the newest arrivals rail shows.
	DefaultNewestLimit = 5

	vendorCacheKind     = "productvendor"
	defaultVendorTTL    = time.Hour
	catalogCollaborator = "catalog"
)

// Actor is the authenticated caller of a catalog mutation.
type Actor struct {
	Email string
	Role  enums.Role
}

// Service exposes catalog operations.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateProductInput) (*ProductDTO, error)
	List(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	Newest(ctx context.Context, limit int) ([]ProductDTO, error)
	Get(ctx context.Context, id string) (*ProductDTO, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ProductDTO, error)
	UpdatePrice(ctx context.Context, actor Actor, id string, price decimal.Decimal) (*ProductDTO, error)
	Delete(ctx context.Context, actor Actor, id string) error
	GetProductVendor(ctx context.Context, id string) (*ProductVendorDTO, error)
}

type productRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, vendorEmail string, price decimal.Decimal) error
	DeleteProduct(ctx context.Context, id uuid.UUID, vendorEmail string) error
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
}

type vendorCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(kind, id string) string
}

// ServiceParams bundles the catalog collaborators. Cache may be nil.
type ServiceParams struct {
	Repo      productRepository
	Cache     vendorCache
	VendorTTL time.Duration
	Logger    *logger.Logger
}

type service struct {
	repo      productRepository
	cache     vendorCache
	vendorTTL time.Duration
	logg      *logger.Logger
}

// NewService constructs a product service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	ttl := params.VendorTTL
	if ttl <= 0 {
		ttl = defaultVendorTTL
	}
	return &service{
		repo:      params.Repo,
		cache:     params.Cache,
		vendorTTL: ttl,
		logg:      params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateProductInput) (*ProductDTO, error) {
	vendor := normalizeEmail(actor.Email)
	if actor.Role != enums.RoleVendor || vendor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only vendors can create products")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if len(input.OtherImages) > MaxOtherImages {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d other images are allowed", MaxOtherImages))
	}

	created, err := s.repo.CreateProduct(ctx, input.toModel(vendor))
	if err != nil {
		return nil, pkgerrors.Degraded(catalogCollaborator, err)
	}
	dto := fromModel(created)
	return &dto, nil
}

func (s *service) List(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	input.VendorEmail = normalizeEmail(input.VendorEmail)
	result, err := s.repo.ListProducts(ctx, input)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Degraded(catalogCollaborator, err)
	}
	return result, nil
}

func (s *service) Newest(ctx context.Context, limit int) ([]ProductDTO, error) {
	if limit <= 0 {
		limit = DefaultNewestLimit
	}
	result, err := s.repo.ListProducts(ctx, ListProductsInput{Limit: limit})
	if err != nil {
		return nil, pkgerrors.Degraded(catalogCollaborator, err)
	}
	return result.Products, nil
}

func (s *service) Get(ctx context.Context, id string) (*ProductDTO, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := fromModel(product)
	return &dto, nil
}

// GetMany resolves a batch of products keyed by id. Missing ids are absent.
func (s *service) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ProductDTO, error) {
	rows, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Degraded(catalogCollaborator, err)
	}
	out := make(map[uuid.UUID]ProductDTO, len(rows))
	for i := range rows {
		out[rows[i].ID] = fromModel(&rows[i])
	}
	return out, nil
}

func (s *service) UpdatePrice(ctx context.Context, actor Actor, id string, price decimal.Decimal) (*ProductDTO, error) {
	if err := validatePrice(price); err != nil {
		return nil, err
	}
	product, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePrice(ctx, product.ID, product.VendorEmail, price); err != nil {
		return nil, s.lookupError(err)
	}
	s.invalidateVendor(ctx, product.ID)

	product.Price = price
	product.UpdatedAt = time.Now().UTC()
	dto := fromModel(product)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, actor Actor, id string) error {
	product, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, product.ID, product.VendorEmail); err != nil {
		return s.lookupError(err)
	}
	s.invalidateVendor(ctx, product.ID)
	return nil
}

// GetProductVendor resolves the owning vendor email through a read-through cache.
func (s *service) GetProductVendor(ctx context.Context, id string) (*ProductVendorDTO, error) {
	productID, err := parseProductID(id)
	if err != nil {
		return nil, err
	}
	if email, ok := s.cachedVendor(ctx, productID); ok {
		return &ProductVendorDTO{ProductID: productID, VendorEmail: email}, nil
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	s.storeVendor(ctx, productID, product.VendorEmail)
	return &ProductVendorDTO{ProductID: productID, VendorEmail: product.VendorEmail}, nil
}

func (s *service) load(ctx context.Context, id string) (*models.Product, error) {
	productID, err := parseProductID(id)
	if err != nil {
		return nil, err
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return product, nil
}

func (s *service) loadOwned(ctx context.Context, actor Actor, id string) (*models.Product, error) {
	if actor.Role != enums.RoleVendor {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only vendors can modify products")
	}
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if normalizeEmail(product.VendorEmail) != normalizeEmail(actor.Email) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another vendor")
	}
	return product, nil
}

func (s *service) lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Degraded(catalogCollaborator, err)
}

func (s *service) cachedVendor(ctx context.Context, id uuid.UUID) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	value, err := s.cache.Get(ctx, s.cache.CacheKey(vendorCacheKind, id.String()))
	if err != nil {
		if !redis.IsMiss(err) {
			s.warn(ctx, "product vendor cache read failed", err)
		}
		return "", false
	}
	if strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func (s *service) storeVendor(ctx context.Context, id uuid.UUID, email string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.CacheKey(vendorCacheKind, id.String()), email, s.vendorTTL); err != nil {
		s.warn(ctx, "product vendor cache write failed", err)
	}
}

func (s *service) invalidateVendor(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cache.CacheKey(vendorCacheKind, id.String())); err != nil {
		s.warn(ctx, "product vendor cache invalidation failed", err)
	}
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

func parseProductID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return parsed, nil
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero").
			WithDetails(map[string]any{"field": "price"})
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
