package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/internal/products"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

type catalog interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]products.ProductDTO, error)
}

// Service prices client-held carts against the catalog.
type Service interface {
	Build(ctx context.Context, items []QuoteItem) (*Cart, error)
	Quote(ctx context.Context, input QuoteInput) (*Quote, error)
}

type service struct {
	catalog catalog
	rates   ShippingRates
}

// NewService builds a cart service.
func NewService(catalog catalog, rates ShippingRates) (Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	return &service{catalog: catalog, rates: rates}, nil
}

// Build turns requested lines into a cart priced from the catalog. Unknown
// products fail the whole build with their ids in the error details.
func (s *service) Build(ctx context.Context, items []QuoteItem) (*Cart, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		ids = append(ids, item.ProductID)
	}

	found, err := s.catalog.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	var missing []string
	c := New(s.rates)
	for _, item := range items {
		product, ok := found[item.ProductID]
		if !ok {
			missing = append(missing, item.ProductID.String())
			continue
		}
		if err := c.Add(Item{
			ProductID:   product.ID,
			Name:        product.Name,
			Price:       product.Price,
			Quantity:    item.Quantity,
			Image:       product.MainImage,
			VendorEmail: product.VendorEmail,
		}); err != nil {
			return nil, err
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "some products no longer exist").
			WithDetails(map[string]any{"product_ids": missing})
	}
	return c, nil
}

func (s *service) Quote(ctx context.Context, input QuoteInput) (*Quote, error) {
	method, err := enums.ParseShippingMethod(string(input.ShippingMethod))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping method")
	}
	c, err := s.Build(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Items:          c.Items(),
		ShippingMethod: method,
		Subtotal:       c.Subtotal(),
		Shipping:       c.Shipping(method),
		Total:          c.Total(method),
	}, nil
}
