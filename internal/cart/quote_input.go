package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// QuoteInput is the client-held cart posted for pricing. Only product ids and
// quantities are trusted; names, prices and vendors come from the catalog.
type QuoteInput struct {
	Items          []QuoteItem          `json:"items" validate:"required,min=1,dive"`
	ShippingMethod enums.ShippingMethod `json:"shipping_method"`
}

// QuoteItem is one requested line.
type QuoteItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// Quote is the priced cart.
type Quote struct {
	Items          []Item               `json:"items"`
	ShippingMethod enums.ShippingMethod `json:"shipping_method"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	Shipping       decimal.Decimal      `json:"shipping"`
	Total          decimal.Decimal      `json:"total"`
}
