// Package cart holds the client-side cart aggregate and the stateless quote
// built from it. Carts are never persisted.
package cart

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

// Item is one cart line. A cart holds at most one Item per ProductID.
type Item struct {
	ProductID   uuid.UUID       `json:"product_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Image       string          `json:"image"`
	VendorEmail string          `json:"vendor_email"`
}

// LineTotal is price × quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ShippingRates are the flat fees per shipping method.
type ShippingRates struct {
	Standard decimal.Decimal
	Express  decimal.Decimal
}

// Cart keeps insertion order so grouping downstream is deterministic.
type Cart struct {
	items []Item
	rates ShippingRates
}

// New returns an empty cart priced with rates.
func New(rates ShippingRates) *Cart {
	return &Cart{rates: rates}
}

// Add inserts item or merges its quantity into the existing line.
func (c *Cart) Add(item Item) error {
	if item.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if item.Quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if item.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	item.VendorEmail = strings.ToLower(strings.TrimSpace(item.VendorEmail))
	if idx := c.indexOf(item.ProductID); idx >= 0 {
		c.items[idx].Quantity += item.Quantity
		return nil
	}
	c.items = append(c.items, item)
	return nil
}

// SetQuantity replaces the quantity of an existing line. Zero removes it.
func (c *Cart) SetQuantity(productID uuid.UUID, quantity int) error {
	if quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	idx := c.indexOf(productID)
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s is not in the cart", productID))
	}
	if quantity == 0 {
		c.removeAt(idx)
		return nil
	}
	c.items[idx].Quantity = quantity
	return nil
}

// Remove drops the line for productID if present.
func (c *Cart) Remove(productID uuid.UUID) {
	if idx := c.indexOf(productID); idx >= 0 {
		c.removeAt(idx)
	}
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int { return len(c.items) }

func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Shipping is a flat fee per method and zero for an empty cart.
func (c *Cart) Shipping(method enums.ShippingMethod) decimal.Decimal {
	if len(c.items) == 0 {
		return decimal.Zero
	}
	if method == enums.ShippingExpress {
		return c.rates.Express
	}
	return c.rates.Standard
}

func (c *Cart) Total(method enums.ShippingMethod) decimal.Decimal {
	return c.Subtotal().Add(c.Shipping(method))
}

func (c *Cart) indexOf(productID uuid.UUID) int {
	for i, item := range c.items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(idx int) {
	c.items = append(c.items[:idx], c.items[idx+1:]...)
}
