package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/internal/cart"
	"github.com/angelmondragon/vendorpay-backend/internal/orders"
	"github.com/angelmondragon/vendorpay-backend/internal/settlement"
	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// Request is the checkout body. Only product ids and quantities are taken from the client.
type Request struct {
	Items           []cart.QuoteItem        `json:"items" validate:"required,min=1,dive"`
	ShippingMethod  enums.ShippingMethod    `json:"shipping_method"`
	ShippingAddress *models.ShippingAddress `json:"shipping_address,omitempty"`
}

// Buyer identifies the authenticated customer paying for the cart.
type Buyer struct {
	UserID uuid.UUID
	Email  string
	Role   enums.Role
}

// Result is returned for a checkout where every submitted transfer succeeded.
type Result struct {
	OrderID        string                   `json:"order_id"`
	State          settlement.State         `json:"state"`
	Attempts       []settlement.Attempt     `json:"attempts"`
	PaidVendors    []string                 `json:"paid_vendors"`
	UnpaidVendors  []string                 `json:"unpaid_vendors"`
	SkippedItems   []settlement.SkippedItem `json:"skipped_items"`
	Subtotal       decimal.Decimal          `json:"subtotal"`
	Shipping       decimal.Decimal          `json:"shipping"`
	Total          decimal.Decimal          `json:"total"`
	TotalPaid      decimal.Decimal          `json:"total_paid"`
	Currency       string                   `json:"currency"`
	ExchangeRate   decimal.Decimal          `json:"exchange_rate"`
	ShippingMethod enums.ShippingMethod     `json:"shipping_method"`
	OrderRecorded  bool                     `json:"order_recorded"`
	RecordError    string                   `json:"record_error,omitempty"`
	Order          *orders.OrderDTO         `json:"order,omitempty"`
}
