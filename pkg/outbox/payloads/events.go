package payloads

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// VendorPayout summarizes what one vendor received in an order.
type VendorPayout struct {
	VendorEmail   string          `json:"vendor_email"`
	VendorAddress string          `json:"vendor_address"`
	Amount        decimal.Decimal `json:"amount"`
	ItemCount     int             `json:"item_count"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

// OrderCreatedEvent is emitted once an order has been recorded after settlement.
type OrderCreatedEvent struct {
	OrderID       string            `json:"order_id"`
	CustomerEmail string            `json:"customer_email"`
	OverallStatus enums.OrderStatus `json:"overall_status"`
	TotalPaid     decimal.Decimal   `json:"total_paid"`
	Currency      string            `json:"currency"`
	PaidVendors   []VendorPayout    `json:"paid_vendors"`
	CreatedAt     time.Time         `json:"created_at"`
}

// OrderItemStatusChangedEvent is emitted when a vendor moves an item through fulfillment.
type OrderItemStatusChangedEvent struct {
	OrderID        string           `json:"order_id"`
	ItemID         string           `json:"item_id"`
	ProductID      string           `json:"product_id"`
	VendorEmail    string           `json:"vendor_email"`
	CustomerEmail  string           `json:"customer_email"`
	PreviousStatus enums.ItemStatus `json:"previous_status"`
	Status         enums.ItemStatus `json:"status"`
}
