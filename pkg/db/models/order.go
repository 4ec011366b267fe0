package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// Order is the durable record of one checkout. OrderID is the public identifier.
type Order struct {
	OrderID                string               `gorm:"column:order_id;primaryKey"`
	CustomerEmail          string               `gorm:"column:customer_email;not null;index"`
	CustomerPaymentAddress string               `gorm:"column:customer_payment_address;not null;default:''"`
	TotalValue             decimal.Decimal      `gorm:"column:total_value;type:numeric(14,2);not null"`
	ShippingFee            decimal.Decimal      `gorm:"column:shipping_fee;type:numeric(14,2);not null"`
	TotalPaid              decimal.Decimal      `gorm:"column:total_paid;type:numeric(36,18);not null"`
	SettlementCurrency     string               `gorm:"column:settlement_currency;not null"`
	ExchangeRate           decimal.Decimal      `gorm:"column:exchange_rate;type:numeric(36,18);not null"`
	OverallStatus          enums.OrderStatus    `gorm:"column:overall_status;not null"`
	ShippingMethod         enums.ShippingMethod `gorm:"column:shipping_method;not null"`
	ShippingAddress        *ShippingAddress     `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Items                  []OrderItem          `gorm:"foreignKey:OrderID;references:OrderID"`
	Payments               []PaymentAttempt     `gorm:"foreignKey:OrderID;references:OrderID"`
	CreatedAt              time.Time            `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt              time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// ShippingAddress is stored as a JSON document on the order.
type ShippingAddress struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address    string `json:"address"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// OrderItem is the cart snapshot line for one product plus its fulfillment status.
type OrderItem struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     string           `gorm:"column:order_id;not null;uniqueIndex:order_items_order_product_key"`
	ProductID   string           `gorm:"column:product_id;not null;uniqueIndex:order_items_order_product_key"`
	Position    int              `gorm:"column:position;not null"`
	Name        string           `gorm:"column:name;not null"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity    int              `gorm:"column:quantity;not null"`
	Image       string           `gorm:"column:image;not null;default:''"`
	VendorEmail string           `gorm:"column:vendor_email;not null;index"`
	Status      enums.ItemStatus `gorm:"column:status;not null;default:Pending"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// PaymentAttempt records one vendor-directed transfer within a settlement run.
type PaymentAttempt struct {
	ID             uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        string               `gorm:"column:order_id;not null;index"`
	Position       int                  `gorm:"column:position;not null"`
	VendorAddress  string               `gorm:"column:vendor_address;not null"`
	VendorEmail    string               `gorm:"column:vendor_email;not null;index"`
	Amount         decimal.Decimal      `gorm:"column:amount;type:numeric(36,18);not null"`
	Items          []PaymentAttemptItem `gorm:"column:items;type:jsonb;serializer:json"`
	TransactionRef *string              `gorm:"column:transaction_ref"`
	BlockRef       *string              `gorm:"column:block_ref"`
	Success        bool                 `gorm:"column:success;not null"`
	Confirmed      bool                 `gorm:"column:confirmed;not null;default:false"`
	ConfirmedAt    *time.Time           `gorm:"column:confirmed_at"`
	ErrorKind      *string              `gorm:"column:error_kind"`
	ErrorReason    *string              `gorm:"column:error_reason"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (p *PaymentAttempt) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PaymentAttemptItem lists which cart lines a transfer paid for.
type PaymentAttemptItem struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
