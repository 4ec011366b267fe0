package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox"
)

// ItemInput is one cart line captured when an order is recorded.
type ItemInput struct {
	ProductID   string
	Name        string
	Price       decimal.Decimal
	Quantity    int
	Image       string
	VendorEmail string
}

// AttemptItemInput names a cart line paid by one transfer.
type AttemptItemInput struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// AttemptInput is one submitted transfer from the settlement run.
type AttemptInput struct {
	Position       int
	VendorAddress  string
	VendorEmail    string
	Amount         decimal.Decimal
	Items          []AttemptItemInput
	Success        bool
	Confirmed      bool
	TransactionRef string
	BlockRef       string
	ErrorKind      string
	ErrorReason    string
}

// CreateOrderInput carries everything required to persist a settled checkout.
type CreateOrderInput struct {
	OrderID                string
	CustomerEmail          string
	CustomerPaymentAddress string
	Items                  []ItemInput
	Attempts               []AttemptInput
	TotalValue             decimal.Decimal
	ShippingFee            decimal.Decimal
	TotalPaid              decimal.Decimal
	Currency               string
	ExchangeRate           decimal.Decimal
	ShippingMethod         enums.ShippingMethod
	ShippingAddress        *models.ShippingAddress
	Actor                  *outbox.ActorRef
}

// UpdateItemStatusInput identifies the item a vendor is moving through fulfillment.
type UpdateItemStatusInput struct {
	OrderID     string
	ItemID      string
	Status      string
	VendorEmail string
	Actor       *outbox.ActorRef
}

// ItemDTO is the public view of an order line.
type ItemDTO struct {
	ProductID   string           `json:"id"`
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	Quantity    int              `json:"quantity"`
	Image       string           `json:"image,omitempty"`
	VendorEmail string           `json:"vendorEmail"`
	Status      enums.ItemStatus `json:"status"`
}

// PaymentDTO is the public view of a payment attempt.
type PaymentDTO struct {
	Position       int                         `json:"position"`
	VendorAddress  string                      `json:"vendorAddress"`
	VendorEmail    string                      `json:"vendorEmail"`
	Amount         decimal.Decimal             `json:"amount"`
	Items          []models.PaymentAttemptItem `json:"items"`
	Success        bool                        `json:"success"`
	Confirmed      bool                        `json:"confirmed"`
	TransactionRef *string                     `json:"transactionId,omitempty"`
	BlockRef       *string                     `json:"blockHash,omitempty"`
	ErrorKind      *string                     `json:"errorKind,omitempty"`
	ErrorReason    *string                     `json:"error,omitempty"`
}

// OrderDTO is the full order returned to the buyer and to internal callers.
type OrderDTO struct {
	OrderID                string                  `json:"orderId"`
	CustomerEmail          string                  `json:"customerEmail"`
	CustomerPaymentAddress string                  `json:"customerPaymentAddress,omitempty"`
	TotalValue             decimal.Decimal         `json:"totalValue"`
	ShippingFee            decimal.Decimal         `json:"shippingFee"`
	TotalPaid              decimal.Decimal         `json:"totalPaid"`
	Currency               string                  `json:"currency"`
	ExchangeRate           decimal.Decimal         `json:"exchangeRate"`
	OverallStatus          enums.OrderStatus       `json:"overallStatus"`
	ShippingMethod         enums.ShippingMethod    `json:"shippingMethod"`
	ShippingAddress        *models.ShippingAddress `json:"shippingAddress,omitempty"`
	Items                  []ItemDTO               `json:"items"`
	Payments               []PaymentDTO            `json:"paymentDetails"`
	CreatedAt              time.Time               `json:"createdAt"`
}

// VendorOrderDTO is an order as seen by one vendor: only the items and payments that vendor was paid for.
type VendorOrderDTO struct {
	OrderID         string                  `json:"orderId"`
	CustomerEmail   string                  `json:"customerEmail"`
	OverallStatus   enums.OrderStatus       `json:"overallStatus"`
	ShippingMethod  enums.ShippingMethod    `json:"shippingMethod"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress,omitempty"`
	Items           []ItemDTO               `json:"items"`
	Payments        []PaymentDTO            `json:"paymentDetails"`
	CreatedAt       time.Time               `json:"createdAt"`
}

// StatusItem is one line of a status summary.
type StatusItem struct {
	Name        string           `json:"name"`
	Quantity    int              `json:"quantity"`
	Status      enums.ItemStatus `json:"status"`
	VendorEmail string           `json:"vendorEmail"`
}

// StatusSummary is the buyer-facing status view of an order.
type StatusSummary struct {
	OrderID         string                  `json:"orderId"`
	OrderDate       time.Time               `json:"orderDate"`
	Items           []StatusItem            `json:"items"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress,omitempty"`
}

// TrackResult is the compact lookup returned by order tracking.
type TrackResult struct {
	OrderID   string            `json:"orderId"`
	Email     string            `json:"email"`
	Status    enums.OrderStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

func toOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		OrderID:                order.OrderID,
		CustomerEmail:          order.CustomerEmail,
		CustomerPaymentAddress: order.CustomerPaymentAddress,
		TotalValue:             order.TotalValue,
		ShippingFee:            order.ShippingFee,
		TotalPaid:              order.TotalPaid,
		Currency:               order.SettlementCurrency,
		ExchangeRate:           order.ExchangeRate,
		OverallStatus:          order.OverallStatus,
		ShippingMethod:         order.ShippingMethod,
		ShippingAddress:        order.ShippingAddress,
		Items:                  make([]ItemDTO, 0, len(order.Items)),
		Payments:               make([]PaymentDTO, 0, len(order.Payments)),
		CreatedAt:              order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, toItemDTO(item))
	}
	for _, payment := range order.Payments {
		dto.Payments = append(dto.Payments, toPaymentDTO(payment))
	}
	return dto
}

func toItemDTO(item models.OrderItem) ItemDTO {
	return ItemDTO{
		ProductID:   item.ProductID,
		Name:        item.Name,
		Price:       item.Price,
		Quantity:    item.Quantity,
		Image:       item.Image,
		VendorEmail: item.VendorEmail,
		Status:      item.Status,
	}
}

func toPaymentDTO(p models.PaymentAttempt) PaymentDTO {
	return PaymentDTO{
		Position:       p.Position,
		VendorAddress:  p.VendorAddress,
		VendorEmail:    p.VendorEmail,
		Amount:         p.Amount,
		Items:          p.Items,
		Success:        p.Success,
		Confirmed:      p.Confirmed,
		TransactionRef: p.TransactionRef,
		BlockRef:       p.BlockRef,
		ErrorKind:      p.ErrorKind,
		ErrorReason:    p.ErrorReason,
	}
}

// toVendorOrderDTO keeps the items and payments covered by the vendor's successful
// attempts. It returns false when nothing of the order belongs to the vendor.
// toVendorOrderDTO narrows order to the lines vendorEmail owns and was paid
// for. A payment belongs to the vendor when it covered any of those lines, so
// vendors sharing a payout address each see the shared transfer.
func toVendorOrderDTO(order *models.Order, vendorEmail string) (VendorOrderDTO, bool) {
	owned := map[string]struct{}{}
	for _, item := range order.Items {
		if strings.EqualFold(item.VendorEmail, vendorEmail) {
			owned[item.ProductID] = struct{}{}
		}
	}

	out := VendorOrderDTO{
		OrderID:         order.OrderID,
		CustomerEmail:   order.CustomerEmail,
		OverallStatus:   order.OverallStatus,
		ShippingMethod:  order.ShippingMethod,
		ShippingAddress: order.ShippingAddress,
		CreatedAt:       order.CreatedAt,
	}
	paid := map[string]struct{}{}
	for _, payment := range order.Payments {
		if !payment.Success {
			continue
		}
		covers := false
		for _, item := range payment.Items {
			if _, ok := owned[item.ProductID]; ok {
				paid[item.ProductID] = struct{}{}
				covers = true
			}
		}
		if covers {
			out.Payments = append(out.Payments, toPaymentDTO(payment))
		}
	}
	for _, item := range order.Items {
		if _, ok := paid[item.ProductID]; ok {
			out.Items = append(out.Items, toItemDTO(item))
		}
	}
	return out, len(out.Items) > 0
}

func toStatusSummary(order *models.Order) *StatusSummary {
	summary := &StatusSummary{
		OrderID:         order.OrderID,
		OrderDate:       order.CreatedAt,
		ShippingAddress: order.ShippingAddress,
		Items:           make([]StatusItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		summary.Items = append(summary.Items, StatusItem{
			Name:        item.Name,
			Quantity:    item.Quantity,
			Status:      item.Status,
			VendorEmail: item.VendorEmail,
		})
	}
	return summary
}
