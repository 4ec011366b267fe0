package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/pkg/db"
	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox/payloads"
)

const orderPrimaryKey = "orders_pkey"

// ReasonInvalidStatus marks an item status outside Pending, Shipped and Delivered.
const ReasonInvalidStatus = "INVALID_STATUS"

// Service exposes the order ledger operations.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	FindByOrderID(ctx context.Context, orderID string) (*OrderDTO, error)
	ListForVendor(ctx context.Context, vendorEmail string) ([]VendorOrderDTO, error)
	UpdateItemStatus(ctx context.Context, input UpdateItemStatusInput) (*OrderDTO, error)
	GetStatusSummary(ctx context.Context, orderID, email string) (*StatusSummary, error)
	TrackOrder(ctx context.Context, orderID, email string) (*TrackResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds the order ledger with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	order := buildOrder(input)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.Exists(ctx, order.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing order")
		}
		if exists {
			return duplicateOrder(order.OrderID)
		}

		if err := repo.CreateOrder(ctx, order); err != nil {
			if db.IsUniqueViolation(err, orderPrimaryKey) {
				return duplicateOrder(order.OrderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := repo.CreateItems(ctx, order.Items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		if err := repo.CreatePaymentAttempts(ctx, order.Payments); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment attempts")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateKey:  order.OrderID,
			Actor:         input.Actor,
			Data:          orderCreatedEvent(order),
		})
	})
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.FindByOrderID(ctx, order.OrderID)
	if err != nil {
		return nil, lookupError(err, "reload order")
	}
	return toOrderDTO(stored), nil
}

func (s *service) FindByOrderID(ctx context.Context, orderID string) (*OrderDTO, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "load order")
	}
	return toOrderDTO(order), nil
}

func (s *service) ListForVendor(ctx context.Context, vendorEmail string) ([]VendorOrderDTO, error) {
	vendorEmail = strings.TrimSpace(vendorEmail)
	if vendorEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}
	rows, err := s.repo.ListForVendor(ctx, vendorEmail)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor orders")
	}
	out := make([]VendorOrderDTO, 0, len(rows))
	for i := range rows {
		if view, ok := toVendorOrderDTO(&rows[i], vendorEmail); ok {
			out = append(out, view)
		}
	}
	return out, nil
}

func (s *service) UpdateItemStatus(ctx context.Context, input UpdateItemStatusInput) (*OrderDTO, error) {
	status, err := enums.ParseItemStatus(strings.TrimSpace(input.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item status").
			WithDetails(map[string]any{
				"reason":  ReasonInvalidStatus,
				"allowed": []enums.ItemStatus{enums.ItemStatusPending, enums.ItemStatusShipped, enums.ItemStatusDelivered},
			})
	}
	if strings.TrimSpace(input.VendorEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByOrderID(ctx, input.OrderID)
		if err != nil {
			return lookupError(err, "load order")
		}
		item, err := repo.FindItem(ctx, input.OrderID, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if !strings.EqualFold(item.VendorEmail, input.VendorEmail) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "item does not belong to vendor")
		}

		if err := repo.UpdateItemStatus(ctx, input.OrderID, input.ItemID, status); err != nil {
			return lookupError(err, "update item status")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderItemStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateKey:  order.OrderID,
			Actor:         input.Actor,
			Data: payloads.OrderItemStatusChangedEvent{
				OrderID:        order.OrderID,
				ItemID:         item.ID.String(),
				ProductID:      item.ProductID,
				VendorEmail:    item.VendorEmail,
				CustomerEmail:  order.CustomerEmail,
				PreviousStatus: item.Status,
				Status:         status,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindByOrderID(ctx, input.OrderID)
	if err != nil {
		return nil, lookupError(err, "reload order")
	}
	return toOrderDTO(order), nil
}

func (s *service) GetStatusSummary(ctx context.Context, orderID, email string) (*StatusSummary, error) {
	order, err := s.lookupForCustomer(ctx, orderID, email)
	if err != nil {
		return nil, err
	}
	return toStatusSummary(order), nil
}

func (s *service) TrackOrder(ctx context.Context, orderID, email string) (*TrackResult, error) {
	order, err := s.lookupForCustomer(ctx, orderID, email)
	if err != nil {
		return nil, err
	}
	return &TrackResult{
		OrderID:   order.OrderID,
		Email:     order.CustomerEmail,
		Status:    order.OverallStatus,
		CreatedAt: order.CreatedAt,
	}, nil
}

// lookupForCustomer answers NotFound for an email mismatch so order ids cannot be probed.
func (s *service) lookupForCustomer(ctx context.Context, orderID, email string) (*models.Order, error) {
	orderID = strings.TrimSpace(orderID)
	email = strings.TrimSpace(email)
	if orderID == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and email are required")
	}
	order, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "load order")
	}
	if !strings.EqualFold(order.CustomerEmail, email) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// DeriveOverallStatus summarizes submitted attempts into the order status.
func DeriveOverallStatus(attempts []AttemptInput) enums.OrderStatus {
	var succeeded, failed int
	for _, attempt := range attempts {
		if attempt.Success {
			succeeded++
		} else {
			failed++
		}
	}
	switch {
	case succeeded > 0 && failed == 0:
		return enums.OrderStatusCompleted
	case succeeded > 0:
		return enums.OrderStatusPartiallyCompleted
	default:
		return enums.OrderStatusFailed
	}
}

func validateCreateInput(input CreateOrderInput) error {
	switch {
	case strings.TrimSpace(input.OrderID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	case strings.TrimSpace(input.CustomerEmail) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	case len(input.Items) == 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	case len(input.Attempts) == 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "order requires a payment breakdown")
	}
	return nil
}

func buildOrder(input CreateOrderInput) *models.Order {
	method := input.ShippingMethod
	if !method.IsValid() {
		method = enums.ShippingStandard
	}
	order := &models.Order{
		OrderID:                strings.TrimSpace(input.OrderID),
		CustomerEmail:          strings.TrimSpace(input.CustomerEmail),
		CustomerPaymentAddress: input.CustomerPaymentAddress,
		TotalValue:             input.TotalValue,
		ShippingFee:            input.ShippingFee,
		TotalPaid:              input.TotalPaid,
		SettlementCurrency:     input.Currency,
		ExchangeRate:           input.ExchangeRate,
		OverallStatus:          DeriveOverallStatus(input.Attempts),
		ShippingMethod:         method,
		ShippingAddress:        input.ShippingAddress,
	}

	for i, item := range input.Items {
		order.Items = append(order.Items, models.OrderItem{
			OrderID:     order.OrderID,
			ProductID:   item.ProductID,
			Position:    i,
			Name:        item.Name,
			Price:       item.Price,
			Quantity:    item.Quantity,
			Image:       item.Image,
			VendorEmail: item.VendorEmail,
			Status:      enums.ItemStatusPending,
		})
	}

	for _, attempt := range input.Attempts {
		row := models.PaymentAttempt{
			OrderID:        order.OrderID,
			Position:       attempt.Position,
			VendorAddress:  attempt.VendorAddress,
			VendorEmail:    attempt.VendorEmail,
			Amount:         attempt.Amount,
			Success:        attempt.Success,
			Confirmed:      attempt.Confirmed,
			TransactionRef: optional(attempt.TransactionRef),
			BlockRef:       optional(attempt.BlockRef),
			ErrorKind:      optional(attempt.ErrorKind),
			ErrorReason:    optional(attempt.ErrorReason),
		}
		for _, item := range attempt.Items {
			row.Items = append(row.Items, models.PaymentAttemptItem{
				ProductID: item.ProductID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				Price:     item.Price,
			})
		}
		order.Payments = append(order.Payments, row)
	}
	return order
}

func orderCreatedEvent(order *models.Order) payloads.OrderCreatedEvent {
	event := payloads.OrderCreatedEvent{
		OrderID:       order.OrderID,
		CustomerEmail: order.CustomerEmail,
		OverallStatus: order.OverallStatus,
		TotalPaid:     order.TotalPaid,
		Currency:      order.SettlementCurrency,
		PaidVendors:   []payloads.VendorPayout{},
		CreatedAt:     order.CreatedAt,
	}
	for _, payment := range order.Payments {
		if !payment.Success {
			continue
		}
		payout := payloads.VendorPayout{
			VendorEmail:   payment.VendorEmail,
			VendorAddress: payment.VendorAddress,
			Amount:        payment.Amount,
			ItemCount:     len(payment.Items),
		}
		if payment.TransactionRef != nil {
			payout.TransactionID = *payment.TransactionRef
		}
		event.PaidVendors = append(event.PaidVendors, payout)
	}
	return event
}

// TotalPaid sums the successful attempt amounts.
func TotalPaid(attempts []AttemptInput) decimal.Decimal {
	total := decimal.Zero
	for _, attempt := range attempts {
		if attempt.Success {
			total = total.Add(attempt.Amount)
		}
	}
	return total
}

func duplicateOrder(orderID string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "order already exists").
		WithDetails(map[string]any{"orderId": orderID})
}

func lookupError(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
