package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/internal/cart"
	"github.com/angelmondragon/vendorpay-backend/internal/orders"
	"github.com/angelmondragon/vendorpay-backend/internal/settlement"
	"github.com/angelmondragon/vendorpay-backend/internal/users"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox"
)

type cartBuilder interface {
	Build(ctx context.Context, items []cart.QuoteItem) (*cart.Cart, error)
}

type settler interface {
	Settle(ctx context.Context, payer settlement.Payer, lines []settlement.CartLine) (*settlement.Result, error)
}

type addressBook interface {
	GetPaymentAddress(ctx context.Context, email string) (*users.PaymentAddressDTO, error)
}

type orderRecorder interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*orders.OrderDTO, error)
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, buyer Buyer, req Request) (*Result, error)
}

// ServiceParams wires the checkout collaborators.
type ServiceParams struct {
	Carts    cartBuilder
	Settler  settler
	Payers   addressBook
	Orders   orderRecorder
	Currency string
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	carts    cartBuilder
	settler  settler
	payers   addressBook
	orders   orderRecorder
	currency string
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart builder required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settlement engine required")
	}
	if params.Payers == nil {
		return nil, fmt.Errorf("payer address book required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order recorder required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		carts:    params.Carts,
		settler:  params.Settler,
		payers:   params.Payers,
		orders:   params.Orders,
		currency: params.Currency,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// NewOrderID formats ORD-<unix millis>-<6 hex>.
func NewOrderID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

func (s *service) Execute(ctx context.Context, buyer Buyer, req Request) (*Result, error) {
	if strings.TrimSpace(buyer.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	method := req.ShippingMethod
	if method == "" {
		method = enums.ShippingStandard
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping method")
	}

	orderID := NewOrderID(s.now())
	ctx = s.withOrder(ctx, orderID)

	built, err := s.carts.Build(ctx, req.Items)
	if err != nil {
		return nil, withOrderID(err, orderID)
	}

	payer, err := s.payer(ctx, buyer.Email)
	if err != nil {
		return nil, withOrderID(err, orderID)
	}

	res, err := s.settler.Settle(ctx, payer, cartLines(built))
	if err != nil {
		return nil, withOrderID(err, orderID)
	}

	result := &Result{
		OrderID:        orderID,
		State:          res.State,
		Attempts:       res.Attempts,
		PaidVendors:    nonNil(res.PaidVendors()),
		UnpaidVendors:  nonNil(res.UnpaidVendors()),
		SkippedItems:   res.SkippedItems,
		Subtotal:       built.Subtotal(),
		Shipping:       built.Shipping(method),
		Total:          built.Total(method),
		TotalPaid:      res.TotalPaid,
		Currency:       s.currency,
		ExchangeRate:   res.Rate,
		ShippingMethod: method,
	}

	if len(res.Attempts) > 0 {
		// Money has moved; the order is recorded even if the caller went away.
		recordCtx := context.WithoutCancel(ctx)
		order, recordErr := s.orders.CreateOrder(recordCtx, orderInput(orderID, buyer, payer, built, method, req, res, s.currency))
		if recordErr != nil {
			s.logError(ctx, "order record failed after settlement", recordErr)
			result.RecordError = recordErr.Error()
		} else {
			result.OrderRecorded = true
			result.Order = order
		}
	}

	if res.State == settlement.StateAllSucceeded {
		return result, nil
	}
	return nil, settlementError(result, res)
}

func (s *service) payer(ctx context.Context, email string) (settlement.Payer, error) {
	payer := settlement.Payer{Email: email}
	dto, err := s.payers.GetPaymentAddress(ctx, email)
	if err != nil {
		// A missing address is reported by the settlement engine as an invalid payer.
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return payer, nil
		}
		return payer, err
	}
	payer.PaymentAddress = dto.PaymentAddress
	return payer, nil
}

// withOrderID adds the order id to the details of typed errors whose details
// are absent or keyed.
func withOrderID(err error, orderID string) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err
	}
	details := map[string]any{}
	switch existing := typed.Details().(type) {
	case nil:
	case map[string]any:
		for k, v := range existing {
			details[k] = v
		}
	default:
		return err
	}
	details["orderId"] = orderID
	typed.WithDetails(details)
	return err
}

func settlementError(result *Result, res *settlement.Result) error {
	details := map[string]any{
		"orderId":       result.OrderID,
		"unpaidVendors": result.UnpaidVendors,
		"attempts":      result.Attempts,
		"skippedItems":  result.SkippedItems,
		"orderRecorded": result.OrderRecorded,
	}
	if result.RecordError != "" {
		details["recordError"] = result.RecordError
	}

	message := "vendor transfer failed"
	if failed := res.Failed(); failed != nil && failed.ErrorReason != "" {
		message = "vendor transfer failed: " + failed.ErrorReason
	}

	if len(result.PaidVendors) == 0 {
		return pkgerrors.New(pkgerrors.CodeLedger, message).WithDetails(details)
	}
	details["paidVendors"] = result.PaidVendors
	return pkgerrors.New(pkgerrors.CodePartialSettlement, "settlement partially completed; "+message).WithDetails(details)
}

func cartLines(c *cart.Cart) []settlement.CartLine {
	items := c.Items()
	lines := make([]settlement.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, settlement.CartLine{
			ProductID:   item.ProductID,
			Name:        item.Name,
			Price:       item.Price,
			Quantity:    item.Quantity,
			Image:       item.Image,
			VendorEmail: item.VendorEmail,
		})
	}
	return lines
}

func orderInput(orderID string, buyer Buyer, payer settlement.Payer, c *cart.Cart, method enums.ShippingMethod, req Request, res *settlement.Result, currency string) orders.CreateOrderInput {
	input := orders.CreateOrderInput{
		OrderID:                orderID,
		CustomerEmail:          buyer.Email,
		CustomerPaymentAddress: payer.PaymentAddress,
		TotalValue:             c.Total(method),
		ShippingFee:            c.Shipping(method),
		TotalPaid:              res.TotalPaid,
		Currency:               currency,
		ExchangeRate:           res.Rate,
		ShippingMethod:         method,
		ShippingAddress:        req.ShippingAddress,
		Actor: &outbox.ActorRef{
			UserID: buyer.UserID,
			Email:  buyer.Email,
			Role:   string(buyer.Role),
		},
	}
	for _, item := range c.Items() {
		input.Items = append(input.Items, orders.ItemInput{
			ProductID:   item.ProductID.String(),
			Name:        item.Name,
			Price:       item.Price,
			Quantity:    item.Quantity,
			Image:       item.Image,
			VendorEmail: item.VendorEmail,
		})
	}
	for _, attempt := range res.Attempts {
		row := orders.AttemptInput{
			Position:       attempt.Position,
			VendorAddress:  attempt.VendorAddress,
			VendorEmail:    attempt.VendorEmail(),
			Amount:         attempt.Amount,
			Success:        attempt.Success,
			Confirmed:      attempt.Confirmed,
			TransactionRef: attempt.TransactionRef,
			BlockRef:       attempt.BlockRef,
			ErrorKind:      string(attempt.ErrorKind),
			ErrorReason:    attempt.ErrorReason,
		}
		for _, item := range attempt.Items {
			row.Items = append(row.Items, orders.AttemptItemInput{
				ProductID: item.ProductID.String(),
				Name:      item.Name,
				Quantity:  item.Quantity,
				Price:     item.Price,
			})
		}
		input.Attempts = append(input.Attempts, row)
	}
	return input
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (s *service) withOrder(ctx context.Context, orderID string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithOrderID(ctx, orderID)
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(ctx, msg, err)
}
