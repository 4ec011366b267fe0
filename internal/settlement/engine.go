// Package settlement turns a multi-vendor cart into sequential per-vendor
// ledger transfers and reports the outcome of every group.
package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/ledger"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/metrics"
)

// settlementPrecision is the finest unit the ledger can move.
const settlementPrecision = 18

const (
	ReasonEmptyCart       = "EMPTY_CART"
	ReasonNothingPayable  = "NOTHING_PAYABLE"
	ReasonRateUnavailable = "RATE_UNAVAILABLE"
	ReasonPayerAddress    = "INVALID_PAYER_ADDRESS"
)

type vendorDirectory interface {
	ResolveVendorAddresses(ctx context.Context, emails []string) (map[string]string, error)
}

// EngineParams bundles the engine collaborators.
type EngineParams struct {
	Directory       vendorDirectory
	Ledger          ledger.Ledger
	Rates           RateProvider
	Metrics         *metrics.SettlementMetrics
	Logger          *logger.Logger
	TransferTimeout time.Duration
}

// Engine settles carts. It never retries a transfer.
type Engine struct {
	directory       vendorDirectory
	ledger          ledger.Ledger
	rates           RateProvider
	metrics         *metrics.SettlementMetrics
	logg            *logger.Logger
	transferTimeout time.Duration
	now             func() time.Time
}

// NewEngine validates params and builds an engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Directory == nil {
		return nil, fmt.Errorf("vendor directory required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Rates == nil {
		return nil, fmt.Errorf("rate provider required")
	}
	return &Engine{
		directory:       params.Directory,
		ledger:          params.Ledger,
		rates:           params.Rates,
		metrics:         params.Metrics,
		logg:            params.Logger,
		transferTimeout: params.TransferTimeout,
		now:             func() time.Time { return time.Now().UTC() },
	}, nil
}

type run struct {
	engine *Engine
	result *Result
}

func (r *run) enter(to State, index int) {
	from := StateBuilding
	if n := len(r.result.Transitions); n > 0 {
		from = r.result.Transitions[n-1].To
	}
	r.result.State = to
	r.result.Transitions = append(r.result.Transitions, Transition{From: from, To: to, Index: index, At: r.engine.now()})
}

// Settle pays every vendor group in lines from payer. Validation and
// collaborator failures before the first submission return an error and no
// result. Once submission starts the outcome is always a Result, terminal in
// either StateAllSucceeded or StateFailedAt, and cancelling ctx no longer
// stops it.
func (e *Engine) Settle(ctx context.Context, payer Payer, lines []CartLine) (*Result, error) {
	res := &Result{
		State:       StateBuilding,
		FailedIndex: -1,
		TotalValue:  decimal.Zero,
		TotalPaid:   decimal.Zero,
	}
	r := &run{engine: e, result: res}

	if len(lines) == 0 {
		return nil, reasonError(pkgerrors.CodeValidation, ReasonEmptyCart, "cart is empty")
	}
	if err := ledger.ValidateAddress(payer.PaymentAddress); err != nil {
		return nil, reasonError(pkgerrors.CodeValidation, ReasonPayerAddress, "payer has no valid payment address")
	}
	for _, line := range lines {
		if line.Quantity < 1 || line.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart line has invalid quantity or price")
		}
		res.TotalValue = res.TotalValue.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	r.enter(StateResolvingVendors, -1)
	addresses, err := e.directory.ResolveVendorAddresses(ctx, vendorEmails(lines))
	if err != nil {
		return nil, err
	}

	groups, skipped := groupByAddress(lines, addresses)
	res.SkippedItems = skipped

	rate, err := e.rates.Rate(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "exchange rate unavailable").
			WithDetails(map[string]any{"reason": ReasonRateUnavailable})
	}
	if !rate.IsPositive() {
		return nil, reasonError(pkgerrors.CodeDependency, ReasonRateUnavailable, "exchange rate unavailable")
	}
	res.Rate = rate

	payable := make([]Group, 0, len(groups))
	for _, g := range groups {
		g.Amount = g.Subtotal.Mul(rate).Truncate(settlementPrecision)
		if !g.Amount.IsPositive() {
			for _, item := range g.Items {
				res.SkippedItems = append(res.SkippedItems, SkippedItem{
					ProductID:   item.ProductID,
					Name:        item.Name,
					VendorEmail: g.VendorEmail(),
					Reason:      SkipReasonZeroAmount,
				})
			}
			continue
		}
		g.Position = len(payable)
		payable = append(payable, g)
	}
	e.metrics.AddSkipped(len(res.SkippedItems))
	if len(payable) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no vendor in the cart can be paid").
			WithDetails(map[string]any{"reason": ReasonNothingPayable, "skipped_items": res.SkippedItems})
	}

	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checkout cancelled before any transfer")
	}
	// Once money starts moving the run only ends on a failed transfer.
	ctx = context.WithoutCancel(ctx)

	for i, g := range payable {
		r.enter(StateSubmitting, i)
		attempt := e.submit(ctx, payer, g)
		res.Attempts = append(res.Attempts, attempt)
		if !attempt.Success {
			res.FailedIndex = i
			res.Unattempted = append(res.Unattempted, payable[i+1:]...)
			r.enter(StateFailedAt, i)
			e.finish(ctx, res)
			return res, nil
		}
		res.TotalPaid = res.TotalPaid.Add(attempt.Amount)
	}

	r.enter(StateAllSucceeded, -1)
	e.finish(ctx, res)
	return res, nil
}

func (e *Engine) submit(ctx context.Context, payer Payer, g Group) Attempt {
	attempt := Attempt{Group: g}
	start := e.now()

	transferCtx := ctx
	if e.transferTimeout > 0 {
		var cancel context.CancelFunc
		transferCtx, cancel = context.WithTimeout(ctx, e.transferTimeout)
		defer cancel()
	}

	receipt, err := e.ledger.Transfer(transferCtx, payer.PaymentAddress, g.VendorAddress, g.Amount)
	attempt.Duration = e.now().Sub(start)
	if err != nil {
		attempt.ErrorKind = ledger.KindOf(err)
		attempt.ErrorReason = err.Error()
		e.metrics.ObserveTransfer(string(attempt.ErrorKind), attempt.Duration)
		e.logTransfer(ctx, attempt, err)
		return attempt
	}

	attempt.Success = true
	attempt.Confirmed = receipt.Confirmed
	attempt.TransactionRef = receipt.TransactionRef
	attempt.BlockRef = receipt.BlockRef
	e.metrics.ObserveTransfer("success", attempt.Duration)
	e.logTransfer(ctx, attempt, nil)
	return attempt
}

func (e *Engine) finish(ctx context.Context, res *Result) {
	e.metrics.IncRun(string(res.State))
	if e.logg == nil {
		return
	}
	ctx = e.logg.WithFields(ctx, map[string]any{
		"state":        string(res.State),
		"attempts":     len(res.Attempts),
		"unattempted":  len(res.Unattempted),
		"skipped":      len(res.SkippedItems),
		"total_paid":   res.TotalPaid.String(),
		"failed_index": res.FailedIndex,
	})
	if res.State == StateFailedAt {
		e.logg.Warn(ctx, "settlement stopped on failed transfer")
		return
	}
	e.logg.Info(ctx, "settlement completed")
}

func (e *Engine) logTransfer(ctx context.Context, a Attempt, err error) {
	if e.logg == nil {
		return
	}
	ctx = e.logg.WithFields(ctx, map[string]any{
		"position":       a.Position,
		"vendor_address": a.VendorAddress,
		"amount":         a.Amount.String(),
		"tx_ref":         a.TransactionRef,
		"confirmed":      a.Confirmed,
	})
	if err != nil {
		e.logg.Error(ctx, "ledger transfer failed", err)
		return
	}
	e.logg.Info(ctx, "ledger transfer submitted")
}

// groupByAddress keeps groups in first-seen cart order.
func groupByAddress(lines []CartLine, addresses map[string]string) ([]Group, []SkippedItem) {
	var (
		groups  []Group
		skipped []SkippedItem
		index   = map[string]int{}
	)
	for _, line := range lines {
		email := normalizeEmail(line.VendorEmail)
		address, ok := addresses[email]
		if !ok || !ledger.IsPayableAddress(address) {
			skipped = append(skipped, SkippedItem{
				ProductID:   line.ProductID,
				Name:        line.Name,
				VendorEmail: email,
				Reason:      SkipReasonNoAddress,
			})
			continue
		}

		key := strings.ToLower(address)
		idx, seen := index[key]
		if !seen {
			idx = len(groups)
			index[key] = idx
			groups = append(groups, Group{VendorAddress: address, Subtotal: decimal.Zero})
		}
		g := &groups[idx]
		if !contains(g.VendorEmails, email) {
			g.VendorEmails = append(g.VendorEmails, email)
		}
		g.Subtotal = g.Subtotal.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		g.Items = append(g.Items, AttemptItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}
	return groups, skipped
}

func vendorEmails(lines []CartLine) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		email := normalizeEmail(line.VendorEmail)
		if email != "" && !contains(out, email) {
			out = append(out, email)
		}
	}
	return out
}

func reasonError(code pkgerrors.Code, reason, message string) *pkgerrors.Error {
	return pkgerrors.New(code, message).WithDetails(map[string]any{"reason": reason})
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
