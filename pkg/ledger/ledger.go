// Package ledger moves funds between wallet addresses on an external
// account-based ledger and reads balances and receipts back.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/config"
)

// weiExponent converts between whole settlement units and the ledger's base unit.
const weiExponent = 18

// Receipt is what the ledger hands back for a submitted transfer.
// Confirmed is false when the transfer was accepted but no receipt arrived in time.
type Receipt struct {
	TransactionRef string
	BlockRef       string
	Confirmed      bool
}

// TxStatus reports what the ledger currently knows about a transaction.
type TxStatus struct {
	TransactionRef string
	BlockRef       string
	Found          bool
	Success        bool
}

// Ledger is the opaque external settlement collaborator.
type Ledger interface {
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (Receipt, error)
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	TransactionStatus(ctx context.Context, txRef string) (TxStatus, error)
}

// FailureKind classifies why a transfer did not go through.
type FailureKind string

const (
	KindRejected          FailureKind = "rejected"
	KindInsufficientFunds FailureKind = "insufficient_funds"
	KindNetwork           FailureKind = "network"
)

// TransferError carries the classified failure of a single transfer.
type TransferError struct {
	Kind   FailureKind
	Reason string
	Err    error
}

func (e *TransferError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ledger %s: %s", e.Kind, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("ledger %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("ledger %s", e.Kind)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func newTransferError(kind FailureKind, reason string, err error) *TransferError {
	return &TransferError{Kind: kind, Reason: reason, Err: err}
}

// KindOf classifies any error coming out of a Ledger. Context errors and
// unknown failures count as network failures.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindNetwork
}

// New builds the ledger selected by cfg.Driver.
func New(cfg config.LedgerConfig) (Ledger, error) {
	if cfg.UseMemory() {
		return NewMemory(), nil
	}
	return NewRPCClient(cfg, nil)
}

// ToWei converts a settlement amount to base units, truncating sub-wei dust.
func ToWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(weiExponent).Truncate(0).BigInt()
}

// FromWei converts base units back to a settlement amount.
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -weiExponent)
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
