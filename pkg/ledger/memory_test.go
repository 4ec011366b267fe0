package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/config"
)

func TestMemoryTransferMovesFunds(t *testing.T) {
	m := NewMemory()
	m.Fund("0xBuyer", decimal.NewFromInt(1))

	receipt, err := m.Transfer(context.Background(), "0xbuyer", "0xVendor", decimal.RequireFromString("0.25"))
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !receipt.Confirmed || receipt.TransactionRef == "" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	buyer, _ := m.Balance(context.Background(), "0xBUYER")
	vendor, _ := m.Balance(context.Background(), "0xvendor")
	if !buyer.Equal(decimal.RequireFromString("0.75")) || !vendor.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("unexpected balances buyer=%s vendor=%s", buyer, vendor)
	}

	status, err := m.TransactionStatus(context.Background(), receipt.TransactionRef)
	if err != nil || !status.Found || !status.Success {
		t.Fatalf("unexpected status %+v err=%v", status, err)
	}
}

func TestMemoryInsufficientFunds(t *testing.T) {
	m := NewMemory()
	m.Fund("0xbuyer", decimal.RequireFromString("0.1"))

	_, err := m.Transfer(context.Background(), "0xbuyer", "0xvendor", decimal.NewFromInt(1))
	if KindOf(err) != KindInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if len(m.Transfers()) != 0 {
		t.Fatalf("failed transfer must not be recorded")
	}
}

func TestMemoryInjectedFailureAndCancellation(t *testing.T) {
	m := NewMemory()
	m.FailTransfersTo("0xbad", KindRejected, "vendor wallet closed")

	if _, err := m.Transfer(context.Background(), "0xa", "0xBAD", decimal.NewFromInt(1)); KindOf(err) != KindRejected {
		t.Fatalf("expected rejected, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Transfer(ctx, "0xa", "0xgood", decimal.NewFromInt(1)); KindOf(err) != KindNetwork {
		t.Fatalf("expected network failure for canceled context, got %v", err)
	}
}

func TestNewSelectsDriver(t *testing.T) {
	l, err := New(config.LedgerConfig{Driver: config.LedgerDriverMemory})
	if err != nil {
		t.Fatalf("new memory ledger: %v", err)
	}
	if _, ok := l.(*Memory); !ok {
		t.Fatalf("expected memory ledger, got %T", l)
	}
	l, err = New(config.LedgerConfig{Driver: config.LedgerDriverRPC, RPCURL: "http://localhost:7545"})
	if err != nil {
		t.Fatalf("new rpc ledger: %v", err)
	}
	if _, ok := l.(*RPCClient); !ok {
		t.Fatalf("expected rpc ledger, got %T", l)
	}
}
