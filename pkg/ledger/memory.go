package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory is an in-process ledger used by tests and the "memory" driver.
// Unknown addresses start with a zero balance.
type Memory struct {
	mu        sync.Mutex
	balances  map[string]decimal.Decimal
	txs       map[string]memoryTx
	failures  map[string]*TransferError
	seq       int
	autoFund  bool
	transfers []MemoryTransfer
}

type memoryTx struct {
	block   string
	success bool
}

// MemoryTransfer is one transfer the memory ledger executed.
type MemoryTransfer struct {
	From   string
	To     string
	Amount decimal.Decimal
	Ref    string
}

// NewMemory returns an empty memory ledger that lets any payer spend without funding.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]decimal.Decimal),
		txs:      make(map[string]memoryTx),
		failures: make(map[string]*TransferError),
		autoFund: true,
	}
}

// Fund credits address and switches the ledger to strict balance checks.
func (m *Memory) Fund(address string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoFund = false
	key := normalizeAddress(address)
	m.balances[key] = m.balances[key].Add(amount)
}

// FailTransfersTo makes every transfer to address fail with kind.
func (m *Memory) FailTransfersTo(address string, kind FailureKind, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[normalizeAddress(address)] = newTransferError(kind, reason, nil)
}

// Transfers returns a copy of the executed transfers in order.
func (m *Memory) Transfers() []MemoryTransfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MemoryTransfer, len(m.transfers))
	copy(out, m.transfers)
	return out
}

func (m *Memory) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, newTransferError(KindNetwork, "", err)
	}
	if !amount.IsPositive() {
		return Receipt{}, newTransferError(KindRejected, "amount must be positive", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src, dst := normalizeAddress(from), normalizeAddress(to)
	if failure, ok := m.failures[dst]; ok {
		return Receipt{}, failure
	}
	if !m.autoFund && m.balances[src].LessThan(amount) {
		return Receipt{}, newTransferError(KindInsufficientFunds, "insufficient funds for transfer", nil)
	}
	m.balances[src] = m.balances[src].Sub(amount)
	m.balances[dst] = m.balances[dst].Add(amount)

	m.seq++
	ref := fmt.Sprintf("0x%064x", m.seq)
	block := fmt.Sprintf("0x%x", m.seq)
	m.txs[ref] = memoryTx{block: block, success: true}
	m.transfers = append(m.transfers, MemoryTransfer{From: src, To: dst, Amount: amount, Ref: ref})

	return Receipt{TransactionRef: ref, BlockRef: block, Confirmed: true}, nil
}

func (m *Memory) Balance(_ context.Context, address string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[normalizeAddress(address)], nil
}

func (m *Memory) TransactionStatus(_ context.Context, txRef string) (TxStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[txRef]
	if !ok {
		return TxStatus{TransactionRef: txRef}, nil
	}
	return TxStatus{TransactionRef: txRef, BlockRef: tx.block, Found: true, Success: tx.success}, nil
}
