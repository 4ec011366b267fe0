package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/config"
)

const (
	defaultTransferTimeout = 30 * time.Second
	defaultReceiptTimeout  = 10 * time.Second
	defaultPollInterval    = 500 * time.Millisecond
)

// RPCClient talks to a wallet-compatible JSON-RPC node (Ganache, Anvil, geth dev).
// Accounts must be unlocked on the node; the client never handles private keys.
type RPCClient struct {
	url             string
	http            *http.Client
	transferTimeout time.Duration
	receiptTimeout  time.Duration
	pollInterval    time.Duration
	nextID          atomic.Int64
}

// NewRPCClient constructs a client for cfg.RPCURL. A nil httpClient uses a default one.
func NewRPCClient(cfg config.LedgerConfig, httpClient *http.Client) (*RPCClient, error) {
	url := strings.TrimSpace(cfg.RPCURL)
	if url == "" {
		return nil, errors.New("ledger rpc url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	c := &RPCClient{
		url:             url,
		http:            httpClient,
		transferTimeout: cfg.TransferTimeout,
		receiptTimeout:  cfg.ReceiptTimeout,
		pollInterval:    cfg.ReceiptPollInterval,
	}
	if c.transferTimeout <= 0 {
		c.transferTimeout = defaultTransferTimeout
	}
	if c.receiptTimeout <= 0 {
		c.receiptTimeout = defaultReceiptTimeout
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	return c, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type sendTxParams struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

type rpcReceipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	Status          string `json:"status"`
}

// Transfer submits a value transfer and waits up to the receipt timeout for it to be mined.
func (c *RPCClient) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (Receipt, error) {
	if !amount.IsPositive() {
		return Receipt{}, newTransferError(KindRejected, "amount must be positive", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.transferTimeout)
	defer cancel()

	params := sendTxParams{
		From:  strings.TrimSpace(from),
		To:    strings.TrimSpace(to),
		Value: "0x" + ToWei(amount).Text(16),
	}
	var txHash string
	if err := c.call(ctx, "eth_sendTransaction", []any{params}, &txHash); err != nil {
		return Receipt{}, classify(err)
	}
	if txHash == "" {
		return Receipt{}, newTransferError(KindRejected, "node returned no transaction hash", nil)
	}

	receipt, err := c.waitForReceipt(ctx, txHash)
	if err != nil {
		// The node accepted the transaction, so a missing receipt leaves it unconfirmed.
		return Receipt{TransactionRef: txHash}, nil
	}
	if isFailedStatus(receipt.Status) {
		return Receipt{}, newTransferError(KindRejected, "transaction reverted", nil)
	}
	return Receipt{
		TransactionRef: txHash,
		BlockRef:       receipt.BlockNumber,
		Confirmed:      true,
	}, nil
}

var errReceiptPending = errors.New("receipt not available yet")

func (c *RPCClient) waitForReceipt(ctx context.Context, txHash string) (*rpcReceipt, error) {
	deadline := time.NewTimer(c.receiptTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.receipt(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, errReceiptPending
		case <-deadline.C:
			return nil, errReceiptPending
		case <-ticker.C:
		}
	}
}

func (c *RPCClient) receipt(ctx context.Context, txHash string) (*rpcReceipt, error) {
	var receipt *rpcReceipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{txHash}, &receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Balance returns the latest balance of address in settlement units.
func (c *RPCClient) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	var hexBalance string
	if err := c.call(ctx, "eth_getBalance", []any{strings.TrimSpace(address), "latest"}, &hexBalance); err != nil {
		return decimal.Zero, classify(err)
	}
	wei, err := parseHexBig(hexBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode balance: %w", err)
	}
	return FromWei(wei), nil
}

// TransactionStatus looks up the receipt for txRef without waiting.
func (c *RPCClient) TransactionStatus(ctx context.Context, txRef string) (TxStatus, error) {
	receipt, err := c.receipt(ctx, strings.TrimSpace(txRef))
	if err != nil {
		return TxStatus{}, classify(err)
	}
	if receipt == nil {
		return TxStatus{TransactionRef: txRef}, nil
	}
	return TxStatus{
		TransactionRef: txRef,
		BlockRef:       receipt.BlockNumber,
		Found:          true,
		Success:        !isFailedStatus(receipt.Status),
	}, nil
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s: node returned %d", method, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// classify maps transport and node errors onto the transfer failure kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var te *TransferError
	if errors.As(err, &te) {
		return err
	}
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		msg := strings.ToLower(rpcErr.Message)
		if strings.Contains(msg, "insufficient funds") {
			return newTransferError(KindInsufficientFunds, rpcErr.Message, err)
		}
		return newTransferError(KindRejected, rpcErr.Message, err)
	}
	return newTransferError(KindNetwork, "", err)
}

func isFailedStatus(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	return s == "0x0" || s == "0x00"
}

func parseHexBig(value string) (*big.Int, error) {
	v := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(value), "0x"), "0X")
	if v == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(v, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", value)
	}
	return out, nil
}
