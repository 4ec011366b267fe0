package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/ledger"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
)

const (
	defaultReceiptBatch = 100
	receiptGracePeriod  = time.Minute
)

type attemptStore interface {
	ListUnconfirmedAttempts(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error)
	MarkAttemptConfirmed(ctx context.Context, attemptID uuid.UUID, blockRef string, confirmedAt time.Time) error
}

type txStatusReader interface {
	TransactionStatus(ctx context.Context, txRef string) (ledger.TxStatus, error)
}

type ReceiptReconcileJobParams struct {
	Logger    *logger.Logger
	Attempts  attemptStore
	Ledger    txStatusReader
	BatchSize int
}

// NewReceiptReconcileJob confirms successful payment attempts whose receipt
// was still pending when checkout returned.
func NewReceiptReconcileJob(params ReceiptReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Attempts == nil {
		return nil, fmt.Errorf("payment attempt store required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReceiptBatch
	}
	return &receiptReconcileJob{
		logg:     params.Logger,
		attempts: params.Attempts,
		ledger:   params.Ledger,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type receiptReconcileJob struct {
	logg     *logger.Logger
	attempts attemptStore
	ledger   txStatusReader
	batch    int
	now      func() time.Time
}

func (j *receiptReconcileJob) Name() string { return "receipt-reconcile" }

func (j *receiptReconcileJob) Run(ctx context.Context) error {
	pending, err := j.attempts.ListUnconfirmedAttempts(ctx, j.now().Add(-receiptGracePeriod), j.batch)
	if err != nil {
		return fmt.Errorf("list unconfirmed attempts: %w", err)
	}

	var confirmed, missing, reverted int
	for _, attempt := range pending {
		if attempt.TransactionRef == nil {
			continue
		}
		attemptCtx := j.logg.WithFields(ctx, map[string]any{
			"order_id":        attempt.OrderID,
			"transaction_ref": *attempt.TransactionRef,
		})

		status, err := j.ledger.TransactionStatus(ctx, *attempt.TransactionRef)
		if err != nil {
			return fmt.Errorf("transaction status %s: %w", *attempt.TransactionRef, err)
		}
		switch {
		case !status.Found:
			missing++
		case !status.Success:
			reverted++
			j.logg.Warn(attemptCtx, "recorded transfer reverted on ledger")
		default:
			if err := j.attempts.MarkAttemptConfirmed(ctx, attempt.ID, status.BlockRef, j.now().UTC()); err != nil {
				return fmt.Errorf("confirm attempt %s: %w", attempt.ID, err)
			}
			confirmed++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned":   len(pending),
		"confirmed": confirmed,
		"missing":   missing,
		"reverted":  reverted,
	}), "receipt reconcile complete")
	return nil
}
