package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// Repository defines persistence operations for the order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Exists(ctx context.Context, orderID string) (bool, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	CreatePaymentAttempts(ctx context.Context, attempts []models.PaymentAttempt) error
	FindByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	FindItem(ctx context.Context, orderID, productID string) (*models.OrderItem, error)
	ListForVendor(ctx context.Context, vendorEmail string) ([]models.Order, error)
	UpdateItemStatus(ctx context.Context, orderID, productID string, status enums.ItemStatus) error
	ListUnconfirmedAttempts(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error)
	MarkAttemptConfirmed(ctx context.Context, attemptID uuid.UUID, blockRef string, confirmedAt time.Time) error
}
