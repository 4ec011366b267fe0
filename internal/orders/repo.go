package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Exists(ctx context.Context, orderID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) CreatePaymentAttempts(ctx context.Context, attempts []models.PaymentAttempt) error {
	if len(attempts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&attempts).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := r.preloaded(ctx).
		Where("order_id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindItem(ctx context.Context, orderID, productID string) (*models.OrderItem, error) {
	var item models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListForVendor returns orders that carry a line owned by the vendor and at
// least one successful attempt. Attempts are matched to lines by the caller.
func (r *repository) ListForVendor(ctx context.Context, vendorEmail string) ([]models.Order, error) {
	owned := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("order_id").
		Where("LOWER(vendor_email) = ?", strings.ToLower(vendorEmail))
	paid := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Select("order_id").
		Where("success = ?", true)

	var orders []models.Order
	err := r.preloaded(ctx).
		Where("order_id IN (?)", owned).
		Where("order_id IN (?)", paid).
		Order("created_at DESC").
		Order("order_id DESC").
		Find(&orders).Error
	return orders, err
}

// UpdateItemStatus touches exactly one order_items row.
func (r *repository) UpdateItemStatus(ctx context.Context, orderID, productID string, status enums.ItemStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListUnconfirmedAttempts(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error) {
	if limit <= 0 {
		limit = 100
	}
	var attempts []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("success = ? AND confirmed = ? AND transaction_ref IS NOT NULL", true, false).
		Where("created_at < ?", createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

func (r *repository) MarkAttemptConfirmed(ctx context.Context, attemptID uuid.UUID, blockRef string, confirmedAt time.Time) error {
	updates := map[string]any{
		"confirmed":    true,
		"confirmed_at": confirmedAt,
	}
	if blockRef != "" {
		updates["block_ref"] = blockRef
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ? AND confirmed = ?", attemptID, false).
		Updates(updates)
	return res.Error
}

func (r *repository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
}
