package outbox

import (
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
)

// maxErrorTextLen bounds stored publish errors on both outbox rows and DLQ entries.
const maxErrorTextLen = 1024

// DLQRepository stores outbox rows the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx parks entry inside tx, alongside the MarkTerminalTx on the source row.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncateErrorText(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return truncateErrorText(err.Error())
}

func truncateErrorText(message string) string {
	if len(message) <= maxErrorTextLen {
		return message
	}
	return message[:maxErrorTextLen]
}
