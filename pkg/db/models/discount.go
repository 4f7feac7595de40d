package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Discount is a promotional discount with an optional global usage cap.
// Invariant: UsageCount + ReservedCount <= *UsageLimit when the limit is set.
type Discount struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Code          string          `gorm:"column:code;uniqueIndex;not null"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(16,2);not null"`
	UsageLimit    *int            `gorm:"column:usage_limit"`
	UsageCount    int             `gorm:"column:usage_count;not null;default:0"`
	ReservedCount int             `gorm:"column:reserved_count;not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt     gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

// BeforeCreate assigns the identity when the caller did not.
func (d *Discount) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
