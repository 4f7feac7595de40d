package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Voucher is a claimable credit. Qty is decremented once at claim time;
// reservation and use only move the claim row through its states.
type Voucher struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Code      string          `gorm:"column:code;uniqueIndex;not null"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(16,2);not null"`
	Qty       int             `gorm:"column:qty;not null;default:0"`
	ExpiresAt *time.Time      `gorm:"column:expires_at"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

// BeforeCreate assigns the identity when the caller did not.
func (v *Voucher) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
