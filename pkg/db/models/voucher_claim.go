package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/enums"
)

// VoucherClaim is one user's hold on a voucher: CLAIMED at claim time,
// RESERVED while bound to an open transaction, USED once payment settles.
type VoucherClaim struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	VoucherID     uuid.UUID                `gorm:"column:voucher_id;type:uuid;not null;index:idx_voucher_claim,unique"`
	UserID        uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index:idx_voucher_claim,unique"`
	Status        enums.VoucherClaimStatus `gorm:"column:status;type:text;not null;default:'CLAIMED'"`
	TransactionID *uuid.UUID               `gorm:"column:transaction_id;type:uuid;index"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identity when the caller did not.
func (v *VoucherClaim) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
