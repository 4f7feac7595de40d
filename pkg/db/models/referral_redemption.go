package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/enums"
)

// ReferralRedemption records one referral code redemption per transaction.
// Only a PENDING row is ever mutated, which keeps webhook replays no-ops.
type ReferralRedemption struct {
	ID            uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	ReferralCode  string                         `gorm:"column:referral_code;not null;index"`
	UserID        uuid.UUID                      `gorm:"column:user_id;type:uuid;not null"`
	TransactionID uuid.UUID                      `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex"`
	Status        enums.ReferralRedemptionStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	CreatedAt     time.Time                      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                      `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identity when the caller did not.
func (r *ReferralRedemption) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
