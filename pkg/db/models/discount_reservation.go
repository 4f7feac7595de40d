package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiscountReservation binds one transaction to a discount slot. Created at
// checkout, committed on payment success, deleted on release. Committed
// tells release whether to give back a reserved slot or a counted usage.
type DiscountReservation struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DiscountID    uuid.UUID `gorm:"column:discount_id;type:uuid;not null;index:idx_discount_reservation,unique"`
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;not null;index:idx_discount_reservation,unique"`
	Committed     bool      `gorm:"column:committed;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identity when the caller did not.
func (d *DiscountReservation) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
