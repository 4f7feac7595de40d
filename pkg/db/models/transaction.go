package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/enums"
)

// Transaction is the order aggregate produced at checkout. Rows are never
// physically deleted; a failed order keeps its row with a terminal status.
type Transaction struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Code          string                  `gorm:"column:code;uniqueIndex;not null"`
	UserID        uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	Channel       enums.SalesChannel      `gorm:"column:channel;type:text;not null;default:'ecommerce'"`
	Status        enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'WAITING_PAYMENT'"`
	Subtotal      decimal.Decimal         `gorm:"column:subtotal;type:numeric(16,2);not null"`
	ShippingFee   decimal.Decimal         `gorm:"column:shipping_fee;type:numeric(16,2);not null"`
	DiscountTotal decimal.Decimal         `gorm:"column:discount_total;type:numeric(16,2);not null"`
	GrossAmount   decimal.Decimal         `gorm:"column:gross_amount;type:numeric(16,2);not null"`
	PaymentType   *string                 `gorm:"column:payment_type"`
	VoucherID     *uuid.UUID              `gorm:"column:voucher_id;type:uuid"`
	Details       []TransactionDetail     `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	Shipment      *Shipment               `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identity when the caller did not.
func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
