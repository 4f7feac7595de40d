package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/enums"
)

// StockTransfer is a request to move variant stock between channels.
// Only approved transfers may be executed; execution moves quantity
// between the two channel partitions atomically.
type StockTransfer struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	VariantID    uuid.UUID            `gorm:"column:variant_id;type:uuid;not null;index"`
	FromChannel  string               `gorm:"column:from_channel;not null"`
	ToChannel    string               `gorm:"column:to_channel;not null"`
	Qty          int                  `gorm:"column:qty;not null"`
	Status       enums.TransferStatus `gorm:"column:status;type:text;not null;default:'requested'"`
	RequestedBy  uuid.UUID            `gorm:"column:requested_by;type:uuid;not null"`
	ApprovedBy   *uuid.UUID           `gorm:"column:approved_by;type:uuid"`
	Note         *string              `gorm:"column:note"`
	RejectReason *string              `gorm:"column:reject_reason"`
	ExecutedAt   *time.Time           `gorm:"column:executed_at"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identity when the caller did not.
func (s *StockTransfer) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
