package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/enums"
)

// Shipment carries the carrier booking for a transaction. DeliveredAt is
// first-write-wins: once set it is never overwritten by later tracking syncs.
type Shipment struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID            `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex"`
	CarrierCode   string               `gorm:"column:carrier_code;not null"`
	WaybillID     string               `gorm:"column:waybill_id;not null"`
	TrackingID    string               `gorm:"column:tracking_id"`
	Status        enums.ShipmentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	RawStatus     string               `gorm:"column:raw_status"`
	DeliveredAt   *time.Time           `gorm:"column:delivered_at"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identity when the caller did not.
func (s *Shipment) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
