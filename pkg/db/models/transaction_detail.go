package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BundleComponentUsage snapshots the component quantities consumed for a
// bundle line so cancellation can restore them exactly, even if the bundle
// definition changed after purchase.
type BundleComponentUsage struct {
	ComponentVariantID uuid.UUID `json:"component_variant_id"`
	ComponentQty       int       `json:"component_qty"`
	TotalQty           int       `json:"total_qty"`
}

// TransactionDetail is one order line. Immutable after creation except for
// the bundle snapshot written at reservation time.
type TransactionDetail struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID  uuid.UUID              `gorm:"column:transaction_id;type:uuid;not null;index"`
	VariantID      uuid.UUID              `gorm:"column:variant_id;type:uuid;not null"`
	Qty            int                    `gorm:"column:qty;not null"`
	UnitPrice      decimal.Decimal        `gorm:"column:unit_price;type:numeric(16,2);not null"`
	BundleSnapshot []BundleComponentUsage `gorm:"column:bundle_snapshot;type:jsonb;serializer:json"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identity when the caller did not.
func (d *TransactionDetail) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
