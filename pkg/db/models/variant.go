package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Variant is the sellable unit whose on-hand stock the ledger protects.
// Bundles are variants whose stock derives from their components.
type Variant struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SKU       string          `gorm:"column:sku;uniqueIndex;not null"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(16,2);not null"`
	StockQty  int             `gorm:"column:stock_qty;not null;default:0"`
	IsBundle  bool            `gorm:"column:is_bundle;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

// BeforeCreate assigns the identity when the caller did not.
func (v *Variant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
