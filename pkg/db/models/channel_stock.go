package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChannelStock partitions a variant's stock across distribution channels
// (storefront, offline stores, marketplaces).
type ChannelStock struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VariantID uuid.UUID `gorm:"column:variant_id;type:uuid;not null;index:idx_channel_stock,unique"`
	Channel   string    `gorm:"column:channel;not null;index:idx_channel_stock,unique"`
	Qty       int       `gorm:"column:qty;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identity when the caller did not.
func (c *ChannelStock) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
