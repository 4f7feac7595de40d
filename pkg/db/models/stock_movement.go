package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/enums"
)

// StockMovement is an append-only audit entry. The sum of Change for a
// variant reconciles to the variant's current StockQty.
type StockMovement struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	VariantID uuid.UUID               `gorm:"column:variant_id;type:uuid;not null;index"`
	Change    int                     `gorm:"column:change;not null"`
	Type      enums.StockMovementType `gorm:"column:type;type:text;not null"`
	RelatedID *uuid.UUID              `gorm:"column:related_id;type:uuid;index"`
	Note      *string                 `gorm:"column:note"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns the identity when the caller did not.
func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
