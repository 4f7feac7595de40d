package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BundleComponent maps a bundle variant to one component variant and the
// quantity consumed per bundle unit.
type BundleComponent struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BundleVariantID    uuid.UUID `gorm:"column:bundle_variant_id;type:uuid;not null;index:idx_bundle_component,unique"`
	ComponentVariantID uuid.UUID `gorm:"column:component_variant_id;type:uuid;not null;index:idx_bundle_component,unique"`
	QtyPerBundle       int       `gorm:"column:qty_per_bundle;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identity when the caller did not.
func (b *BundleComponent) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
