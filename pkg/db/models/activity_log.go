package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLog is an audit record written after the owning transaction
// commits, never inside it.
type ActivityLog struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ActorID    *uuid.UUID      `gorm:"column:actor_id;type:uuid"`
	Action     string          `gorm:"column:action;not null;index"`
	EntityType string          `gorm:"column:entity_type;not null"`
	EntityID   uuid.UUID       `gorm:"column:entity_id;type:uuid;not null;index"`
	Metadata   json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns the identity when the caller did not.
func (a *ActivityLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
