package activitylog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

// Entry is one audit event to record.
type Entry struct {
	ActorID    *uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Metadata   any
}

// Recorder persists audit entries. Record is called after the owning
// database transaction commits; a write failure is logged and swallowed so
// auditing can never roll back a settled operation.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.ActivityLog, error)
}

type recorder struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewRecorderParams carries the recorder dependencies.
type NewRecorderParams struct {
	DB  *gorm.DB
	Log *logger.Logger
}

// NewRecorder wires the activity log recorder.
func NewRecorder(params NewRecorderParams) (Recorder, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db connection required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &recorder{db: params.DB, log: params.Log}, nil
}

func (r *recorder) Record(ctx context.Context, entry Entry) {
	if entry.Action == "" || entry.EntityType == "" || entry.EntityID == uuid.Nil {
		r.log.Warn(ctx, "activity log entry missing action or entity, dropping")
		return
	}

	row := &models.ActivityLog{
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
	}
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			r.log.Error(ctx, "marshaling activity log metadata", err)
		} else {
			row.Metadata = raw
		}
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		r.log.Error(ctx, "writing activity log entry", err)
	}
}

func (r *recorder) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	query := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []models.ActivityLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
