package promotions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
)

// Repository exposes the discount queries the usage ledger needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindByCodeForUpdate(ctx context.Context, code string) (*models.Discount, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	// AddCounts atomically adjusts the usage and reserved counters.
	AddCounts(ctx context.Context, discountID uuid.UUID, usageDelta, reservedDelta int) error

	CreateReservation(ctx context.Context, reservation *models.DiscountReservation) error
	FindReservationByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.DiscountReservation, error)
	MarkReservationCommitted(ctx context.Context, reservationID uuid.UUID) error
	DeleteReservation(ctx context.Context, reservationID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a promotions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCodeForUpdate(ctx context.Context, code string) (*models.Discount, error) {
	var discount models.Discount
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("code = ?", code).
		First(&discount).Error
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	var discount models.Discount
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&discount).Error
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

func (r *repository) AddCounts(ctx context.Context, discountID uuid.UUID, usageDelta, reservedDelta int) error {
	updates := map[string]any{}
	if usageDelta != 0 {
		updates["usage_count"] = gorm.Expr("usage_count + ?", usageDelta)
	}
	if reservedDelta != 0 {
		updates["reserved_count"] = gorm.Expr("reserved_count + ?", reservedDelta)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("id = ?", discountID).
		Updates(updates).Error
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.DiscountReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindReservationByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.DiscountReservation, error) {
	var reservation models.DiscountReservation
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) MarkReservationCommitted(ctx context.Context, reservationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DiscountReservation{}).
		Where("id = ?", reservationID).
		Update("committed", true).Error
}

func (r *repository) DeleteReservation(ctx context.Context, reservationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", reservationID).
		Delete(&models.DiscountReservation{}).Error
}
