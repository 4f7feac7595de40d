package referrals

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
)

// Repository exposes the referral redemption queries the ledger needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, redemption *models.ReferralRedemption) error
	FindByTransactionForUpdate(ctx context.Context, transactionID uuid.UUID) (*models.ReferralRedemption, error)
	UpdateStatus(ctx context.Context, redemptionID uuid.UUID, status enums.ReferralRedemptionStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a referrals repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, redemption *models.ReferralRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}

func (r *repository) FindByTransactionForUpdate(ctx context.Context, transactionID uuid.UUID) (*models.ReferralRedemption, error) {
	var redemption models.ReferralRedemption
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("transaction_id = ?", transactionID).
		First(&redemption).Error
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

func (r *repository) UpdateStatus(ctx context.Context, redemptionID uuid.UUID, status enums.ReferralRedemptionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.ReferralRedemption{}).
		Where("id = ?", redemptionID).
		Update("status", status).Error
}
