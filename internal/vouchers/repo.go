package vouchers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
)

// Repository exposes the voucher and claim queries the claim ledger needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindVoucher(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	FindVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	FindVoucherForUpdate(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	AddVoucherQty(ctx context.Context, voucherID uuid.UUID, delta int) error

	CreateClaim(ctx context.Context, claim *models.VoucherClaim) error
	FindClaimForUpdate(ctx context.Context, voucherID, userID uuid.UUID) (*models.VoucherClaim, error)
	FindClaimByTransactionForUpdate(ctx context.Context, transactionID uuid.UUID) (*models.VoucherClaim, error)
	UpdateClaim(ctx context.Context, claimID uuid.UUID, status enums.VoucherClaimStatus, transactionID *uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a vouchers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVoucher(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) FindVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) FindVoucherForUpdate(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) AddVoucherQty(ctx context.Context, voucherID uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ?", voucherID).
		Update("qty", gorm.Expr("qty + ?", delta)).Error
}

func (r *repository) CreateClaim(ctx context.Context, claim *models.VoucherClaim) error {
	return r.db.WithContext(ctx).Create(claim).Error
}

func (r *repository) FindClaimForUpdate(ctx context.Context, voucherID, userID uuid.UUID) (*models.VoucherClaim, error) {
	var claim models.VoucherClaim
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("voucher_id = ? AND user_id = ?", voucherID, userID).
		First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *repository) FindClaimByTransactionForUpdate(ctx context.Context, transactionID uuid.UUID) (*models.VoucherClaim, error) {
	var claim models.VoucherClaim
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("transaction_id = ?", transactionID).
		First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *repository) UpdateClaim(ctx context.Context, claimID uuid.UUID, status enums.VoucherClaimStatus, transactionID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.VoucherClaim{}).
		Where("id = ?", claimID).
		Updates(map[string]any{
			"status":         status,
			"transaction_id": transactionID,
		}).Error
}
