package ledgers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db/models"
)

// StockLedger restores the stock consumed by one order line.
type StockLedger interface {
	ReleaseDetail(ctx context.Context, tx *gorm.DB, detail models.TransactionDetail) error
}

// DiscountLedger settles a discount usage slot for one transaction.
type DiscountLedger interface {
	Commit(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error
}

// VoucherLedger settles a voucher claim for one transaction.
type VoucherLedger interface {
	Commit(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID, voucherID *uuid.UUID) error
}

// ReferralLedger settles a referral redemption for one transaction.
type ReferralLedger interface {
	Commit(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error
}

// Coordinator applies the ledger side effects of a status transition across
// all four resources, in the fixed lock order (stock variants, then discount,
// then voucher, then referral) so concurrent settlement paths cannot
// deadlock. Every step is idempotent, so the same transition can be replayed
// after a crash mid-transaction.
type Coordinator struct {
	stock     StockLedger
	discounts DiscountLedger
	vouchers  VoucherLedger
	referrals ReferralLedger
}

// NewCoordinatorParams carries the four ledgers.
type NewCoordinatorParams struct {
	Stock     StockLedger
	Discounts DiscountLedger
	Vouchers  VoucherLedger
	Referrals ReferralLedger
}

// NewCoordinator wires the cross-ledger coordinator.
func NewCoordinator(params NewCoordinatorParams) (*Coordinator, error) {
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Discounts == nil {
		return nil, fmt.Errorf("discount ledger required")
	}
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher ledger required")
	}
	if params.Referrals == nil {
		return nil, fmt.Errorf("referral ledger required")
	}
	return &Coordinator{
		stock:     params.Stock,
		discounts: params.Discounts,
		vouchers:  params.Vouchers,
		referrals: params.Referrals,
	}, nil
}

// CommitAll converts every reservation held by the transaction into a
// counted usage. Stock needs no commit step: it was decremented at
// reservation time.
func (c *Coordinator) CommitAll(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	if err := c.discounts.Commit(ctx, tx, txn.ID); err != nil {
		return fmt.Errorf("committing discount: %w", err)
	}
	if err := c.vouchers.Commit(ctx, tx, txn.ID); err != nil {
		return fmt.Errorf("committing voucher: %w", err)
	}
	if err := c.referrals.Commit(ctx, tx, txn.ID); err != nil {
		return fmt.Errorf("committing referral: %w", err)
	}
	return nil
}

// ReleaseAll gives back every resource the transaction holds: stock per
// order line (bundle components restore from the stored snapshot), the
// discount slot, the voucher claim and the referral redemption.
func (c *Coordinator) ReleaseAll(ctx context.Context, tx *gorm.DB, txn *models.Transaction, details []models.TransactionDetail) error {
	for _, detail := range details {
		if err := c.stock.ReleaseDetail(ctx, tx, detail); err != nil {
			return fmt.Errorf("releasing stock for line %s: %w", detail.ID, err)
		}
	}
	if err := c.discounts.Release(ctx, tx, txn.ID); err != nil {
		return fmt.Errorf("releasing discount: %w", err)
	}
	if err := c.vouchers.Release(ctx, tx, txn.ID, txn.VoucherID); err != nil {
		return fmt.Errorf("releasing voucher: %w", err)
	}
	if err := c.referrals.Release(ctx, tx, txn.ID); err != nil {
		return fmt.Errorf("releasing referral: %w", err)
	}
	return nil
}
