package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/internal/inventory"
	"github.com/kiranalabs/kirana-backend/internal/promotions"
	"github.com/kiranalabs/kirana-backend/internal/referrals"
	"github.com/kiranalabs/kirana-backend/internal/transactions"
	"github.com/kiranalabs/kirana-backend/internal/vouchers"
	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

// Line is one variant/quantity pair in the checkout request.
type Line struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

// Input is a checkout request. Discount, voucher and referral are all
// optional; each one that is present gets a reservation before the order is
// returned.
type Input struct {
	UserID       uuid.UUID          `json:"user_id" validate:"required"`
	Channel      enums.SalesChannel `json:"channel" validate:"required"`
	Lines        []Line             `json:"lines" validate:"required,min=1,dive"`
	ShippingFee  decimal.Decimal    `json:"shipping_fee"`
	DiscountCode string             `json:"discount_code"`
	VoucherID    *uuid.UUID         `json:"voucher_id"`
	ReferralCode string             `json:"referral_code"`
}

// Service creates orders. Everything happens in one database transaction:
// the order row is created first, then each resource ledger reserves in the
// fixed lock order (stock variants, discount, voucher, referral), so a
// failure anywhere rolls the whole checkout back.
type Service interface {
	Checkout(ctx context.Context, input Input) (*models.Transaction, error)
}

type service struct {
	client    *db.Client
	repo      transactions.Repository
	variants  inventory.Repository
	stock     inventory.Service
	discounts promotions.Service
	vouchers  vouchers.Service
	referrals referrals.Service
	log       *logger.Logger
	now       func() time.Time
}

// NewServiceParams carries the checkout dependencies.
type NewServiceParams struct {
	Client    *db.Client
	Repo      transactions.Repository
	Variants  inventory.Repository
	Stock     inventory.Service
	Discounts promotions.Service
	Vouchers  vouchers.Service
	Referrals referrals.Service
	Log       *logger.Logger
	Now       func() time.Time
}

// NewService wires the checkout service.
func NewService(params NewServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Variants == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
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
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		client:    params.Client,
		repo:      params.Repo,
		variants:  params.Variants,
		stock:     params.Stock,
		discounts: params.Discounts,
		vouchers:  params.Vouchers,
		referrals: params.Referrals,
		log:       params.Log,
		now:       params.Now,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input Input) (*models.Transaction, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown sales channel %q", input.Channel))
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	if input.ShippingFee.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping fee cannot be negative")
	}

	var created *models.Transaction
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		variants := s.variants.WithTx(tx)

		// Price the lines before reserving anything.
		subtotal := decimal.Zero
		prices := make(map[uuid.UUID]decimal.Decimal, len(input.Lines))
		for _, line := range input.Lines {
			if line.Qty <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("quantity for variant %s must be positive", line.VariantID))
			}
			variant, err := variants.FindVariant(ctx, line.VariantID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound,
						fmt.Sprintf("variant %s not found", line.VariantID))
				}
				return err
			}
			prices[line.VariantID] = variant.Price
			subtotal = subtotal.Add(variant.Price.Mul(decimal.NewFromInt(int64(line.Qty))))
		}

		txn := &models.Transaction{
			Code:        s.generateCode(),
			UserID:      input.UserID,
			Channel:     input.Channel,
			Status:      enums.TransactionStatusWaitingPayment,
			Subtotal:    subtotal,
			ShippingFee: input.ShippingFee,
			VoucherID:   input.VoucherID,
		}
		if _, err := repo.Create(ctx, txn); err != nil {
			return err
		}

		reserveLines := make([]inventory.ReserveLine, 0, len(input.Lines))
		for _, line := range input.Lines {
			reserveLines = append(reserveLines, inventory.ReserveLine{
				VariantID: line.VariantID,
				Qty:       line.Qty,
			})
		}
		reservations, err := s.stock.Reserve(ctx, tx, txn.ID, reserveLines)
		if err != nil {
			return err
		}

		details := make([]models.TransactionDetail, 0, len(reservations))
		for _, reservation := range reservations {
			details = append(details, models.TransactionDetail{
				TransactionID:  txn.ID,
				VariantID:      reservation.VariantID,
				Qty:            reservation.Qty,
				UnitPrice:      prices[reservation.VariantID],
				BundleSnapshot: reservation.Snapshot,
			})
		}
		if err := repo.CreateDetails(ctx, details); err != nil {
			return err
		}

		discountTotal := decimal.Zero
		if input.DiscountCode != "" {
			discount, err := s.discounts.Reserve(ctx, tx, input.DiscountCode, txn.ID)
			if err != nil {
				return err
			}
			discountTotal = discountTotal.Add(discount.Amount)
		}
		if input.VoucherID != nil {
			if err := s.vouchers.Reserve(ctx, tx, *input.VoucherID, input.UserID, txn.ID); err != nil {
				return err
			}
			voucher, err := s.vouchers.Get(ctx, tx, *input.VoucherID)
			if err != nil {
				return err
			}
			discountTotal = discountTotal.Add(voucher.Amount)
		}
		if input.ReferralCode != "" {
			if _, err := s.referrals.Reserve(ctx, tx, input.ReferralCode, input.UserID, txn.ID); err != nil {
				return err
			}
		}

		gross := subtotal.Add(input.ShippingFee).Sub(discountTotal)
		if gross.IsNegative() {
			gross = decimal.Zero
		}
		if err := repo.UpdateTotals(ctx, txn.ID, discountTotal, gross); err != nil {
			return err
		}

		txn.DiscountTotal = discountTotal
		txn.GrossAmount = gross
		txn.Details = details
		created = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithTransactionID(ctx, created.ID.String()),
		fmt.Sprintf("checkout created order %s with %d lines", created.Code, len(created.Details)))
	return created, nil
}

// generateCode builds a human-scannable unique order reference.
func (s *service) generateCode() string {
	stamp := s.now().UTC().Format("20060102150405")
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("TRX-%s-%s", stamp, suffix)
}
