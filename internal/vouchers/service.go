package vouchers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

// Service is the voucher side of the reservation ledger. A claim row moves
// CLAIMED -> RESERVED -> USED; voucher quantity itself is only decremented
// once, at claim time.
type Service interface {
	// Get reads a voucher, through tx when the caller holds an open
	// transaction and through the base connection when tx is nil.
	Get(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Voucher, error)
	// ClaimVoucher runs Claim inside its own database transaction. This is
	// the entrypoint for the HTTP layer.
	ClaimVoucher(ctx context.Context, userID uuid.UUID, code string) (*models.VoucherClaim, error)
	// Claim takes one unit of the voucher for the user and creates the
	// claim row. One claim per user per voucher.
	Claim(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string) (*models.VoucherClaim, error)
	// Reserve binds the user's claim to an open transaction.
	Reserve(ctx context.Context, tx *gorm.DB, voucherID, userID, transactionID uuid.UUID) error
	Commit(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error
	// Release reverts the claim bound to the transaction back to CLAIMED.
	// When no claim row exists (orders created before claim rows were
	// introduced) and a voucher id is known, the quantity is restored
	// directly on the voucher instead.
	Release(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID, voucherID *uuid.UUID) error
}

type service struct {
	client *db.Client
	repo   Repository
	log    *logger.Logger
	now    func() time.Time
}

// NewServiceParams carries the dependencies for the voucher ledger. Client
// is only needed by ClaimVoucher; in-transaction callers can leave it nil.
type NewServiceParams struct {
	Client *db.Client
	Repo   Repository
	Log    *logger.Logger
	Now    func() time.Time
}

// NewService wires the voucher ledger service.
func NewService(params NewServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("vouchers repository required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{client: params.Client, repo: params.Repo, log: params.Log, now: params.Now}, nil
}

func (s *service) ClaimVoucher(ctx context.Context, userID uuid.UUID, code string) (*models.VoucherClaim, error) {
	if s.client == nil {
		return nil, fmt.Errorf("db client required for claim")
	}
	var claim *models.VoucherClaim
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.Claim(ctx, tx, userID, code)
		if err != nil {
			return err
		}
		claim = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *service) Get(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Voucher, error) {
	voucher, err := s.repo.WithTx(tx).FindVoucher(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("voucher %s not found", id))
		}
		return nil, err
	}
	return voucher, nil
}

func (s *service) Claim(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string) (*models.VoucherClaim, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code is required")
	}
	repo := s.repo.WithTx(tx)

	found, err := repo.FindVoucherByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("voucher %s not found", code))
		}
		return nil, err
	}

	voucher, err := repo.FindVoucherForUpdate(ctx, found.ID)
	if err != nil {
		return nil, err
	}
	if voucher.ExpiresAt != nil && !voucher.ExpiresAt.After(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("voucher %s has expired", code))
	}
	if voucher.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("voucher %s is out of stock", code))
	}

	if existing, err := repo.FindClaimForUpdate(ctx, voucher.ID, userID); err == nil && existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("voucher %s already claimed", code))
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := repo.AddVoucherQty(ctx, voucher.ID, -1); err != nil {
		return nil, err
	}
	claim := &models.VoucherClaim{
		VoucherID: voucher.ID,
		UserID:    userID,
		Status:    enums.VoucherClaimStatusClaimed,
	}
	if err := repo.CreateClaim(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, voucherID, userID, transactionID uuid.UUID) error {
	if transactionID == uuid.Nil {
		return fmt.Errorf("transaction id is required")
	}
	repo := s.repo.WithTx(tx)

	claim, err := repo.FindClaimForUpdate(ctx, voucherID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "voucher is not claimed by this user")
		}
		return err
	}

	switch claim.Status {
	case enums.VoucherClaimStatusClaimed:
		return repo.UpdateClaim(ctx, claim.ID, enums.VoucherClaimStatusReserved, &transactionID)
	case enums.VoucherClaimStatusReserved:
		if claim.TransactionID != nil && *claim.TransactionID == transactionID {
			s.log.Warn(s.log.WithTransactionID(ctx, transactionID.String()),
				"voucher claim already reserved for this transaction, skipping")
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "voucher is reserved by another transaction")
	default:
		return pkgerrors.New(pkgerrors.CodeConflict, "voucher has already been used")
	}
}

func (s *service) Commit(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	claim, err := repo.FindClaimByTransactionForUpdate(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No voucher on this order, or a pre-claim-row order.
			return nil
		}
		return err
	}

	switch claim.Status {
	case enums.VoucherClaimStatusReserved:
		return repo.UpdateClaim(ctx, claim.ID, enums.VoucherClaimStatusUsed, claim.TransactionID)
	case enums.VoucherClaimStatusUsed:
		s.log.Warn(s.log.WithTransactionID(ctx, transactionID.String()),
			"voucher claim already used, skipping")
		return nil
	default:
		s.log.Warn(s.log.WithTransactionID(ctx, transactionID.String()),
			fmt.Sprintf("voucher claim in status %s cannot be committed, skipping", claim.Status))
		return nil
	}
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID, voucherID *uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	claim, err := repo.FindClaimByTransactionForUpdate(ctx, transactionID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if voucherID == nil {
			return nil
		}
		// Legacy orders have no claim row, so the unit goes straight back
		// onto the voucher.
		s.log.Warn(s.log.WithTransactionID(ctx, transactionID.String()),
			"no voucher claim row, restoring voucher quantity directly")
		if _, err := repo.FindVoucherForUpdate(ctx, *voucherID); err != nil {
			return err
		}
		return repo.AddVoucherQty(ctx, *voucherID, 1)
	}

	if claim.Status == enums.VoucherClaimStatusClaimed {
		s.log.Warn(s.log.WithTransactionID(ctx, transactionID.String()),
			"voucher claim already released, skipping")
		return nil
	}
	return repo.UpdateClaim(ctx, claim.ID, enums.VoucherClaimStatusClaimed, nil)
}
