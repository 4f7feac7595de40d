package referrals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

// Service is the referral side of the reservation ledger. A redemption is
// created PENDING at checkout and only ever mutated from PENDING, so commit
// and release replay safely.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, code string, userID, transactionID uuid.UUID) (*models.ReferralRedemption, error)
	Commit(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error
}

type service struct {
	repo Repository
	log  *logger.Logger
}

// NewServiceParams carries the dependencies for the referral ledger.
type NewServiceParams struct {
	Repo Repository
	Log  *logger.Logger
}

// NewService wires the referral ledger service.
func NewService(params NewServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("referrals repository required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, log: params.Log}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, code string, userID, transactionID uuid.UUID) (*models.ReferralRedemption, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral code is required")
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if transactionID == uuid.Nil {
		return nil, fmt.Errorf("transaction id is required")
	}
	repo := s.repo.WithTx(tx)

	redemption := &models.ReferralRedemption{
		ReferralCode:  code,
		UserID:        userID,
		TransactionID: transactionID,
		Status:        enums.ReferralRedemptionStatusPending,
	}
	if err := repo.Create(ctx, redemption); err != nil {
		return nil, err
	}
	return redemption, nil
}

func (s *service) Commit(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error {
	return s.resolve(ctx, tx, transactionID, enums.ReferralRedemptionStatusSuccess)
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error {
	return s.resolve(ctx, tx, transactionID, enums.ReferralRedemptionStatusCanceled)
}

func (s *service) resolve(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID, target enums.ReferralRedemptionStatus) error {
	repo := s.repo.WithTx(tx)

	redemption, err := repo.FindByTransactionForUpdate(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No referral on this order.
			return nil
		}
		return err
	}
	if redemption.Status != enums.ReferralRedemptionStatusPending {
		if redemption.Status != target {
			s.log.Warn(s.log.WithTransactionID(ctx, transactionID.String()),
				fmt.Sprintf("referral redemption already %s, skipping %s", redemption.Status, target))
		}
		return nil
	}
	return repo.UpdateStatus(ctx, redemption.ID, target)
}
