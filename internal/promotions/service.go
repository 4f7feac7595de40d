package promotions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

// Service is the discount side of the reservation ledger. Reserve holds a
// usage slot at checkout, Commit converts it into a counted usage on payment
// success, Release gives it back on failure or cancellation.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, code string, transactionID uuid.UUID) (*models.Discount, error)
	Commit(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error
}

type service struct {
	repo Repository
	log  *logger.Logger
}

// NewServiceParams carries the dependencies for the discount ledger.
type NewServiceParams struct {
	Repo Repository
	Log  *logger.Logger
}

// NewService wires the discount ledger service.
func NewService(params NewServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("promotions repository required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, log: params.Log}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, code string, transactionID uuid.UUID) (*models.Discount, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}
	if transactionID == uuid.Nil {
		return nil, fmt.Errorf("transaction id is required")
	}
	repo := s.repo.WithTx(tx)

	discount, err := repo.FindByCodeForUpdate(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("discount %s not found", code))
		}
		return nil, err
	}

	if discount.UsageLimit != nil && discount.UsageCount+discount.ReservedCount >= *discount.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("discount %s is fully used", code))
	}

	if err := repo.AddCounts(ctx, discount.ID, 0, 1); err != nil {
		return nil, err
	}
	reservation := &models.DiscountReservation{
		DiscountID:    discount.ID,
		TransactionID: transactionID,
	}
	if err := repo.CreateReservation(ctx, reservation); err != nil {
		return nil, err
	}
	return discount, nil
}

func (s *service) Commit(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	reservation, err := repo.FindReservationByTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No discount on this order.
			return nil
		}
		return err
	}
	if reservation.Committed {
		s.log.Warn(s.log.WithTransactionID(ctx, transactionID.String()),
			"discount reservation already committed, skipping")
		return nil
	}

	if _, err := repo.FindByIDForUpdate(ctx, reservation.DiscountID); err != nil {
		return err
	}
	if err := repo.AddCounts(ctx, reservation.DiscountID, 1, -1); err != nil {
		return err
	}
	return repo.MarkReservationCommitted(ctx, reservation.ID)
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	reservation, err := repo.FindReservationByTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if _, err := repo.FindByIDForUpdate(ctx, reservation.DiscountID); err != nil {
		return err
	}
	if reservation.Committed {
		if err := repo.AddCounts(ctx, reservation.DiscountID, -1, 0); err != nil {
			return err
		}
	} else {
		if err := repo.AddCounts(ctx, reservation.DiscountID, 0, -1); err != nil {
			return err
		}
	}
	return repo.DeleteReservation(ctx, reservation.ID)
}
