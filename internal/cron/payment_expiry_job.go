package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/internal/ledgers"
	"github.com/kiranalabs/kirana-backend/internal/transactions"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

const (
	defaultPaymentExpiryAge   = 24 * time.Hour
	defaultPaymentExpiryBatch = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentExpiryJobParams configure the unpaid order expiry job.
type PaymentExpiryJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repo        transactions.Repository
	Coordinator *ledgers.Coordinator
	MaxAge      time.Duration
	BatchSize   int
}

// NewPaymentExpiryJob builds the job that fails stale unpaid ecommerce
// orders and releases everything they hold.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("ledger coordinator required")
	}
	if params.MaxAge <= 0 {
		params.MaxAge = defaultPaymentExpiryAge
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultPaymentExpiryBatch
	}
	return &paymentExpiryJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repo,
		coordinator: params.Coordinator,
		maxAge:      params.MaxAge,
		batchSize:   params.BatchSize,
		now:         time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        transactions.Repository
	coordinator *ledgers.Coordinator
	maxAge      time.Duration
	batchSize   int
	now         func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	candidates, err := j.repo.FindWaitingPaymentBefore(ctx, enums.SalesChannelEcommerce, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query stale unpaid orders: %w", err)
	}

	var errs []error
	expired := 0
	for _, candidate := range candidates {
		if err := j.expire(ctx, candidate); err != nil {
			j.logg.Error(j.logg.WithTransactionID(ctx, candidate.ID.String()),
				"expiring unpaid order", err)
			errs = append(errs, err)
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"expired":    expired,
	})
	j.logg.Info(logCtx, "payment expiry loop complete")
	return multierr.Combine(errs...)
}

// expire runs one order in its own transaction. The status is re-checked
// under lock so a webhook racing this job wins cleanly.
func (j *paymentExpiryJob) expire(ctx context.Context, candidate models.Transaction) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)

		current, err := repo.FindByIDForUpdate(ctx, candidate.ID)
		if err != nil {
			return err
		}
		if current.Status != enums.TransactionStatusWaitingPayment {
			return nil
		}

		if err := repo.UpdateStatus(ctx, current.ID, enums.TransactionStatusFailed); err != nil {
			return err
		}
		details, err := repo.FindDetails(ctx, current.ID)
		if err != nil {
			return err
		}
		return j.coordinator.ReleaseAll(ctx, tx, current, details)
	})
}
