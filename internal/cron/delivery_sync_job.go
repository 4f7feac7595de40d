package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/internal/ledgers"
	"github.com/kiranalabs/kirana-backend/internal/shipping"
	"github.com/kiranalabs/kirana-backend/internal/transactions"
	"github.com/kiranalabs/kirana-backend/pkg/courier"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

const (
	defaultDeliverySyncBatch = 100
	defaultAutoCompleteAfter = 3 * 24 * time.Hour
)

// DeliverySyncJobParams configure the carrier tracking sync job.
type DeliverySyncJobParams struct {
	Logger            *logger.Logger
	DB                txRunner
	Repo              transactions.Repository
	Coordinator       *ledgers.Coordinator
	Tracker           courier.Tracker
	Classifier        shipping.StatusClassifier
	BatchSize         int
	AutoCompleteAfter time.Duration
}

// NewDeliverySyncJob builds the job that polls the carrier for in-flight
// shipments and advances or fails their orders, then promotes orders whose
// shipments have sat delivered long enough to COMPLETED.
func NewDeliverySyncJob(params DeliverySyncJobParams) (Job, error) {
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
	if params.Tracker == nil {
		return nil, fmt.Errorf("carrier tracker required")
	}
	if params.Classifier == nil {
		params.Classifier = shipping.NewSubstringClassifier()
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultDeliverySyncBatch
	}
	if params.AutoCompleteAfter <= 0 {
		params.AutoCompleteAfter = defaultAutoCompleteAfter
	}
	return &deliverySyncJob{
		logg:              params.Logger,
		db:                params.DB,
		repo:              params.Repo,
		coordinator:       params.Coordinator,
		tracker:           params.Tracker,
		classifier:        params.Classifier,
		batchSize:         params.BatchSize,
		autoCompleteAfter: params.AutoCompleteAfter,
		now:               time.Now,
	}, nil
}

type deliverySyncJob struct {
	logg              *logger.Logger
	db                txRunner
	repo              transactions.Repository
	coordinator       *ledgers.Coordinator
	tracker           courier.Tracker
	classifier        shipping.StatusClassifier
	batchSize         int
	autoCompleteAfter time.Duration
	now               func() time.Time
}

func (j *deliverySyncJob) Name() string { return "delivery-sync" }

func (j *deliverySyncJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.syncTracking(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.autoComplete(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *deliverySyncJob) syncTracking(ctx context.Context) error {
	candidates, err := j.repo.FindInFulfillmentWithWaybill(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("query in-flight shipments: %w", err)
	}

	var errs []error
	synced := 0
	for _, candidate := range candidates {
		if candidate.Shipment == nil {
			continue
		}
		if err := j.syncOne(ctx, candidate); err != nil {
			j.logg.Error(j.logg.WithTransactionID(ctx, candidate.ID.String()),
				"syncing shipment tracking", err)
			errs = append(errs, err)
			continue
		}
		synced++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"synced":     synced,
	})
	j.logg.Info(logCtx, "delivery sync loop complete")
	return multierr.Combine(errs...)
}

func (j *deliverySyncJob) syncOne(ctx context.Context, candidate models.Transaction) error {
	// The carrier call stays outside the transaction; a slow or failing
	// carrier must not hold row locks.
	tracking, err := j.tracker.GetTracking(ctx, candidate.Shipment.WaybillID, candidate.Shipment.CarrierCode)
	if err != nil {
		return err
	}
	rawStatus := tracking.LatestStatus()
	event := shipping.Classify(j.classifier, rawStatus)

	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)

		current, err := repo.FindByIDForUpdate(ctx, candidate.ID)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return nil
		}
		shipment, err := repo.FindShipmentByTransaction(ctx, current.ID)
		if err != nil {
			return err
		}

		updates := map[string]any{"raw_status": rawStatus}
		switch event {
		case shipping.EventDelivered:
			updates["status"] = enums.ShipmentStatusDelivered
			if shipment.DeliveredAt == nil {
				updates["delivered_at"] = j.now().UTC()
			}
		case shipping.EventFailed:
			updates["status"] = enums.ShipmentStatusFailed
		case shipping.EventShippingStarted:
			if shipment.Status == enums.ShipmentStatusPending {
				updates["status"] = enums.ShipmentStatusInTransit
			}
		}
		if err := repo.UpdateShipment(ctx, shipment.ID, updates); err != nil {
			return err
		}

		switch event {
		case shipping.EventShippingStarted:
			if current.Status == enums.TransactionStatusOnProcess {
				return repo.UpdateStatus(ctx, current.ID, enums.TransactionStatusOnDelivery)
			}
		case shipping.EventFailed:
			if err := repo.UpdateStatus(ctx, current.ID, enums.TransactionStatusFailed); err != nil {
				return err
			}
			details, err := repo.FindDetails(ctx, current.ID)
			if err != nil {
				return err
			}
			return j.coordinator.ReleaseAll(ctx, tx, current, details)
		}
		return nil
	})
}

func (j *deliverySyncJob) autoComplete(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.autoCompleteAfter)
	candidates, err := j.repo.FindDeliveredBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query delivered orders: %w", err)
	}

	var errs []error
	completed := 0
	for _, candidate := range candidates {
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := j.repo.WithTx(tx)

			current, err := repo.FindByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if current.Status != enums.TransactionStatusOnDelivery {
				return nil
			}
			return repo.UpdateStatus(ctx, current.ID, enums.TransactionStatusCompleted)
		})
		if err != nil {
			j.logg.Error(j.logg.WithTransactionID(ctx, candidate.ID.String()),
				"auto-completing delivered order", err)
			errs = append(errs, err)
			continue
		}
		completed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"completed":  completed,
	})
	j.logg.Info(logCtx, "auto-complete loop complete")
	return multierr.Combine(errs...)
}
