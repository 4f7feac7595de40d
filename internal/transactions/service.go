package transactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/internal/activitylog"
	"github.com/kiranalabs/kirana-backend/internal/ledgers"
	"github.com/kiranalabs/kirana-backend/pkg/courier"
	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

// CarrierOrderer registers a shipment with the carrier.
type CarrierOrderer interface {
	CreateOrder(ctx context.Context, input courier.CreateOrderInput) (*courier.CreateOrderResult, error)
}

// GenerateReceiptInput carries the shipment details for dispatch.
type GenerateReceiptInput struct {
	TransactionID    uuid.UUID `json:"transaction_id" validate:"required"`
	CarrierCode      string    `json:"carrier_code" validate:"required"`
	DestinationName  string    `json:"destination_name" validate:"required"`
	DestinationPhone string    `json:"destination_phone" validate:"required"`
	DestinationAddr  string    `json:"destination_address" validate:"required"`
	Note             string    `json:"note"`
}

// Service drives admin fulfillment. Every status write goes through the
// state machine guards; callers never mutate the status column directly.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	// ConfirmPaid moves a paid order into fulfillment.
	ConfirmPaid(ctx context.Context, transactionID, actorID uuid.UUID) (*models.Transaction, error)
	// GenerateReceipt registers the shipment with the carrier and moves
	// the order out for delivery.
	GenerateReceipt(ctx context.Context, input GenerateReceiptInput, actorID uuid.UUID) (*models.Transaction, error)
	// Cancel fails the order and releases everything it holds.
	Cancel(ctx context.Context, transactionID, actorID uuid.UUID, reason string) (*models.Transaction, error)
	// Complete closes out a delivered order.
	Complete(ctx context.Context, transactionID, actorID uuid.UUID) (*models.Transaction, error)
}

type service struct {
	client      *db.Client
	repo        Repository
	coordinator *ledgers.Coordinator
	carrier     CarrierOrderer
	activity    activitylog.Recorder
	log         *logger.Logger
}

// NewServiceParams carries the admin fulfillment dependencies.
type NewServiceParams struct {
	Client      *db.Client
	Repo        Repository
	Coordinator *ledgers.Coordinator
	Carrier     CarrierOrderer
	Activity    activitylog.Recorder
	Log         *logger.Logger
}

// NewService wires the admin fulfillment service.
func NewService(params NewServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("ledger coordinator required")
	}
	if params.Carrier == nil {
		return nil, fmt.Errorf("carrier client required")
	}
	if params.Activity == nil {
		return nil, fmt.Errorf("activity recorder required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		client:      params.Client,
		repo:        params.Repo,
		coordinator: params.Coordinator,
		carrier:     params.Carrier,
		activity:    params.Activity,
		log:         params.Log,
	}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("transaction %s not found", id))
		}
		return nil, err
	}
	return txn, nil
}

func (s *service) ConfirmPaid(ctx context.Context, transactionID, actorID uuid.UUID) (*models.Transaction, error) {
	var confirmed *models.Transaction
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		txn, err := s.findLocked(ctx, repo, transactionID)
		if err != nil {
			return err
		}
		if err := AssertCanConfirmPaid(txn.Status); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, txn.ID, enums.TransactionStatusOnProcess); err != nil {
			return err
		}
		txn.Status = enums.TransactionStatusOnProcess
		confirmed = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitylog.Entry{
		ActorID:    &actorID,
		Action:     "transaction.confirm_paid",
		EntityType: "transaction",
		EntityID:   confirmed.ID,
	})
	return confirmed, nil
}

func (s *service) GenerateReceipt(ctx context.Context, input GenerateReceiptInput, actorID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.GetByID(ctx, input.TransactionID)
	if err != nil {
		return nil, err
	}
	if err := AssertCanGenerateReceipt(txn.Status); err != nil {
		return nil, err
	}

	// The carrier call stays outside the database transaction: it is slow,
	// not transactional, and a failure must leave the order ON_PROCESS.
	result, err := s.carrier.CreateOrder(ctx, courier.CreateOrderInput{
		CarrierCode:      input.CarrierCode,
		ReferenceID:      txn.Code,
		DestinationName:  input.DestinationName,
		DestinationPhone: input.DestinationPhone,
		DestinationAddr:  input.DestinationAddr,
		Note:             input.Note,
	})
	if err != nil {
		return nil, err
	}

	var dispatched *models.Transaction
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := s.findLocked(ctx, repo, input.TransactionID)
		if err != nil {
			return err
		}
		// Re-check under lock: a concurrent admin may have moved it.
		if err := AssertCanGenerateReceipt(locked.Status); err != nil {
			return err
		}

		shipment := &models.Shipment{
			TransactionID: locked.ID,
			CarrierCode:   input.CarrierCode,
			WaybillID:     result.WaybillID,
			TrackingID:    result.TrackingID,
			Status:        enums.ShipmentStatusPending,
		}
		if _, err := repo.CreateShipment(ctx, shipment); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, locked.ID, enums.TransactionStatusOnDelivery); err != nil {
			return err
		}
		locked.Status = enums.TransactionStatusOnDelivery
		locked.Shipment = shipment
		dispatched = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitylog.Entry{
		ActorID:    &actorID,
		Action:     "transaction.generate_receipt",
		EntityType: "transaction",
		EntityID:   dispatched.ID,
		Metadata: map[string]string{
			"carrier_code": input.CarrierCode,
			"waybill_id":   result.WaybillID,
		},
	})
	return dispatched, nil
}

func (s *service) Cancel(ctx context.Context, transactionID, actorID uuid.UUID, reason string) (*models.Transaction, error) {
	var canceled *models.Transaction
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		txn, err := s.findLocked(ctx, repo, transactionID)
		if err != nil {
			return err
		}
		if err := AssertCanCancel(txn.Status); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, txn.ID, enums.TransactionStatusFailed); err != nil {
			return err
		}
		details, err := repo.FindDetails(ctx, txn.ID)
		if err != nil {
			return err
		}
		if err := s.coordinator.ReleaseAll(ctx, tx, txn, details); err != nil {
			return err
		}
		txn.Status = enums.TransactionStatusFailed
		canceled = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitylog.Entry{
		ActorID:    &actorID,
		Action:     "transaction.cancel",
		EntityType: "transaction",
		EntityID:   canceled.ID,
		Metadata:   map[string]string{"reason": reason},
	})
	return canceled, nil
}

func (s *service) Complete(ctx context.Context, transactionID, actorID uuid.UUID) (*models.Transaction, error) {
	var completed *models.Transaction
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		txn, err := s.findLocked(ctx, repo, transactionID)
		if err != nil {
			return err
		}
		if err := AssertCanComplete(txn.Status); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, txn.ID, enums.TransactionStatusCompleted); err != nil {
			return err
		}
		txn.Status = enums.TransactionStatusCompleted
		completed = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitylog.Entry{
		ActorID:    &actorID,
		Action:     "transaction.complete",
		EntityType: "transaction",
		EntityID:   completed.ID,
	})
	return completed, nil
}

func (s *service) findLocked(ctx context.Context, repo Repository, transactionID uuid.UUID) (*models.Transaction, error) {
	txn, err := repo.FindByIDForUpdate(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("transaction %s not found", transactionID))
		}
		return nil, err
	}
	return txn, nil
}
