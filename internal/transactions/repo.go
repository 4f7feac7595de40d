package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
)

// Repository exposes the transaction queries used by checkout, the webhook
// reconciler, admin fulfillment and the scheduled jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	CreateDetails(ctx context.Context, details []models.TransactionDetail) error

	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByCode(ctx context.Context, code string) (*models.Transaction, error)
	// FindByIDForUpdate locks the transaction row for the remainder of the
	// enclosing database transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByCodeForUpdate(ctx context.Context, code string) (*models.Transaction, error)
	FindDetails(ctx context.Context, transactionID uuid.UUID) ([]models.TransactionDetail, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error
	UpdateTotals(ctx context.Context, id uuid.UUID, discountTotal, grossAmount decimal.Decimal) error
	UpdatePaymentType(ctx context.Context, id uuid.UUID, paymentType string) error

	CreateShipment(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error)
	FindShipmentByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Shipment, error)
	UpdateShipment(ctx context.Context, shipmentID uuid.UUID, updates map[string]any) error

	// FindWaitingPaymentBefore returns stale unpaid orders on the given
	// channel, oldest first, capped at limit. The cutoff is inclusive.
	FindWaitingPaymentBefore(ctx context.Context, channel enums.SalesChannel, cutoff time.Time, limit int) ([]models.Transaction, error)
	// FindInFulfillmentWithWaybill returns ON_PROCESS/ON_DELIVERY orders
	// whose shipment already has a waybill, capped at limit.
	FindInFulfillmentWithWaybill(ctx context.Context, limit int) ([]models.Transaction, error)
	// FindDeliveredBefore returns ON_DELIVERY orders whose shipment was
	// marked delivered at or before the cutoff.
	FindDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *repository) CreateDetails(ctx context.Context, details []models.TransactionDetail) error {
	if len(details) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&details).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Details").
		Preload("Shipment").
		Where("id = ?", id).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByCodeForUpdate(ctx context.Context, code string) (*models.Transaction, error) {
	var txn models.Transaction
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("code = ?", code).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindDetails(ctx context.Context, transactionID uuid.UUID) ([]models.TransactionDetail, error) {
	var details []models.TransactionDetail
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Find(&details).Error
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) UpdateTotals(ctx context.Context, id uuid.UUID, discountTotal, grossAmount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"discount_total": discountTotal,
			"gross_amount":   grossAmount,
		}).Error
}

func (r *repository) UpdatePaymentType(ctx context.Context, id uuid.UUID, paymentType string) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("payment_type", paymentType).Error
}

func (r *repository) CreateShipment(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error) {
	if err := r.db.WithContext(ctx).Create(shipment).Error; err != nil {
		return nil, err
	}
	return shipment, nil
}

func (r *repository) FindShipmentByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) UpdateShipment(ctx context.Context, shipmentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", shipmentID).
		Updates(updates).Error
}

func (r *repository) FindWaitingPaymentBefore(ctx context.Context, channel enums.SalesChannel, cutoff time.Time, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.TransactionStatusWaitingPayment).
		Where("channel = ?", channel).
		Where("created_at <= ?", cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) FindInFulfillmentWithWaybill(ctx context.Context, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	query := r.db.WithContext(ctx).
		Preload("Shipment").
		Joins("JOIN shipments ON shipments.transaction_id = transactions.id").
		Where("transactions.status IN ?", []enums.TransactionStatus{
			enums.TransactionStatusOnProcess,
			enums.TransactionStatusOnDelivery,
		}).
		Where("shipments.waybill_id <> ''").
		Order("transactions.created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) FindDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	query := r.db.WithContext(ctx).
		Preload("Shipment").
		Joins("JOIN shipments ON shipments.transaction_id = transactions.id").
		Where("transactions.status = ?", enums.TransactionStatusOnDelivery).
		Where("shipments.status = ?", enums.ShipmentStatusDelivered).
		Where("shipments.delivered_at IS NOT NULL").
		Where("shipments.delivered_at <= ?", cutoff).
		Order("shipments.delivered_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
