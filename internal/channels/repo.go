package channels

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	"github.com/kiranalabs/kirana-backend/pkg/pagination"
)

// Repository exposes the per-channel stock rows and transfer requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindChannelStockForUpdate(ctx context.Context, variantID uuid.UUID, channel string) (*models.ChannelStock, error)
	ListChannelStock(ctx context.Context, variantID uuid.UUID) ([]models.ChannelStock, error)
	UpsertChannelStock(ctx context.Context, stock *models.ChannelStock) error
	AddChannelQty(ctx context.Context, stockID uuid.UUID, delta int) error

	CreateTransfer(ctx context.Context, transfer *models.StockTransfer) error
	FindTransfer(ctx context.Context, id uuid.UUID) (*models.StockTransfer, error)
	FindTransferForUpdate(ctx context.Context, id uuid.UUID) (*models.StockTransfer, error)
	// ListTransfers pages newest-first; cursor is exclusive and nil means
	// start from the top.
	ListTransfers(ctx context.Context, status *enums.TransferStatus, cursor *pagination.Cursor, limit int) ([]models.StockTransfer, error)
	UpdateTransfer(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a channels repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindChannelStockForUpdate(ctx context.Context, variantID uuid.UUID, channel string) (*models.ChannelStock, error) {
	var stock models.ChannelStock
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("variant_id = ? AND channel = ?", variantID, channel).
		First(&stock).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *repository) ListChannelStock(ctx context.Context, variantID uuid.UUID) ([]models.ChannelStock, error) {
	var stocks []models.ChannelStock
	err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("channel ASC").
		Find(&stocks).Error
	if err != nil {
		return nil, err
	}
	return stocks, nil
}

func (r *repository) UpsertChannelStock(ctx context.Context, stock *models.ChannelStock) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "variant_id"}, {Name: "channel"}},
			DoUpdates: clause.Assignments(map[string]any{"qty": stock.Qty}),
		}).
		Create(stock).Error
}

func (r *repository) AddChannelQty(ctx context.Context, stockID uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.ChannelStock{}).
		Where("id = ?", stockID).
		Update("qty", gorm.Expr("qty + ?", delta)).Error
}

func (r *repository) CreateTransfer(ctx context.Context, transfer *models.StockTransfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

func (r *repository) FindTransfer(ctx context.Context, id uuid.UUID) (*models.StockTransfer, error) {
	var transfer models.StockTransfer
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&transfer).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *repository) FindTransferForUpdate(ctx context.Context, id uuid.UUID) (*models.StockTransfer, error) {
	var transfer models.StockTransfer
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&transfer).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *repository) ListTransfers(ctx context.Context, status *enums.TransferStatus, cursor *pagination.Cursor, limit int) ([]models.StockTransfer, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var transfers []models.StockTransfer
	if err := query.Find(&transfers).Error; err != nil {
		return nil, err
	}
	return transfers, nil
}

func (r *repository) UpdateTransfer(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.StockTransfer{}).
		Where("id = ?", id).
		Updates(updates).Error
}
