package inventory

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
)

// Repository exposes the stock queries the reservation ledger needs. All
// locking reads must run inside an enclosing database transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error)
	// FindVariantsForUpdate locks the given variant rows, always in
	// ascending id order so concurrent reservations cannot deadlock.
	FindVariantsForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Variant, error)
	AddStock(ctx context.Context, variantID uuid.UUID, delta int) error
	CreateMovement(ctx context.Context, movement *models.StockMovement) error
	FindBundleComponents(ctx context.Context, bundleVariantID uuid.UUID) ([]models.BundleComponent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) FindVariantsForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Variant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := sortedUnique(ids)

	var variants []models.Variant
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id IN ?", sorted).
		Order("id ASC").
		Find(&variants).Error
	if err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *repository) AddStock(ctx context.Context, variantID uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ?", variantID).
		Update("stock_qty", gorm.Expr("stock_qty + ?", delta)).Error
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) FindBundleComponents(ctx context.Context, bundleVariantID uuid.UUID) ([]models.BundleComponent, error) {
	var components []models.BundleComponent
	err := r.db.WithContext(ctx).
		Where("bundle_variant_id = ?", bundleVariantID).
		Find(&components).Error
	if err != nil {
		return nil, err
	}
	return components, nil
}

func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
