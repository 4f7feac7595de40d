package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

// ReserveLine is one order line to reserve stock for.
type ReserveLine struct {
	VariantID uuid.UUID
	Qty       int
}

// LineReservation reports the outcome of reserving one line. Snapshot is nil
// for plain variants and carries the consumed component quantities for
// bundles.
type LineReservation struct {
	VariantID uuid.UUID
	Qty       int
	Snapshot  []models.BundleComponentUsage
}

// Service is the stock side of the reservation ledger. Every method that
// mutates quantities takes the enclosing order transaction and locks variant
// rows in ascending id order before the read-modify-write.
type Service interface {
	// Reserve decrements on-hand stock for every line and records sale
	// movements. Bundle lines decrement their components and return a
	// snapshot for exact restoration later.
	Reserve(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID, lines []ReserveLine) ([]LineReservation, error)
	// ReleaseDetail restores the stock consumed by one order line, using
	// the stored bundle snapshot when present so components restore
	// individually even if the bundle definition changed since purchase.
	ReleaseDetail(ctx context.Context, tx *gorm.DB, detail models.TransactionDetail) error
	// ComputeAvailable returns how many units of a bundle can currently be
	// assembled, locking component rows while it reads them.
	ComputeAvailable(ctx context.Context, tx *gorm.DB, bundleVariantID uuid.UUID) (int, error)
	// Restock adds stock outside the order flow and records a restock
	// movement, inside its own transaction.
	Restock(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int, note string) error

	// RestockVariant and Available run inside their own database
	// transactions; they are the entrypoints for the HTTP layer.
	RestockVariant(ctx context.Context, variantID uuid.UUID, qty int, note string) error
	Available(ctx context.Context, bundleVariantID uuid.UUID) (int, error)
}

type service struct {
	client *db.Client
	repo   Repository
	log    *logger.Logger
}

// NewServiceParams carries the dependencies for the stock ledger. Client is
// only needed by the self-transacting entrypoints.
type NewServiceParams struct {
	Client *db.Client
	Repo   Repository
	Log    *logger.Logger
}

// NewService wires the stock ledger service.
func NewService(params NewServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{client: params.Client, repo: params.Repo, log: params.Log}, nil
}

func (s *service) RestockVariant(ctx context.Context, variantID uuid.UUID, qty int, note string) error {
	if s.client == nil {
		return fmt.Errorf("db client required for restock")
	}
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		return s.Restock(ctx, tx, variantID, qty, note)
	})
}

func (s *service) Available(ctx context.Context, bundleVariantID uuid.UUID) (int, error) {
	if s.client == nil {
		return 0, fmt.Errorf("db client required for availability")
	}
	var available int
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.ComputeAvailable(ctx, tx, bundleVariantID)
		if err != nil {
			return err
		}
		available = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return available, nil
}

// lineResolution pairs one reserve line with its bundle components, if any.
type lineResolution struct {
	line       ReserveLine
	variant    models.Variant
	components []models.BundleComponent
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID, lines []ReserveLine) ([]LineReservation, error) {
	if transactionID == uuid.Nil {
		return nil, fmt.Errorf("transaction id is required")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order line is required")
	}
	repo := s.repo.WithTx(tx)

	// Resolve bundle definitions first so every affected variant row can be
	// locked in a single ordered pass.
	resolutions := make([]lineResolution, 0, len(lines))
	lockIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("quantity for variant %s must be positive", line.VariantID))
		}
		variant, err := repo.FindVariant(ctx, line.VariantID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound,
					fmt.Sprintf("variant %s not found", line.VariantID))
			}
			return nil, err
		}

		resolution := lineResolution{line: line, variant: *variant}
		if variant.IsBundle {
			components, err := repo.FindBundleComponents(ctx, variant.ID)
			if err != nil {
				return nil, err
			}
			if len(components) == 0 {
				return nil, pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("bundle %s has no components", variant.SKU))
			}
			resolution.components = components
			for _, component := range components {
				lockIDs = append(lockIDs, component.ComponentVariantID)
			}
		} else {
			lockIDs = append(lockIDs, variant.ID)
		}
		resolutions = append(resolutions, resolution)
	}

	locked, err := repo.FindVariantsForUpdate(ctx, lockIDs)
	if err != nil {
		return nil, err
	}
	stockByID := make(map[uuid.UUID]int, len(locked))
	skuByID := make(map[uuid.UUID]string, len(locked))
	for _, variant := range locked {
		stockByID[variant.ID] = variant.StockQty
		skuByID[variant.ID] = variant.SKU
	}

	reservations := make([]LineReservation, 0, len(resolutions))
	for _, resolution := range resolutions {
		reservation := LineReservation{
			VariantID: resolution.line.VariantID,
			Qty:       resolution.line.Qty,
		}
		if resolution.variant.IsBundle {
			snapshot, err := s.consumeBundle(ctx, repo, transactionID, resolution, stockByID, skuByID)
			if err != nil {
				return nil, err
			}
			reservation.Snapshot = snapshot
		} else {
			if err := s.consumePlain(ctx, repo, transactionID, resolution, stockByID); err != nil {
				return nil, err
			}
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

func (s *service) consumePlain(ctx context.Context, repo Repository, transactionID uuid.UUID, resolution lineResolution, stockByID map[uuid.UUID]int) error {
	variantID := resolution.line.VariantID
	available, ok := stockByID[variantID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("variant %s not found", variantID))
	}
	if available < resolution.line.Qty {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("insufficient stock for %s: have %d, need %d",
				resolution.variant.SKU, available, resolution.line.Qty))
	}

	if err := repo.AddStock(ctx, variantID, -resolution.line.Qty); err != nil {
		return err
	}
	stockByID[variantID] = available - resolution.line.Qty

	related := transactionID
	return repo.CreateMovement(ctx, &models.StockMovement{
		VariantID: variantID,
		Change:    -resolution.line.Qty,
		Type:      enums.StockMovementTypeSale,
		RelatedID: &related,
	})
}

func (s *service) consumeBundle(ctx context.Context, repo Repository, transactionID uuid.UUID, resolution lineResolution, stockByID map[uuid.UUID]int, skuByID map[uuid.UUID]string) ([]models.BundleComponentUsage, error) {
	qty := resolution.line.Qty

	// Validate every component before touching any row so a shortfall
	// leaves nothing half-consumed.
	for _, component := range resolution.components {
		need := qty * component.QtyPerBundle
		available, ok := stockByID[component.ComponentVariantID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("bundle %s component %s not found",
					resolution.variant.SKU, component.ComponentVariantID))
		}
		if available < need {
			name := skuByID[component.ComponentVariantID]
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("insufficient stock for bundle %s component %s: have %d, need %d",
					resolution.variant.SKU, name, available, need))
		}
	}

	related := transactionID
	snapshot := make([]models.BundleComponentUsage, 0, len(resolution.components))
	for _, component := range resolution.components {
		total := qty * component.QtyPerBundle
		if err := repo.AddStock(ctx, component.ComponentVariantID, -total); err != nil {
			return nil, err
		}
		stockByID[component.ComponentVariantID] -= total
		if err := repo.CreateMovement(ctx, &models.StockMovement{
			VariantID: component.ComponentVariantID,
			Change:    -total,
			Type:      enums.StockMovementTypeSale,
			RelatedID: &related,
		}); err != nil {
			return nil, err
		}
		snapshot = append(snapshot, models.BundleComponentUsage{
			ComponentVariantID: component.ComponentVariantID,
			ComponentQty:       component.QtyPerBundle,
			TotalQty:           total,
		})
	}
	return snapshot, nil
}

func (s *service) ReleaseDetail(ctx context.Context, tx *gorm.DB, detail models.TransactionDetail) error {
	repo := s.repo.WithTx(tx)
	related := detail.TransactionID

	if len(detail.BundleSnapshot) > 0 {
		ids := make([]uuid.UUID, 0, len(detail.BundleSnapshot))
		for _, usage := range detail.BundleSnapshot {
			ids = append(ids, usage.ComponentVariantID)
		}
		if _, err := repo.FindVariantsForUpdate(ctx, ids); err != nil {
			return err
		}
		for _, usage := range detail.BundleSnapshot {
			if err := repo.AddStock(ctx, usage.ComponentVariantID, usage.TotalQty); err != nil {
				return err
			}
			if err := repo.CreateMovement(ctx, &models.StockMovement{
				VariantID: usage.ComponentVariantID,
				Change:    usage.TotalQty,
				Type:      enums.StockMovementTypeAdjustment,
				RelatedID: &related,
			}); err != nil {
				return err
			}
		}
		return nil
	}

	if _, err := repo.FindVariantsForUpdate(ctx, []uuid.UUID{detail.VariantID}); err != nil {
		return err
	}
	if err := repo.AddStock(ctx, detail.VariantID, detail.Qty); err != nil {
		return err
	}
	return repo.CreateMovement(ctx, &models.StockMovement{
		VariantID: detail.VariantID,
		Change:    detail.Qty,
		Type:      enums.StockMovementTypeAdjustment,
		RelatedID: &related,
	})
}

func (s *service) ComputeAvailable(ctx context.Context, tx *gorm.DB, bundleVariantID uuid.UUID) (int, error) {
	repo := s.repo.WithTx(tx)

	components, err := repo.FindBundleComponents(ctx, bundleVariantID)
	if err != nil {
		return 0, err
	}
	if len(components) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(components))
	for _, component := range components {
		ids = append(ids, component.ComponentVariantID)
	}
	locked, err := repo.FindVariantsForUpdate(ctx, ids)
	if err != nil {
		return 0, err
	}
	stockByID := make(map[uuid.UUID]int, len(locked))
	for _, variant := range locked {
		stockByID[variant.ID] = variant.StockQty
	}

	available := -1
	for _, component := range components {
		stock, ok := stockByID[component.ComponentVariantID]
		if !ok {
			return 0, nil
		}
		if component.QtyPerBundle <= 0 {
			return 0, nil
		}
		units := stock / component.QtyPerBundle
		if available < 0 || units < available {
			available = units
		}
	}
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (s *service) Restock(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int, note string) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}
	repo := s.repo.WithTx(tx)

	locked, err := repo.FindVariantsForUpdate(ctx, []uuid.UUID{variantID})
	if err != nil {
		return err
	}
	if len(locked) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("variant %s not found", variantID))
	}
	if err := repo.AddStock(ctx, variantID, qty); err != nil {
		return err
	}
	movement := &models.StockMovement{
		VariantID: variantID,
		Change:    qty,
		Type:      enums.StockMovementTypeRestock,
	}
	if note != "" {
		movement.Note = &note
	}
	return repo.CreateMovement(ctx, movement)
}
