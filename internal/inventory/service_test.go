package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Variant{},
		&models.BundleComponent{},
		&models.StockMovement{},
	); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewServiceParams{
		Client: db.NewWithConn(conn),
		Repo:   NewRepository(conn),
		Log:    logger.New(logger.Options{ServiceName: "inventory-test"}),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func seedVariant(t *testing.T, conn *gorm.DB, sku string, stock int) *models.Variant {
	t.Helper()
	variant := &models.Variant{
		SKU:      sku,
		Name:     sku,
		Price:    decimal.NewFromInt(10000),
		StockQty: stock,
	}
	if err := conn.Create(variant).Error; err != nil {
		t.Fatalf("seed variant %s: %v", sku, err)
	}
	return variant
}

func seedBundle(t *testing.T, conn *gorm.DB, sku string, components map[uuid.UUID]int) *models.Variant {
	t.Helper()
	bundle := &models.Variant{
		SKU:      sku,
		Name:     sku,
		Price:    decimal.NewFromInt(50000),
		IsBundle: true,
	}
	if err := conn.Create(bundle).Error; err != nil {
		t.Fatalf("seed bundle %s: %v", sku, err)
	}
	for componentID, qtyPer := range components {
		err := conn.Create(&models.BundleComponent{
			BundleVariantID:    bundle.ID,
			ComponentVariantID: componentID,
			QtyPerBundle:       qtyPer,
		}).Error
		if err != nil {
			t.Fatalf("seed bundle component: %v", err)
		}
	}
	return bundle
}

func stockOf(t *testing.T, conn *gorm.DB, variantID uuid.UUID) int {
	t.Helper()
	var variant models.Variant
	if err := conn.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return variant.StockQty
}

func TestReserveDecrementsStockAndRecordsMovement(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	variant := seedVariant(t, conn, "SKU-PLAIN", 10)
	transactionID := uuid.New()

	reservations, err := svc.Reserve(ctx, conn, transactionID, []ReserveLine{
		{VariantID: variant.ID, Qty: 3},
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if len(reservations) != 1 || reservations[0].Snapshot != nil {
		t.Fatalf("expected one plain reservation, got %+v", reservations)
	}
	if got := stockOf(t, conn, variant.ID); got != 7 {
		t.Fatalf("expected stock 7, got %d", got)
	}

	var movement models.StockMovement
	if err := conn.First(&movement, "variant_id = ?", variant.ID).Error; err != nil {
		t.Fatalf("load movement: %v", err)
	}
	if movement.Change != -3 || movement.Type != enums.StockMovementTypeSale {
		t.Fatalf("unexpected movement %+v", movement)
	}
	if movement.RelatedID == nil || *movement.RelatedID != transactionID {
		t.Fatalf("movement should reference the transaction, got %+v", movement.RelatedID)
	}
}

func TestReserveInsufficientStockConflict(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	variant := seedVariant(t, conn, "SKU-LOW", 2)

	client := db.NewWithConn(conn)
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.Reserve(ctx, tx, uuid.New(), []ReserveLine{
			{VariantID: variant.ID, Qty: 5},
		})
		return err
	})
	if err == nil {
		t.Fatal("expected oversell to fail")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := stockOf(t, conn, variant.ID); got != 2 {
		t.Fatalf("stock must be untouched after rollback, got %d", got)
	}
}

func TestReserveUnknownVariantNotFound(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.Reserve(context.Background(), conn, uuid.New(), []ReserveLine{
		{VariantID: uuid.New(), Qty: 1},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReserveBundleConsumesComponents(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	componentA := seedVariant(t, conn, "SKU-A", 100)
	componentB := seedVariant(t, conn, "SKU-B", 100)
	bundle := seedBundle(t, conn, "SKU-BUNDLE", map[uuid.UUID]int{
		componentA.ID: 2,
		componentB.ID: 3,
	})

	reservations, err := svc.Reserve(ctx, conn, uuid.New(), []ReserveLine{
		{VariantID: bundle.ID, Qty: 5},
	})
	if err != nil {
		t.Fatalf("reserve bundle: %v", err)
	}
	if got := stockOf(t, conn, componentA.ID); got != 90 {
		t.Fatalf("component A should drop to 90, got %d", got)
	}
	if got := stockOf(t, conn, componentB.ID); got != 85 {
		t.Fatalf("component B should drop to 85, got %d", got)
	}

	snapshot := reservations[0].Snapshot
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 snapshot entries, got %d", len(snapshot))
	}
	totals := map[uuid.UUID]int{}
	for _, usage := range snapshot {
		totals[usage.ComponentVariantID] = usage.TotalQty
	}
	if totals[componentA.ID] != 10 || totals[componentB.ID] != 15 {
		t.Fatalf("snapshot totals wrong: %+v", totals)
	}
}

func TestReserveBundleShortfallConsumesNothing(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	componentA := seedVariant(t, conn, "SKU-A2", 100)
	componentB := seedVariant(t, conn, "SKU-B2", 4)
	bundle := seedBundle(t, conn, "SKU-BUNDLE2", map[uuid.UUID]int{
		componentA.ID: 2,
		componentB.ID: 3,
	})

	client := db.NewWithConn(conn)
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.Reserve(ctx, tx, uuid.New(), []ReserveLine{
			{VariantID: bundle.ID, Qty: 2},
		})
		return err
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := stockOf(t, conn, componentA.ID); got != 100 {
		t.Fatalf("component A must be untouched, got %d", got)
	}
	if got := stockOf(t, conn, componentB.ID); got != 4 {
		t.Fatalf("component B must be untouched, got %d", got)
	}
}

func TestReleaseDetailRestoresFromSnapshot(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	componentA := seedVariant(t, conn, "SKU-A3", 100)
	componentB := seedVariant(t, conn, "SKU-B3", 100)
	bundle := seedBundle(t, conn, "SKU-BUNDLE3", map[uuid.UUID]int{
		componentA.ID: 2,
		componentB.ID: 3,
	})

	transactionID := uuid.New()
	reservations, err := svc.Reserve(ctx, conn, transactionID, []ReserveLine{
		{VariantID: bundle.ID, Qty: 5},
	})
	if err != nil {
		t.Fatalf("reserve bundle: %v", err)
	}

	// The bundle recipe changes after purchase; release must still restore
	// exactly what this order consumed.
	err = conn.Model(&models.BundleComponent{}).
		Where("bundle_variant_id = ? AND component_variant_id = ?", bundle.ID, componentA.ID).
		Update("qty_per_bundle", 7).Error
	if err != nil {
		t.Fatalf("mutate bundle recipe: %v", err)
	}

	detail := models.TransactionDetail{
		TransactionID:  transactionID,
		VariantID:      bundle.ID,
		Qty:            5,
		BundleSnapshot: reservations[0].Snapshot,
	}
	if err := svc.ReleaseDetail(ctx, conn, detail); err != nil {
		t.Fatalf("release detail: %v", err)
	}
	if got := stockOf(t, conn, componentA.ID); got != 100 {
		t.Fatalf("component A should be back to 100, got %d", got)
	}
	if got := stockOf(t, conn, componentB.ID); got != 100 {
		t.Fatalf("component B should be back to 100, got %d", got)
	}
}

func TestReleaseDetailPlainVariant(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	variant := seedVariant(t, conn, "SKU-PLAIN2", 10)
	transactionID := uuid.New()
	if _, err := svc.Reserve(ctx, conn, transactionID, []ReserveLine{{VariantID: variant.ID, Qty: 4}}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	detail := models.TransactionDetail{
		TransactionID: transactionID,
		VariantID:     variant.ID,
		Qty:           4,
	}
	if err := svc.ReleaseDetail(ctx, conn, detail); err != nil {
		t.Fatalf("release detail: %v", err)
	}
	if got := stockOf(t, conn, variant.ID); got != 10 {
		t.Fatalf("stock should be restored to 10, got %d", got)
	}

	var count int64
	err := conn.Model(&models.StockMovement{}).
		Where("variant_id = ? AND type = ?", variant.ID, enums.StockMovementTypeAdjustment).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count adjustments: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one adjustment movement, got %d", count)
	}
}

func TestComputeAvailable(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	componentA := seedVariant(t, conn, "SKU-A4", 10)
	componentB := seedVariant(t, conn, "SKU-B4", 9)
	bundle := seedBundle(t, conn, "SKU-BUNDLE4", map[uuid.UUID]int{
		componentA.ID: 2,
		componentB.ID: 3,
	})

	// min(10/2, 9/3) = 3
	available, err := svc.Available(ctx, bundle.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if available != 3 {
		t.Fatalf("expected 3 assemblable bundles, got %d", available)
	}

	// A variant with no components is not a bundle; availability is zero.
	plain := seedVariant(t, conn, "SKU-PLAIN3", 50)
	available, err = svc.Available(ctx, plain.ID)
	if err != nil {
		t.Fatalf("available on plain variant: %v", err)
	}
	if available != 0 {
		t.Fatalf("expected 0 for non-bundle, got %d", available)
	}
}

func TestRestockVariant(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	variant := seedVariant(t, conn, "SKU-RESTOCK", 1)
	if err := svc.RestockVariant(ctx, variant.ID, 9, "weekly replenishment"); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if got := stockOf(t, conn, variant.ID); got != 10 {
		t.Fatalf("expected stock 10, got %d", got)
	}

	var movement models.StockMovement
	err := conn.First(&movement, "variant_id = ? AND type = ?", variant.ID, enums.StockMovementTypeRestock).Error
	if err != nil {
		t.Fatalf("load restock movement: %v", err)
	}
	if movement.Change != 9 || movement.Note == nil || *movement.Note != "weekly replenishment" {
		t.Fatalf("unexpected restock movement %+v", movement)
	}
}

func TestRestockRejectsBadInput(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	variant := seedVariant(t, conn, "SKU-RESTOCK2", 1)

	err := svc.RestockVariant(ctx, variant.ID, 0, "")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for zero qty, got %v", err)
	}

	err = svc.RestockVariant(ctx, uuid.New(), 5, "")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown variant, got %v", err)
	}
}
