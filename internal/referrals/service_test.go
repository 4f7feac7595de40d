package referrals

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:referrals_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.ReferralRedemption{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewServiceParams{
		Repo: NewRepository(conn),
		Log:  logger.New(logger.Options{ServiceName: "referrals-test"}),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func loadRedemption(t *testing.T, conn *gorm.DB, transactionID uuid.UUID) *models.ReferralRedemption {
	t.Helper()
	var redemption models.ReferralRedemption
	if err := conn.First(&redemption, "transaction_id = ?", transactionID).Error; err != nil {
		t.Fatalf("load redemption: %v", err)
	}
	return &redemption
}

func TestReserveCreatesPendingRedemption(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	transactionID := uuid.New()
	redemption, err := svc.Reserve(ctx, conn, "FRIEND-10", uuid.New(), transactionID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if redemption.Status != enums.ReferralRedemptionStatusPending {
		t.Fatalf("expected PENDING, got %s", redemption.Status)
	}
	if loadRedemption(t, conn, transactionID).ReferralCode != "FRIEND-10" {
		t.Fatal("redemption row not persisted")
	}
}

func TestReserveRequiresCode(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.Reserve(context.Background(), conn, "", uuid.New(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCommitAndReleaseResolvePendingOnly(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	transactionID := uuid.New()
	if _, err := svc.Reserve(ctx, conn, "FRIEND-20", uuid.New(), transactionID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := svc.Commit(ctx, conn, transactionID); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := loadRedemption(t, conn, transactionID).Status; got != enums.ReferralRedemptionStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", got)
	}

	// A late release after settlement must not flip the outcome.
	if err := svc.Release(ctx, conn, transactionID); err != nil {
		t.Fatalf("release after commit: %v", err)
	}
	if got := loadRedemption(t, conn, transactionID).Status; got != enums.ReferralRedemptionStatusSuccess {
		t.Fatalf("settled redemption must stay SUCCESS, got %s", got)
	}
}

func TestReleaseCancelsPendingRedemption(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	transactionID := uuid.New()
	if _, err := svc.Reserve(ctx, conn, "FRIEND-30", uuid.New(), transactionID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, conn, transactionID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := loadRedemption(t, conn, transactionID).Status; got != enums.ReferralRedemptionStatusCanceled {
		t.Fatalf("expected CANCELED, got %s", got)
	}

	// Replay is a no-op.
	if err := svc.Release(ctx, conn, transactionID); err != nil {
		t.Fatalf("release replay: %v", err)
	}
}

func TestSettleWithoutRedemptionIsNoOp(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	if err := svc.Commit(ctx, conn, uuid.New()); err != nil {
		t.Fatalf("commit without redemption: %v", err)
	}
	if err := svc.Release(ctx, conn, uuid.New()); err != nil {
		t.Fatalf("release without redemption: %v", err)
	}
}
