package vouchers

import (
	"context"
	"testing"
	"time"

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
	dsn := "file:vouchers_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Voucher{}, &models.VoucherClaim{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewServiceParams{
		Client: db.NewWithConn(conn),
		Repo:   NewRepository(conn),
		Log:    logger.New(logger.Options{ServiceName: "vouchers-test"}),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func seedVoucher(t *testing.T, conn *gorm.DB, code string, qty int, expiresAt *time.Time) *models.Voucher {
	t.Helper()
	voucher := &models.Voucher{
		Code:      code,
		Amount:    decimal.NewFromInt(15000),
		Qty:       qty,
		ExpiresAt: expiresAt,
	}
	if err := conn.Create(voucher).Error; err != nil {
		t.Fatalf("seed voucher: %v", err)
	}
	return voucher
}

func loadClaim(t *testing.T, conn *gorm.DB, voucherID, userID uuid.UUID) *models.VoucherClaim {
	t.Helper()
	var claim models.VoucherClaim
	err := conn.First(&claim, "voucher_id = ? AND user_id = ?", voucherID, userID).Error
	if err != nil {
		t.Fatalf("load claim: %v", err)
	}
	return &claim
}

func voucherQty(t *testing.T, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var voucher models.Voucher
	if err := conn.First(&voucher, "id = ?", id).Error; err != nil {
		t.Fatalf("load voucher: %v", err)
	}
	return voucher.Qty
}

func TestGetReadsThroughOpenTransaction(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	// A voucher created inside an uncommitted transaction must be visible to
	// a Get bound to that transaction; checkout prices the voucher in the
	// same scope that reserves it.
	err := conn.Transaction(func(tx *gorm.DB) error {
		voucher := &models.Voucher{Code: "INFLIGHT", Amount: decimal.NewFromInt(15000), Qty: 1}
		if err := tx.Create(voucher).Error; err != nil {
			return err
		}
		found, err := svc.Get(ctx, tx, voucher.ID)
		if err != nil {
			return err
		}
		if !found.Amount.Equal(decimal.NewFromInt(15000)) {
			t.Fatalf("unexpected amount %s", found.Amount)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	// Without an open transaction the base connection serves the read.
	committed := seedVoucher(t, conn, "SETTLED", 1, nil)
	found, err := svc.Get(ctx, nil, committed.ID)
	if err != nil {
		t.Fatalf("get without tx: %v", err)
	}
	if found.Code != "SETTLED" {
		t.Fatalf("unexpected voucher %+v", found)
	}

	_, err = svc.Get(ctx, nil, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unknown voucher should be not found, got %v", err)
	}
}

func TestClaimVoucherTakesOneUnit(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	voucher := seedVoucher(t, conn, "GIFT15", 3, nil)
	userID := uuid.New()

	claim, err := svc.ClaimVoucher(ctx, userID, "GIFT15")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claim.Status != enums.VoucherClaimStatusClaimed {
		t.Fatalf("expected CLAIMED, got %s", claim.Status)
	}
	if got := voucherQty(t, conn, voucher.ID); got != 2 {
		t.Fatalf("expected qty 2, got %d", got)
	}
}

func TestClaimVoucherGuards(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	userID := uuid.New()

	seedVoucher(t, conn, "ONCE", 5, nil)
	if _, err := svc.ClaimVoucher(ctx, userID, "ONCE"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := svc.ClaimVoucher(ctx, userID, "ONCE")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("second claim by same user should conflict, got %v", err)
	}

	past := time.Now().Add(-time.Hour)
	seedVoucher(t, conn, "EXPIRED", 5, &past)
	_, err = svc.ClaimVoucher(ctx, userID, "EXPIRED")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expired voucher should conflict, got %v", err)
	}

	seedVoucher(t, conn, "EMPTY", 0, nil)
	_, err = svc.ClaimVoucher(ctx, userID, "EMPTY")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("out-of-stock voucher should conflict, got %v", err)
	}

	_, err = svc.ClaimVoucher(ctx, userID, "MISSING")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unknown voucher should be not found, got %v", err)
	}
}

func TestReserveBindsClaimToTransaction(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	voucher := seedVoucher(t, conn, "BIND", 1, nil)
	userID := uuid.New()
	if _, err := svc.ClaimVoucher(ctx, userID, "BIND"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	transactionID := uuid.New()
	if err := svc.Reserve(ctx, conn, voucher.ID, userID, transactionID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	claim := loadClaim(t, conn, voucher.ID, userID)
	if claim.Status != enums.VoucherClaimStatusReserved {
		t.Fatalf("expected RESERVED, got %s", claim.Status)
	}
	if claim.TransactionID == nil || *claim.TransactionID != transactionID {
		t.Fatalf("claim should bind to transaction, got %+v", claim.TransactionID)
	}

	// Same transaction replays fine; another transaction is refused.
	if err := svc.Reserve(ctx, conn, voucher.ID, userID, transactionID); err != nil {
		t.Fatalf("reserve replay: %v", err)
	}
	err := svc.Reserve(ctx, conn, voucher.ID, userID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for competing transaction, got %v", err)
	}
}

func TestReserveWithoutClaimNotFound(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	voucher := seedVoucher(t, conn, "UNCLAIMED", 1, nil)
	err := svc.Reserve(context.Background(), conn, voucher.ID, uuid.New(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCommitMarksClaimUsed(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	voucher := seedVoucher(t, conn, "USE", 1, nil)
	userID := uuid.New()
	if _, err := svc.ClaimVoucher(ctx, userID, "USE"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	transactionID := uuid.New()
	if err := svc.Reserve(ctx, conn, voucher.ID, userID, transactionID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := svc.Commit(ctx, conn, transactionID); err != nil {
		t.Fatalf("commit: %v", err)
	}
	claim := loadClaim(t, conn, voucher.ID, userID)
	if claim.Status != enums.VoucherClaimStatusUsed {
		t.Fatalf("expected USED, got %s", claim.Status)
	}

	// Replay and a used claim cannot be reserved again.
	if err := svc.Commit(ctx, conn, transactionID); err != nil {
		t.Fatalf("commit replay: %v", err)
	}
	err := svc.Reserve(ctx, conn, voucher.ID, userID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("used claim reserve should conflict, got %v", err)
	}
}

func TestReleaseRevertsClaim(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	voucher := seedVoucher(t, conn, "BACK", 1, nil)
	userID := uuid.New()
	if _, err := svc.ClaimVoucher(ctx, userID, "BACK"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	transactionID := uuid.New()
	if err := svc.Reserve(ctx, conn, voucher.ID, userID, transactionID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := svc.Release(ctx, conn, transactionID, &voucher.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	claim := loadClaim(t, conn, voucher.ID, userID)
	if claim.Status != enums.VoucherClaimStatusClaimed {
		t.Fatalf("expected CLAIMED after release, got %s", claim.Status)
	}
	if claim.TransactionID != nil {
		t.Fatalf("release should unbind the transaction, got %v", claim.TransactionID)
	}
	// The unit stays claimed by the user; quantity is untouched.
	if got := voucherQty(t, conn, voucher.ID); got != 0 {
		t.Fatalf("voucher qty should stay 0, got %d", got)
	}
}

func TestReleaseLegacyOrderRestoresQuantity(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	// Orders that predate claim rows reference the voucher directly.
	voucher := seedVoucher(t, conn, "LEGACY", 0, nil)
	if err := svc.Release(ctx, conn, uuid.New(), &voucher.ID); err != nil {
		t.Fatalf("legacy release: %v", err)
	}
	if got := voucherQty(t, conn, voucher.ID); got != 1 {
		t.Fatalf("legacy release should restore qty to 1, got %d", got)
	}

	// With no claim row and no voucher reference there is nothing to do.
	if err := svc.Release(ctx, conn, uuid.New(), nil); err != nil {
		t.Fatalf("release without voucher reference: %v", err)
	}
}
