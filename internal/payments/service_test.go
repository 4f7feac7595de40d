package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/internal/inventory"
	"github.com/kiranalabs/kirana-backend/internal/ledgers"
	"github.com/kiranalabs/kirana-backend/internal/promotions"
	"github.com/kiranalabs/kirana-backend/internal/referrals"
	"github.com/kiranalabs/kirana-backend/internal/transactions"
	"github.com/kiranalabs/kirana-backend/internal/vouchers"
	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
	"github.com/kiranalabs/kirana-backend/pkg/metrics"
)

const testServerKey = "server-key-123"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Variant{},
		&models.BundleComponent{},
		&models.StockMovement{},
		&models.Transaction{},
		&models.TransactionDetail{},
		&models.Discount{},
		&models.DiscountReservation{},
		&models.Voucher{},
		&models.VoucherClaim{},
		&models.ReferralRedemption{},
	); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "payments-test"})

	stock, err := inventory.NewService(inventory.NewServiceParams{
		Repo: inventory.NewRepository(conn), Log: logg,
	})
	if err != nil {
		t.Fatalf("stock ledger: %v", err)
	}
	discounts, err := promotions.NewService(promotions.NewServiceParams{
		Repo: promotions.NewRepository(conn), Log: logg,
	})
	if err != nil {
		t.Fatalf("discount ledger: %v", err)
	}
	voucherLedger, err := vouchers.NewService(vouchers.NewServiceParams{
		Repo: vouchers.NewRepository(conn), Log: logg,
	})
	if err != nil {
		t.Fatalf("voucher ledger: %v", err)
	}
	referralLedger, err := referrals.NewService(referrals.NewServiceParams{
		Repo: referrals.NewRepository(conn), Log: logg,
	})
	if err != nil {
		t.Fatalf("referral ledger: %v", err)
	}
	coordinator, err := ledgers.NewCoordinator(ledgers.NewCoordinatorParams{
		Stock:     stock,
		Discounts: discounts,
		Vouchers:  voucherLedger,
		Referrals: referralLedger,
	})
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}

	svc, err := NewService(NewServiceParams{
		Client:      db.NewWithConn(conn),
		Repo:        transactions.NewRepository(conn),
		Coordinator: coordinator,
		Log:         logg,
		Metrics:     metrics.NewWebhookMetrics(prometheus.NewRegistry()),
		ServerKey:   testServerKey,
	})
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	return svc
}

// seedOrder creates an order with one stock line, a discount reservation, a
// reserved voucher claim and a pending referral redemption.
type seededOrder struct {
	txn      *models.Transaction
	variant  *models.Variant
	discount *models.Discount
	voucher  *models.Voucher
	claim    *models.VoucherClaim
}

func seedOrder(t *testing.T, conn *gorm.DB, status enums.TransactionStatus) seededOrder {
	t.Helper()

	variant := &models.Variant{
		SKU:      "SKU-" + uuid.NewString()[:8],
		Name:     "seeded",
		Price:    decimal.NewFromInt(100000),
		StockQty: 8, // 10 on hand minus the 2 this order reserved
	}
	if err := conn.Create(variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}

	voucher := &models.Voucher{Code: "V-" + uuid.NewString()[:8], Amount: decimal.NewFromInt(15000)}
	if err := conn.Create(voucher).Error; err != nil {
		t.Fatalf("seed voucher: %v", err)
	}

	userID := uuid.New()
	txn := &models.Transaction{
		Code:          "TRX-" + uuid.NewString()[:13],
		UserID:        userID,
		Channel:       enums.SalesChannelEcommerce,
		Status:        status,
		Subtotal:      decimal.NewFromInt(200000),
		ShippingFee:   decimal.NewFromInt(10000),
		DiscountTotal: decimal.NewFromInt(20000),
		GrossAmount:   decimal.NewFromInt(190000),
		VoucherID:     &voucher.ID,
	}
	if err := conn.Create(txn).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	detail := &models.TransactionDetail{
		TransactionID: txn.ID,
		VariantID:     variant.ID,
		Qty:           2,
		UnitPrice:     decimal.NewFromInt(100000),
	}
	if err := conn.Create(detail).Error; err != nil {
		t.Fatalf("seed detail: %v", err)
	}

	discount := &models.Discount{Code: "D-" + uuid.NewString()[:8], Amount: decimal.NewFromInt(5000), ReservedCount: 1}
	if err := conn.Create(discount).Error; err != nil {
		t.Fatalf("seed discount: %v", err)
	}
	if err := conn.Create(&models.DiscountReservation{DiscountID: discount.ID, TransactionID: txn.ID}).Error; err != nil {
		t.Fatalf("seed discount reservation: %v", err)
	}

	claim := &models.VoucherClaim{
		VoucherID:     voucher.ID,
		UserID:        userID,
		Status:        enums.VoucherClaimStatusReserved,
		TransactionID: &txn.ID,
	}
	if err := conn.Create(claim).Error; err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	redemption := &models.ReferralRedemption{
		ReferralCode:  "FRIEND-1",
		UserID:        userID,
		TransactionID: txn.ID,
		Status:        enums.ReferralRedemptionStatusPending,
	}
	if err := conn.Create(redemption).Error; err != nil {
		t.Fatalf("seed redemption: %v", err)
	}

	return seededOrder{txn: txn, variant: variant, discount: discount, voucher: voucher, claim: claim}
}

func signedNotification(orderRef, status, fraud string) Notification {
	gross := "190000.00"
	return Notification{
		OrderRef:          orderRef,
		StatusCode:        "200",
		GrossAmount:       gross,
		SignatureKey:      ComputeSignature(orderRef, "200", gross, testServerKey),
		TransactionStatus: status,
		FraudStatus:       fraud,
		PaymentType:       "bank_transfer",
	}
}

func orderStatus(t *testing.T, conn *gorm.DB, id uuid.UUID) enums.TransactionStatus {
	t.Helper()
	var txn models.Transaction
	if err := conn.First(&txn, "id = ?", id).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	return txn.Status
}

func TestSignatureRoundTrip(t *testing.T) {
	t.Parallel()

	notification := signedNotification("TRX-ABC", "settlement", "")
	if !VerifySignature(notification, testServerKey) {
		t.Fatal("valid signature should verify")
	}
	notification.GrossAmount = "1.00"
	if VerifySignature(notification, testServerKey) {
		t.Fatal("tampered payload must not verify")
	}
}

func TestNotificationRejectedOnBadSignature(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	order := seedOrder(t, conn, enums.TransactionStatusWaitingPayment)

	notification := signedNotification(order.txn.Code, "settlement", "")
	notification.SignatureKey = "forged"

	outcome, err := svc.HandleNotification(ctx, notification)
	if outcome != OutcomeRejected {
		t.Fatalf("expected rejection, got %s", outcome)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if got := orderStatus(t, conn, order.txn.ID); got != enums.TransactionStatusWaitingPayment {
		t.Fatalf("order must be untouched, got %s", got)
	}
}

func TestSettlementCommitsAllLedgers(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	order := seedOrder(t, conn, enums.TransactionStatusWaitingPayment)

	outcome, err := svc.HandleNotification(ctx, signedNotification(order.txn.Code, "settlement", ""))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	if got := orderStatus(t, conn, order.txn.ID); got != enums.TransactionStatusPaidWaitingAdmin {
		t.Fatalf("expected PAID_WAITING_ADMIN, got %s", got)
	}
	var txn models.Transaction
	if err := conn.First(&txn, "id = ?", order.txn.ID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.PaymentType == nil || *txn.PaymentType != "bank_transfer" {
		t.Fatalf("payment type not stored: %+v", txn.PaymentType)
	}

	var discount models.Discount
	if err := conn.First(&discount, "id = ?", order.discount.ID).Error; err != nil {
		t.Fatalf("load discount: %v", err)
	}
	if discount.UsageCount != 1 || discount.ReservedCount != 0 {
		t.Fatalf("discount should be committed, got used=%d reserved=%d",
			discount.UsageCount, discount.ReservedCount)
	}
	var claim models.VoucherClaim
	if err := conn.First(&claim, "id = ?", order.claim.ID).Error; err != nil {
		t.Fatalf("load claim: %v", err)
	}
	if claim.Status != enums.VoucherClaimStatusUsed {
		t.Fatalf("claim should be USED, got %s", claim.Status)
	}
	var redemption models.ReferralRedemption
	if err := conn.First(&redemption, "transaction_id = ?", order.txn.ID).Error; err != nil {
		t.Fatalf("load redemption: %v", err)
	}
	if redemption.Status != enums.ReferralRedemptionStatusSuccess {
		t.Fatalf("redemption should be SUCCESS, got %s", redemption.Status)
	}

	// The gateway retries: the replay must change nothing.
	outcome, err = svc.HandleNotification(ctx, signedNotification(order.txn.Code, "settlement", ""))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("replay should be skipped, got %s", outcome)
	}
	if err := conn.First(&discount, "id = ?", order.discount.ID).Error; err != nil {
		t.Fatalf("reload discount: %v", err)
	}
	if discount.UsageCount != 1 {
		t.Fatalf("replay must not double-commit, got used=%d", discount.UsageCount)
	}
}

func TestCaptureRequiresAcceptedFraudCheck(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	order := seedOrder(t, conn, enums.TransactionStatusWaitingPayment)

	outcome, err := svc.HandleNotification(ctx, signedNotification(order.txn.Code, "capture", "challenge"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("challenged capture should be ignored, got %s", outcome)
	}

	outcome, err = svc.HandleNotification(ctx, signedNotification(order.txn.Code, "capture", "accept"))
	if err != nil {
		t.Fatalf("handle accepted capture: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("accepted capture should apply, got %s", outcome)
	}
	if got := orderStatus(t, conn, order.txn.ID); got != enums.TransactionStatusPaidWaitingAdmin {
		t.Fatalf("expected PAID_WAITING_ADMIN, got %s", got)
	}
}

func TestLatePendingNeverDowngradesPaidOrder(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	order := seedOrder(t, conn, enums.TransactionStatusPaidWaitingAdmin)

	outcome, err := svc.HandleNotification(ctx, signedNotification(order.txn.Code, "pending", ""))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("expected skip, got %s", outcome)
	}
	if got := orderStatus(t, conn, order.txn.ID); got != enums.TransactionStatusPaidWaitingAdmin {
		t.Fatalf("paid order must not downgrade, got %s", got)
	}
}

func TestLateWebhookNeverTouchesProgressedOrder(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	for _, status := range []enums.TransactionStatus{
		enums.TransactionStatusOnProcess,
		enums.TransactionStatusOnDelivery,
		enums.TransactionStatusCompleted,
		enums.TransactionStatusFailed,
	} {
		order := seedOrder(t, conn, status)
		outcome, err := svc.HandleNotification(ctx, signedNotification(order.txn.Code, "expire", ""))
		if err != nil {
			t.Fatalf("handle on %s: %v", status, err)
		}
		if outcome != OutcomeSkipped {
			t.Fatalf("expected skip on %s, got %s", status, outcome)
		}
		if got := orderStatus(t, conn, order.txn.ID); got != status {
			t.Fatalf("order in %s must be untouched, got %s", status, got)
		}
	}
}

func TestExpireReleasesEverything(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	order := seedOrder(t, conn, enums.TransactionStatusWaitingPayment)

	outcome, err := svc.HandleNotification(ctx, signedNotification(order.txn.Code, "expire", ""))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}
	if got := orderStatus(t, conn, order.txn.ID); got != enums.TransactionStatusFailed {
		t.Fatalf("expected FAILED, got %s", got)
	}

	var variant models.Variant
	if err := conn.First(&variant, "id = ?", order.variant.ID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if variant.StockQty != 10 {
		t.Fatalf("stock should be restored to 10, got %d", variant.StockQty)
	}
	var discount models.Discount
	if err := conn.First(&discount, "id = ?", order.discount.ID).Error; err != nil {
		t.Fatalf("load discount: %v", err)
	}
	if discount.ReservedCount != 0 || discount.UsageCount != 0 {
		t.Fatalf("discount hold should be released, got used=%d reserved=%d",
			discount.UsageCount, discount.ReservedCount)
	}
	var claim models.VoucherClaim
	if err := conn.First(&claim, "id = ?", order.claim.ID).Error; err != nil {
		t.Fatalf("load claim: %v", err)
	}
	if claim.Status != enums.VoucherClaimStatusClaimed {
		t.Fatalf("claim should revert to CLAIMED, got %s", claim.Status)
	}
	var redemption models.ReferralRedemption
	if err := conn.First(&redemption, "transaction_id = ?", order.txn.ID).Error; err != nil {
		t.Fatalf("load redemption: %v", err)
	}
	if redemption.Status != enums.ReferralRedemptionStatusCanceled {
		t.Fatalf("redemption should be CANCELED, got %s", redemption.Status)
	}
}

func TestUnknownOrderIsAccepted(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	outcome, err := svc.HandleNotification(context.Background(),
		signedNotification("TRX-DOES-NOT-EXIST", "settlement", ""))
	if err != nil {
		t.Fatalf("unknown order must not error: %v", err)
	}
	if outcome != OutcomeUnknownOrder {
		t.Fatalf("expected unknown order outcome, got %s", outcome)
	}
}

func TestUnmappedGatewayStatusIgnored(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	outcome, err := svc.HandleNotification(context.Background(),
		signedNotification("TRX-WHATEVER", "refund", ""))
	if err != nil {
		t.Fatalf("unmapped status must not error: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", outcome)
	}
}
