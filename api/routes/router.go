package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kiranalabs/kirana-backend/api/controllers"
	webhookcontrollers "github.com/kiranalabs/kirana-backend/api/controllers/webhooks"
	"github.com/kiranalabs/kirana-backend/api/middleware"
	"github.com/kiranalabs/kirana-backend/internal/channels"
	checkoutsvc "github.com/kiranalabs/kirana-backend/internal/checkout"
	"github.com/kiranalabs/kirana-backend/internal/inventory"
	"github.com/kiranalabs/kirana-backend/internal/payments"
	"github.com/kiranalabs/kirana-backend/internal/transactions"
	"github.com/kiranalabs/kirana-backend/internal/vouchers"
	"github.com/kiranalabs/kirana-backend/pkg/config"
	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
	"github.com/kiranalabs/kirana-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	checkoutService checkoutsvc.Service,
	paymentsService payments.Service,
	transactionsService transactions.Service,
	channelsService channels.Service,
	vouchersService vouchers.Service,
	inventoryService inventory.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// The gateway signs its own payloads; no identity or idempotency
	// middleware applies here.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(paymentsService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity())
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())
		r.Post("/checkout", controllers.Checkout(checkoutService, logg))
		r.Post("/vouchers/claim", controllers.VoucherClaim(vouchersService, logg))
		r.Get("/bundles/{variantId}/availability", controllers.BundleAvailability(inventoryService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Identity())
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Route("/transactions/{transactionId}", func(r chi.Router) {
			r.Get("/", controllers.AdminTransactionDetail(transactionsService, logg))
			r.Post("/confirm-paid", controllers.AdminConfirmPaid(transactionsService, logg))
			r.Post("/receipt", controllers.AdminGenerateReceipt(transactionsService, logg))
			r.Post("/cancel", controllers.AdminCancelTransaction(transactionsService, logg))
			r.Post("/complete", controllers.AdminCompleteTransaction(transactionsService, logg))
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", controllers.TransferList(channelsService, logg))
			r.Post("/", controllers.TransferRequest(channelsService, logg))
			r.Post("/{transferId}/approve", controllers.TransferApprove(channelsService, logg))
			r.Post("/{transferId}/execute", controllers.TransferExecute(channelsService, logg))
			r.Post("/{transferId}/reject", controllers.TransferReject(channelsService, logg))
		})

		r.Route("/channel-stock/{variantId}", func(r chi.Router) {
			r.Get("/", controllers.ChannelStockList(channelsService, logg))
			r.Put("/", controllers.ChannelStockSet(channelsService, logg))
		})

		r.Post("/inventory/{variantId}/restock", controllers.InventoryRestock(inventoryService, logg))
	})

	return r
}
