package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kiranalabs/kirana-backend/api/routes"
	"github.com/kiranalabs/kirana-backend/internal/activitylog"
	"github.com/kiranalabs/kirana-backend/internal/channels"
	checkoutsvc "github.com/kiranalabs/kirana-backend/internal/checkout"
	"github.com/kiranalabs/kirana-backend/internal/inventory"
	"github.com/kiranalabs/kirana-backend/internal/ledgers"
	"github.com/kiranalabs/kirana-backend/internal/payments"
	"github.com/kiranalabs/kirana-backend/internal/promotions"
	"github.com/kiranalabs/kirana-backend/internal/referrals"
	"github.com/kiranalabs/kirana-backend/internal/transactions"
	"github.com/kiranalabs/kirana-backend/internal/vouchers"
	"github.com/kiranalabs/kirana-backend/pkg/config"
	"github.com/kiranalabs/kirana-backend/pkg/courier"
	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
	"github.com/kiranalabs/kirana-backend/pkg/metrics"
	"github.com/kiranalabs/kirana-backend/pkg/migrate"
	"github.com/kiranalabs/kirana-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	fatal := func(msg string, err error) {
		if err != nil {
			logg.Error(context.Background(), msg, err)
			os.Exit(1)
		}
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	fatal("failed to bootstrap database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	fatal("failed to run dev migrations", migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient))

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	fatal("failed to bootstrap redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	transactionsRepo := transactions.NewRepository(dbClient.DB())
	inventoryRepo := inventory.NewRepository(dbClient.DB())
	promotionsRepo := promotions.NewRepository(dbClient.DB())
	vouchersRepo := vouchers.NewRepository(dbClient.DB())
	referralsRepo := referrals.NewRepository(dbClient.DB())
	channelsRepo := channels.NewRepository(dbClient.DB())

	stockService, err := inventory.NewService(inventory.NewServiceParams{
		Client: dbClient, Repo: inventoryRepo, Log: logg,
	})
	fatal("failed to create stock ledger", err)

	discountService, err := promotions.NewService(promotions.NewServiceParams{
		Repo: promotionsRepo, Log: logg,
	})
	fatal("failed to create discount ledger", err)

	voucherService, err := vouchers.NewService(vouchers.NewServiceParams{
		Client: dbClient, Repo: vouchersRepo, Log: logg,
	})
	fatal("failed to create voucher ledger", err)

	referralService, err := referrals.NewService(referrals.NewServiceParams{
		Repo: referralsRepo, Log: logg,
	})
	fatal("failed to create referral ledger", err)

	coordinator, err := ledgers.NewCoordinator(ledgers.NewCoordinatorParams{
		Stock:     stockService,
		Discounts: discountService,
		Vouchers:  voucherService,
		Referrals: referralService,
	})
	fatal("failed to create ledger coordinator", err)

	activity, err := activitylog.NewRecorder(activitylog.NewRecorderParams{
		DB: dbClient.DB(), Log: logg,
	})
	fatal("failed to create activity recorder", err)

	courierClient, err := courier.NewClient(cfg.Courier.BaseURL, cfg.Courier.APIKey,
		courier.WithHTTPClient(&http.Client{Timeout: cfg.Courier.Timeout}))
	fatal("failed to create courier client", err)

	paymentsService, err := payments.NewService(payments.NewServiceParams{
		Client:      dbClient,
		Repo:        transactionsRepo,
		Coordinator: coordinator,
		Log:         logg,
		Metrics:     metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		ServerKey:   cfg.Payment.ServerKey,
	})
	fatal("failed to create payment reconciler", err)

	transactionsService, err := transactions.NewService(transactions.NewServiceParams{
		Client:      dbClient,
		Repo:        transactionsRepo,
		Coordinator: coordinator,
		Carrier:     courierClient,
		Activity:    activity,
		Log:         logg,
	})
	fatal("failed to create fulfillment service", err)

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.NewServiceParams{
		Client:    dbClient,
		Repo:      transactionsRepo,
		Variants:  inventoryRepo,
		Stock:     stockService,
		Discounts: discountService,
		Vouchers:  voucherService,
		Referrals: referralService,
		Log:       logg,
	})
	fatal("failed to create checkout service", err)

	channelsService, err := channels.NewService(channels.NewServiceParams{
		Client: dbClient, Repo: channelsRepo, Log: logg,
	})
	fatal("failed to create channel stock service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient,
			checkoutService, paymentsService, transactionsService,
			channelsService, voucherService, stockService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
