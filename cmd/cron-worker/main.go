package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kiranalabs/kirana-backend/internal/cron"
	"github.com/kiranalabs/kirana-backend/internal/inventory"
	"github.com/kiranalabs/kirana-backend/internal/ledgers"
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

const lockKeyFormat = "kirana:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	stockService, err := inventory.NewService(inventory.NewServiceParams{
		Repo: inventory.NewRepository(dbClient.DB()), Log: logg,
	})
	fatal("failed to create stock ledger", err)

	discountService, err := promotions.NewService(promotions.NewServiceParams{
		Repo: promotions.NewRepository(dbClient.DB()), Log: logg,
	})
	fatal("failed to create discount ledger", err)

	voucherService, err := vouchers.NewService(vouchers.NewServiceParams{
		Repo: vouchers.NewRepository(dbClient.DB()), Log: logg,
	})
	fatal("failed to create voucher ledger", err)

	referralService, err := referrals.NewService(referrals.NewServiceParams{
		Repo: referrals.NewRepository(dbClient.DB()), Log: logg,
	})
	fatal("failed to create referral ledger", err)

	coordinator, err := ledgers.NewCoordinator(ledgers.NewCoordinatorParams{
		Stock:     stockService,
		Discounts: discountService,
		Vouchers:  voucherService,
		Referrals: referralService,
	})
	fatal("failed to create ledger coordinator", err)

	expiryJob, err := cron.NewPaymentExpiryJob(cron.PaymentExpiryJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repo:        transactionsRepo,
		Coordinator: coordinator,
		MaxAge:      cfg.Jobs.PaymentExpiryAge,
		BatchSize:   cfg.Jobs.PaymentExpiryBatch,
	})
	fatal("failed to create payment expiry job", err)

	courierClient, err := courier.NewClient(cfg.Courier.BaseURL, cfg.Courier.APIKey,
		courier.WithHTTPClient(&http.Client{Timeout: cfg.Courier.Timeout}))
	fatal("failed to create courier client", err)

	deliveryJob, err := cron.NewDeliverySyncJob(cron.DeliverySyncJobParams{
		Logger:            logg,
		DB:                dbClient,
		Repo:              transactionsRepo,
		Coordinator:       coordinator,
		Tracker:           courierClient,
		BatchSize:         cfg.Jobs.DeliverySyncBatch,
		AutoCompleteAfter: time.Duration(cfg.Jobs.AutoCompleteDays) * 24 * time.Hour,
	})
	fatal("failed to create delivery sync job", err)

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	fatal("failed to create cron lock", err)

	registry := cron.NewRegistry(expiryJob, deliveryJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Jobs.Interval,
	})
	fatal("failed to create cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
