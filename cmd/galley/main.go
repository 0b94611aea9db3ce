package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/galley-erp/galley-erp/internal/app"
	"github.com/galley-erp/galley-erp/internal/delivery"
	deliveryhttp "github.com/galley-erp/galley-erp/internal/delivery/http"
	"github.com/galley-erp/galley-erp/internal/issue"
	issuehttp "github.com/galley-erp/galley-erp/internal/issue/http"
	"github.com/galley-erp/galley-erp/internal/ledger"
	ledgerhttp "github.com/galley-erp/galley-erp/internal/ledger/http"
	"github.com/galley-erp/galley-erp/internal/masterdata"
	masterdatahttp "github.com/galley-erp/galley-erp/internal/masterdata/http"
	"github.com/galley-erp/galley-erp/internal/ncr"
	ncrhttp "github.com/galley-erp/galley-erp/internal/ncr/http"
	"github.com/galley-erp/galley-erp/internal/observability"
	"github.com/galley-erp/galley-erp/internal/period"
	periodhttp "github.com/galley-erp/galley-erp/internal/period/http"
	"github.com/galley-erp/galley-erp/internal/platform/cache"
	"github.com/galley-erp/galley-erp/internal/platform/db"
	"github.com/galley-erp/galley-erp/internal/pricebook"
	pricebookhttp "github.com/galley-erp/galley-erp/internal/pricebook/http"
	"github.com/galley-erp/galley-erp/internal/shared"
	"github.com/galley-erp/galley-erp/internal/transfer"
	transferhttp "github.com/galley-erp/galley-erp/internal/transfer/http"
	"github.com/galley-erp/galley-erp/internal/variance"
	"github.com/galley-erp/galley-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, period cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("jobs client unavailable, notifications disabled", slog.Any("error", err))
	}
	defer func() {
		if jobsClient != nil {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	notifier := jobs.NewNotifier(jobsClient, cfg.MailTo, metrics, logger)

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	periodRepo := period.NewRepository(pool)
	periodCache := period.NewCache(redisClient, cfg.PeriodCacheTTL)
	periodService := period.NewService(periodRepo, periodCache, notifier, logger, period.ServiceConfig{
		AllowPostingPendingClose: cfg.AllowPostingPendingClose,
	})

	pricebookService := pricebook.NewService(pricebook.NewRepository(pool), periodService)

	ledgerRepo := ledger.NewRepository(pool)
	keeper := ledger.NewKeeper()

	threshold, err := decimal.NewFromString(cfg.VarianceThresholdPercent)
	if err != nil {
		logger.Error("parse variance threshold", slog.String("value", cfg.VarianceThresholdPercent), slog.Any("error", err))
		os.Exit(1)
	}
	detector := variance.Detector{ThresholdPercent: threshold}

	ncrService := ncr.NewService(ncr.NewRepository(pool), auditLogger, notifier, logger)
	deliveryService := delivery.NewService(delivery.NewRepository(pool), periodService, pricebookService,
		keeper, detector, idempotencyStore, ncrService, auditLogger, logger)
	issueService := issue.NewService(issue.NewRepository(pool), periodService, keeper, idempotencyStore, auditLogger, logger)
	transferService := transfer.NewService(transfer.NewRepository(pool), ledgerRepo, periodService,
		keeper, approvalRecorder, auditLogger, logger)
	masterdataService := masterdata.NewService(masterdata.NewRepository(pool))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		PeriodHandler:     periodhttp.NewHandler(periodService),
		PriceBookHandler:  pricebookhttp.NewHandler(pricebookService),
		DeliveryHandler:   deliveryhttp.NewHandler(deliveryService, metrics),
		IssueHandler:      issuehttp.NewHandler(issueService, metrics),
		TransferHandler:   transferhttp.NewHandler(transferService, metrics),
		NCRHandler:        ncrhttp.NewHandler(ncrService),
		MasterDataHandler: masterdatahttp.NewHandler(masterdataService),
		StockHandler:      ledgerhttp.NewHandler(ledgerRepo),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run", slog.Any("error", err))
		os.Exit(1)
	}
}
