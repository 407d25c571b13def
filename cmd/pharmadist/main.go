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
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
	"github.com/pharmadist/pharmadist-erp/internal/app"
	"github.com/pharmadist/pharmadist-erp/internal/customers"
	"github.com/pharmadist/pharmadist-erp/internal/expenses"
	"github.com/pharmadist/pharmadist-erp/internal/observability"
	"github.com/pharmadist/pharmadist-erp/internal/platform/cache"
	"github.com/pharmadist/pharmadist-erp/internal/platform/db"
	"github.com/pharmadist/pharmadist-erp/internal/reports"
	"github.com/pharmadist/pharmadist-erp/internal/reports/export"
	reportshttp "github.com/pharmadist/pharmadist-erp/internal/reports/http"
	"github.com/pharmadist/pharmadist-erp/internal/sales"
	"github.com/pharmadist/pharmadist-erp/jobs"
	"github.com/pharmadist/pharmadist-erp/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	decimal.MarshalJSONWithoutQuotes = true

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.RunMigrationsOnBoot {
		applied, err := db.RunMigrations(ctx, dbpool, logger)
		if err != nil {
			logger.Error("run migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations checked", slog.Int("applied", len(applied)))
	}

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, reports served uncached", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	if err := reports.SetupMetrics(metrics.Registerer()); err != nil {
		logger.Error("register report metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var reportCache *reports.Cache
	if redisClient != nil {
		reportCache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
		if err := reportCache.ListenForInvalidation(ctx, func(version int64) {
			reports.RecordInvalidation(version)
			logger.Debug("report cache invalidated", slog.Int64("version", version))
		}); err != nil {
			logger.Warn("subscribe report invalidation", slog.Any("error", err))
		}
	}
	reportsService := reports.NewService(reports.NewRepository(dbpool), reportCache, logger)

	ledgerService := accounting.NewService(accounting.NewRepository(dbpool), reportsService, logger)
	salesService := sales.NewService(sales.NewRepository(dbpool), ledgerService, logger)
	expensesService := expenses.NewService(expenses.NewRepository(dbpool), ledgerService, logger)
	customersService := customers.NewService(customers.NewRepository(dbpool), logger)

	formatter, err := export.NewFormatter(cfg.CurrencyCode)
	if err != nil {
		logger.Error("currency formatter", slog.Any("error", err))
		os.Exit(1)
	}
	var pdfClient export.PDFRenderClient
	if cfg.GotenbergURL != "" {
		client := report.NewClient(cfg.GotenbergURL)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx); err != nil {
			logger.Warn("gotenberg unreachable, pdf exports will fail until it recovers", slog.Any("error", err))
		}
		cancel()
		pdfClient = client
	} else {
		logger.Info("GOTENBERG_URL not set, pdf exports disabled")
	}
	exporter := export.NewExporter(pdfClient, formatter, cfg.CompanyName)

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LedgerHandler:    accounting.NewHandler(logger, ledgerService),
		ReportsHandler:   reportshttp.NewHandler(logger, reportsService, exporter, cfg.ExportRateLimitPerMinute),
		SalesHandler:     sales.NewHandler(logger, salesService),
		ExpensesHandler:  expenses.NewHandler(logger, expensesService),
		CustomersHandler: customers.NewHandler(logger, customersService),
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
