package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/silicalab/internal/config"
	"github.com/mamadbah2/silicalab/internal/render/pdf"
	"github.com/mamadbah2/silicalab/internal/render/xlsx"
	"github.com/mamadbah2/silicalab/internal/repository/mongodb"
	"github.com/mamadbah2/silicalab/internal/repository/sheets"
	"github.com/mamadbah2/silicalab/internal/repository/sqlite"
	"github.com/mamadbah2/silicalab/internal/scheduler"
	"github.com/mamadbah2/silicalab/internal/server/handlers"
	"github.com/mamadbah2/silicalab/internal/server/router"
	reportingsvc "github.com/mamadbah2/silicalab/internal/service/reporting"
	"github.com/mamadbah2/silicalab/pkg/clients/notify"
	"github.com/mamadbah2/silicalab/pkg/logger"
)

type closableStore interface {
	reportingsvc.ReportStore
	Close(ctx context.Context) error
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	store, err := openStore(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init report store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close report store", zap.Error(err))
		}
	}()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.EnsureSchema(schemaCtx)
	cancelSchema()
	if err != nil {
		baseLogger.Fatal("failed to prepare report schema", zap.Error(err))
	}

	var opts []reportingsvc.Option
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		opts = append(opts, reportingsvc.WithMirror(sheets.NewMirror(sheetsRepo)))
		baseLogger.Info("google sheets mirror enabled")
	}

	var notifier notify.Client
	if cfg.Notify.Enabled() {
		notifier = notify.NewClient(cfg.Notify)
		opts = append(opts, reportingsvc.WithNotifier(notifier))
		baseLogger.Info("webhook notifications enabled")
	} else {
		baseLogger.Warn("notify webhook missing, notifications and daily digest disabled")
	}

	pdfRenderer := pdf.NewRenderer(logger.Named(baseLogger, "render.pdf"), pdf.WithFontDir(cfg.Rendering.FontDir))
	reportingSvc := reportingsvc.NewService(store, pdfRenderer, xlsx.NewExporter(), logger.Named(baseLogger, "svc.reporting"), opts...)

	reportHandler := handlers.NewReportHandler(reportingSvc, logger.Named(baseLogger, "handlers.reports"))
	engine := router.New(reportHandler, logger.Named(baseLogger, "router"))

	if notifier != nil {
		sched, err := scheduler.NewScheduler(cfg.Digest, reportingSvc, notifier, logger.Named(baseLogger, "scheduler"))
		if err != nil {
			baseLogger.Fatal("failed to init scheduler", zap.Error(err))
		}
		if err := sched.Start(); err != nil {
			baseLogger.Fatal("failed to start scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) (closableStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		return sqlite.NewRepository(cfg.Storage.SQLitePath, logger.Named(baseLogger, "repo.sqlite"))
	case config.DriverMongoDB:
		return mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
