package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flipradar/internal/alerts"
	"flipradar/internal/confidence"
	"flipradar/internal/config"
	"flipradar/internal/costs"
	cronrunner "flipradar/internal/cron"
	"flipradar/internal/db"
	"flipradar/internal/engine"
	"flipradar/internal/fees"
	"flipradar/internal/handler"
	"flipradar/internal/logger"
	"flipradar/internal/notify"
	gormrepository "flipradar/internal/repository/gorm"
)

func main() {
	cfgPath := os.Getenv("FR_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("FR_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	feeTable := fees.NewTable(cfg.Fees)
	feed := notify.NewFeed(cfg.Engine.FeedBuffer, logger)

	eng := &engine.Engine{
		Repo:            store,
		Fees:            feeTable,
		Costs:           costs.ParamsFromConfig(cfg.Costs),
		Scorer:          confidence.Scorer{StalenessWindow: cfg.Engine.StalenessWindow},
		Bus:             feed,
		Logger:          logger,
		StalenessWindow: cfg.Engine.StalenessWindow,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Alerts.Enabled {
		dispatcher := &alerts.Dispatcher{
			Repo:   store,
			Mailer: alerts.LogMailer{Logger: logger, From: cfg.Alerts.FromEmail},
			Logger: logger,
		}
		events, cancel := feed.Subscribe()
		defer cancel()
		go dispatcher.Run(ctx, events)
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(router)
	oppHandler := &handler.OpportunityHandler{Repo: store, StalenessWindow: cfg.Engine.StalenessWindow}
	oppHandler.Register(router)
	listingHandler := &handler.ListingHandler{Repo: store}
	listingHandler.Register(router)
	productHandler := &handler.ProductHandler{Repo: store}
	productHandler.Register(router)
	alertHandler := &handler.AlertSettingHandler{Repo: store}
	alertHandler.Register(router)
	dashboardHandler := &handler.DashboardHandler{Repo: store}
	dashboardHandler.Register(router)
	ingestHandler := &handler.IngestHandler{Repo: store, Engine: eng}
	ingestHandler.Register(router)
	streamHandler := &handler.StreamHandler{Feed: feed, Logger: logger}
	streamHandler.Register(router)

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		_, err = cronRunner.Add(cfg.Cron.Refresh, func(ctx context.Context) {
			summary, err := eng.RefreshAll(ctx)
			if err != nil {
				logger.Warn("cron refresh failed", zap.Error(err))
				return
			}
			logger.Info("cron refresh ok",
				zap.Int("listings", summary.Listings),
				zap.Int("created", summary.Created),
				zap.Int("updated", summary.Updated),
				zap.Int("failed", summary.Failed),
			)
		})
		if err != nil {
			logger.Warn("cron register refresh failed", zap.Error(err))
		}
		_, err = cronRunner.Add(cfg.Cron.CloseOut, func(ctx context.Context) {
			n, err := store.CloseExpiredListings(ctx, time.Now().UTC())
			if err != nil {
				logger.Warn("cron close-out failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("closed expired listings", zap.Int64("count", n))
			}
		})
		if err != nil {
			logger.Warn("cron register close-out failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
