package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fyp-track-api/internal/models"
	"github.com/noah-isme/fyp-track-api/internal/repository"
	"github.com/noah-isme/fyp-track-api/internal/service"
	"github.com/noah-isme/fyp-track-api/pkg/cache"
	"github.com/noah-isme/fyp-track-api/pkg/config"
	"github.com/noah-isme/fyp-track-api/pkg/database"
	appErrors "github.com/noah-isme/fyp-track-api/pkg/errors"
	"github.com/noah-isme/fyp-track-api/pkg/jobs"
	"github.com/noah-isme/fyp-track-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/fyp-track-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/fyp-track-api/pkg/middleware/requestid"
	"github.com/noah-isme/fyp-track-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}

	blobs, err := storage.NewLocalBlobStore(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init blob store", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Catalog.SignedURLSecret, cfg.Catalog.SignedURLTTL)

	users := repository.NewUserRepository(db)
	departments := repository.NewDepartmentRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	projects := repository.NewProjectRepository(db)
	projectFiles := repository.NewProjectFileRepository(db)
	archives := repository.NewArchiveRepository(db)
	notifications := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metrics := service.NewMetricsService()
	notificationSvc := service.NewNotificationService(notifications, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
	})
	catalogSvc := service.NewCatalogService(archives, cacheRepo, signer, cfg.Catalog.CacheTTL, logr)
	retentionSvc := service.NewRetentionService(
		projects, projectFiles, users, departments, assignments, archives,
		blobs, cacheRepo, metrics, logr,
		cfg.Retention.Window, cfg.Retention.SweepInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	if cfg.Retention.Enabled {
		retentionSvc.Start(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	catalog := r.Group(cfg.APIPrefix + "/catalog")
	catalog.GET("", func(c *gin.Context) {
		page, _ := strconv.Atoi(c.Query("page"))
		pageSize, _ := strconv.Atoi(c.Query("page_size"))
		year, _ := strconv.Atoi(c.Query("year"))
		result, err := catalogSvc.Search(c.Request.Context(), models.ArchiveFilter{
			Search:   c.Query("search"),
			Category: c.Query("category"),
			Year:     year,
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})
	catalog.GET("/:id", func(c *gin.Context) {
		archive, err := catalogSvc.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, archive)
	})
	catalog.GET("/:id/download", func(c *gin.Context) {
		grant, err := catalogSvc.GrantDownload(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, grant)
	})
	r.GET(cfg.APIPrefix+"/download", func(c *gin.Context) {
		location, err := catalogSvc.ResolveDownload(c.Request.Context(), c.Query("token"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.File(blobs.Path(location))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func respondError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.JSON(appErr.Status, gin.H{"error": gin.H{"code": appErr.Code, "message": appErr.Message}})
}
