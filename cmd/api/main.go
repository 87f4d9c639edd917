package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"manuscript-workflow-api/config"
	"manuscript-workflow-api/controllers"
	"manuscript-workflow-api/middleware"
	"manuscript-workflow-api/routes"
	"manuscript-workflow-api/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, logFile, err := config.InitLogging(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	defer logger.Sync()

	// Initialize database
	db, err := config.InitDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database initialization failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to get sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := config.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	var locker services.Locker = services.NewKeyedLocker()
	if cfg.Redis.Enabled() {
		rdb, err := config.NewRedisClient(cfg.Redis, logger)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()
		locker = services.NewRedisLocker(rdb, cfg.Workflow.LockTTL, logger)
		logger.Info("using redis manuscript locks")
	} else {
		logger.Info("using in-process manuscript locks")
	}

	var dispatcher services.Dispatcher
	if cfg.SMTP.Disabled {
		logger.Warn("SMTP_DISABLED is set, notices will only be logged")
		dispatcher = services.NewLogDispatcher(logger)
	} else {
		dispatcher = services.NewMailDispatcher(config.NewMailer(cfg.SMTP))
	}

	repo := services.NewManuscriptRepository(db)
	directory := services.NewStaffDirectory(db)
	workflow := services.NewWorkflowService(repo, directory, dispatcher, locker, logger,
		services.WithLockWait(cfg.Workflow.LockWait),
	)
	query := services.NewQueryService(repo, cfg.Workflow.PageSize)
	export := services.NewExportService(query, logger)

	// Set Gin mode
	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowOrigins))

	routes.SetupRoutes(router, routes.Handlers{
		Manuscripts: controllers.NewManuscriptController(workflow, query, export),
		Staff:       controllers.NewStaffController(directory),
	}, cfg.Auth.JWTSecret)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("gin_mode", gin.Mode()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shut down", zap.Error(err))
	}
}
