package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "partsreserve/api/swagger" // swagger docs
	"partsreserve/internal/config"
	"partsreserve/internal/database"
	"partsreserve/internal/handler"
	"partsreserve/internal/lock"
	"partsreserve/internal/logger"
	"partsreserve/internal/middleware"
	"partsreserve/internal/notify"
	"partsreserve/internal/repository"
	"partsreserve/internal/service"
	"partsreserve/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Parts Reservation API
// @version         1.0
// @description     Stock ledger and reservation lifecycle for a parts inventory.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	gin.SetMode(cfg.Server.GinMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}
	log.Info("database ready", zap.String("driver", cfg.Database.Driver))

	closers := make([]func() error, 0, 2)

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run(ctx)

	notifiers := notify.Multi{notify.NewHubNotifier(wsHub, log)}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		notifiers = append(notifiers, kafkaNotifier)
		closers = append(closers, kafkaNotifier.Close)
		log.Info("events: kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var locker lock.Locker = lock.NoopLocker{}
	if cfg.Redis.Addr != "" {
		redisLocker := lock.NewRedisLocker(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisLocker.Ping(pingCtx)
		pingCancel()
		if err != nil {
			log.Warn("redis unavailable, sweeper runs without a distributed lock", zap.Error(err))
			_ = redisLocker.Close()
		} else {
			locker = redisLocker
			closers = append(closers, redisLocker.Close)
			log.Info("sweep lock: redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	productRepo := repository.NewProductRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	settingsService := service.NewSettingsService(settingsRepo, auditRepo, txManager, log)
	ledgerService := service.NewLedgerService(productRepo, movementRepo, auditRepo, txManager, notifiers, log)
	reservationService := service.NewReservationService(
		reservationRepo, productRepo, auditRepo, txManager, ledgerService, settingsService, notifiers, log,
	)
	verificationService := service.NewVerificationService(reservationRepo, reservationService, log)
	auditService := service.NewAuditService(auditRepo)
	sweeper := service.NewSweeper(
		reservationRepo, reservationService, auditRepo, notifiers, locker,
		cfg.Sweeper.Interval, cfg.Sweeper.LockTTL, log,
	)
	if cfg.Sweeper.Enabled {
		go sweeper.Start(ctx)
	}

	verifyLimiter, err := middleware.RateLimit(cfg.RateLimit.Verify, log)
	if err != nil {
		log.Fatal("invalid verify rate limit", zap.String("rate", cfg.RateLimit.Verify), zap.Error(err))
	}

	// Initialize Handlers
	reservationHandler := handler.NewReservationHandler(reservationService, verificationService, sweeper, verifyLimiter)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	inventoryHandler := handler.NewInventoryHandler(ledgerService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.New()
	router.Use(middleware.RequestLogger(log), gin.Recovery())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	secret := []byte(cfg.Auth.JWTSecret)

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	// API Routing
	api := router.Group("/api", middleware.Authenticate(secret))
	reservationHandler.RegisterRoutes(api)
	settingsHandler.RegisterRoutes(api)
	inventoryHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	cancel()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error("close error", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("server stopped")
}
