// Package main provides the main entry point for the Traffilink dispatch service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/goleador/traffilink-dispatch/app/handlers"
	"github.com/goleador/traffilink-dispatch/app/middleware"
	"github.com/goleador/traffilink-dispatch/app/queue"
	"github.com/goleador/traffilink-dispatch/app/router"
	"github.com/goleador/traffilink-dispatch/app/scheduler"
	"github.com/goleador/traffilink-dispatch/app/services"
	businessflow "github.com/goleador/traffilink-dispatch/business_flow"
	"github.com/goleador/traffilink-dispatch/config"
	"github.com/goleador/traffilink-dispatch/repository"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Traffilink dispatch service...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s", cfg.RedisURL)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeProvider picks the provider client based on configuration
func initializeProvider(cfg config.TraffilinkConfig) services.TraffilinkClient {
	if cfg.Mock {
		log.Println("Using mock Traffilink provider")
		return services.NewMockTraffilinkClient()
	}
	return services.NewHTTPTraffilinkClient(cfg)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	smsRecordRepo := repository.NewSMSRecordRepository(db)
	deliveryReportRepo := repository.NewDeliveryReportRepository(db)
	incomingSMSRepo := repository.NewIncomingSMSRepository(db)
	taskRepo := repository.NewScheduledTaskRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	transactionRepo := repository.NewTransactionLogRepository(db)

	// Initialize services
	provider := initializeProvider(cfg.Traffilink)
	processor := services.NewMessageProcessor()

	// Initialize flows
	dispatchFlow := businessflow.NewDispatchFlow(
		provider,
		processor,
		smsRecordRepo,
		transactionRepo,
		rc,
		db,
	)

	taskFlow := businessflow.NewTaskFlow(taskRepo)

	campaignFlow := businessflow.NewCampaignFlow(
		campaignRepo,
		dispatchFlow,
		processor,
		log.Default(),
	)

	reportFlow := businessflow.NewReportFlow(
		provider,
		smsRecordRepo,
		deliveryReportRepo,
		incomingSMSRepo,
		transactionRepo,
	)

	// Start the send queue
	sendQueue := queue.NewSendQueue(dispatchFlow, queue.Config{
		Capacity:      cfg.Queue.Capacity,
		Workers:       cfg.Queue.Workers,
		MaxAttempts:   cfg.Queue.MaxAttempts,
		RatePerSecond: cfg.Queue.RatePerSecond,
	}, log.Default())
	stopQueue := sendQueue.Start(context.Background())
	stopFuncs = append(stopFuncs, stopQueue)

	// Start the task scheduler
	taskScheduler := scheduler.NewTaskScheduler(taskRepo, dispatchFlow, cfg.Scheduler.PollInterval, cfg.Logging.Dir)
	stopScheduler := taskScheduler.Start(context.Background())
	stopFuncs = append(stopFuncs, stopScheduler)
	log.Printf("Task scheduler started with %s poll interval", taskScheduler.Interval())

	// Initialize handlers
	smsHandler := handlers.NewSMSHandler(dispatchFlow, reportFlow, taskFlow, sendQueue)
	taskHandler := handlers.NewTaskHandler(taskFlow)
	campaignHandler := handlers.NewCampaignHandler(campaignFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Security, rc)

	// Initialize router
	appRouter := router.NewFiberRouter(
		cfg,
		smsHandler,
		taskHandler,
		campaignHandler,
		authMiddleware,
	)

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
