package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"techno-etl-service/internal/cache"
	"techno-etl-service/internal/clients"
	"techno-etl-service/internal/config"
	"techno-etl-service/internal/database/badgerdb"
	"techno-etl-service/internal/database/mongo"
	"techno-etl-service/internal/database/redis"
	"techno-etl-service/internal/event"
	"techno-etl-service/internal/handlers"
	"techno-etl-service/internal/middleware"
	"techno-etl-service/internal/repository"
	"techno-etl-service/internal/service"
	"techno-etl-service/pkg/discovery"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/techno-etl", "log", "techno_etl_service")
	err := os.MkdirAll(logDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.ServiceConfig

	if err := mongo.Connect(cfg.MongoDB); err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongo.Disconnect()

	redis.Connect(cfg.Redis)
	defer redis.Disconnect()

	localDB, err := badgerdb.Open(cfg.Local)
	if err != nil {
		log.Fatalf("Failed to open local settings store: %v", err)
	}
	defer localDB.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"*"},
	}))

	app.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Techno ETL Service is healthy")
	})

	// Initialize repositories
	localRepo := repository.NewLocalSettingsRepository(localDB)
	userSettingsRepo := repository.NewUserSettingsRepository(mongo.Mongo_Database)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := userSettingsRepo.CreateIndexes(ctx); err != nil {
		log.Printf("Warning: Failed to create user settings indexes: %v", err)
	}
	cancel()

	// Event surface: in-process bus plus the RabbitMQ bridge
	bus := event.NewBus()

	eventPublisher, err := event.NewEventPublisher(cfg.RabbitMQ.URI)
	if err != nil {
		log.Printf("Warning: Failed to initialize event publisher: %v", err)
		eventPublisher, _ = event.NewEventPublisher("")
	}

	eventConsumer, err := event.NewEventConsumer(cfg.RabbitMQ.URI, bus)
	if err != nil {
		log.Printf("Warning: Failed to initialize event consumer: %v", err)
	} else {
		if err := eventConsumer.Start(); err != nil {
			log.Printf("Warning: Failed to start event consumer: %v", err)
			eventConsumer.Close()
		} else {
			log.Println("Successfully started user event consumer")
			defer eventConsumer.Close()
		}
	}

	// Initialize services
	hostTheme := service.NewHostThemeSource()
	effectsService := service.NewEffectsService(bus, hostTheme)
	settingsService := service.NewSettingsService(localRepo, userSettingsRepo, effectsService, bus, eventPublisher)
	defer settingsService.Close()

	themeObserver := service.NewThemeObserver(bus, effectsService)
	localeObserver := service.NewLocaleObserver(bus, effectsService)
	gridObserver := service.NewGridObserver(bus, settingsService.GetSnapshot())
	defer themeObserver.Close()
	defer localeObserver.Close()
	defer gridObserver.Close()

	magentoClient := clients.NewMagentoClient(cfg.Magento.BaseURL, cfg.Magento.APIKey)
	mdmClient := clients.NewMDMClient(cfg.MDM.BaseURL, cfg.MDM.APIKey)

	dashboardCache := cache.New()
	dashboardService := service.NewDashboardService(magentoClient, dashboardCache)
	stockSyncService := service.NewStockSyncService(mdmClient, dashboardService, bus, eventPublisher)

	// Initialize and register handlers
	authService := middleware.NewAuthService(cfg.JWT.Secret, redis.Redis_Client)
	authRequired := middleware.AuthRequired(authService)

	settingsHandler := handlers.NewSettingsHandler(settingsService, effectsService, hostTheme, themeObserver, localeObserver, gridObserver)
	settingsHandler.RegisterRoutes(app, authRequired)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	dashboardHandler.RegisterRoutes(app, authRequired)
	syncHandler := handlers.NewSyncHandler(stockSyncService, mdmClient)
	syncHandler.RegisterRoutes(app, authRequired)

	// Register with service discovery
	serviceRegistry, err := discovery.NewServiceRegistry(cfg)
	if err != nil {
		log.Printf("Warning: Failed to create service registry: %v", err)
	} else if err := serviceRegistry.Register(); err != nil {
		log.Printf("Warning: Failed to register with Consul: %v", err)
	}

	shutdownChan := make(chan os.Signal, 1)
	doneChan := make(chan bool, 1)

	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := app.Listen(fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
		doneChan <- true
	}()

	<-shutdownChan
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	if eventPublisher != nil {
		if err := eventPublisher.Close(); err != nil {
			log.Printf("Error closing event publisher: %v", err)
		}
	}

	if serviceRegistry != nil {
		if err := serviceRegistry.Deregister(); err != nil {
			log.Printf("Error deregistering from service discovery: %v", err)
		}
	}

	<-doneChan
	log.Println("Server shutdown complete")
}
