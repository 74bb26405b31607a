package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"document-service/internal/api/handlers"
	"document-service/internal/config"
	"document-service/internal/database/mongo"
	"document-service/internal/database/redis"
	"document-service/internal/events"
	"document-service/internal/logger"
	"document-service/internal/middleware"
	"document-service/internal/repository"
	"document-service/internal/service"
	"document-service/internal/storage"
	"document-service/pkg/discovery"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize MongoDB
	mongoClient, db, err := mongo.Connect(ctx, cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to initialize MongoDB", "error", err)
	}
	defer func() {
		if err := mongo.Close(mongoClient); err != nil {
			log.Error("Error disconnecting MongoDB", "error", err)
		}
	}()

	assetRepository := repository.NewAssetRepository(db, cfg.MongoDB.Collection, log)
	if err := assetRepository.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create asset indexes", "error", err)
	}

	// Initialize object storage
	gateway, err := storage.New(ctx, cfg.Storage.Gateway(), log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", "error", err)
	}

	// Initialize event publisher
	var publisher service.EventPublisher
	eventPublisher, err := events.NewEventPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange, log)
	if err != nil {
		log.Warn("Failed to initialize event publisher", "error", err)
	} else {
		publisher = eventPublisher
		defer eventPublisher.Close()
	}

	documentService := service.NewDocumentService(gateway, assetRepository, publisher, log)

	// Initialize event consumer
	eventConsumer, err := events.NewEventConsumer(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, documentService, log)
	if err != nil {
		log.Warn("Failed to initialize event consumer", "error", err)
	} else if err := eventConsumer.Start(); err != nil {
		log.Warn("Failed to start event consumer", "error", err)
		eventConsumer.Close()
	} else {
		defer eventConsumer.Close()
	}

	// Upload rate limiting is optional and needs Redis
	var uploadLimiter fiber.Handler
	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Failed to connect to Redis, upload rate limiting is disabled", "error", err)
	} else if redisClient != nil {
		defer redisClient.Close()
		limiter := middleware.NewRateLimiter(repository.NewRedisRepo(redisClient), "upload", cfg.Redis.UploadLimit, cfg.Redis.UploadWindow, log)
		uploadLimiter = limiter.Handler(middleware.ByUserOrIP)
	}

	// Initialize service discovery
	if cfg.Consul.Address != "" {
		serviceRegistry, err := discovery.NewServiceRegistry(
			cfg.Consul.Address,
			cfg.Server.ServiceName,
			cfg.Server.ServiceID,
			cfg.Server.Host,
			cfg.Server.Port,
		)
		if err != nil {
			log.Warn("Failed to initialize service discovery", "error", err)
		} else if err := serviceRegistry.Register(); err != nil {
			log.Warn("Failed to register with Consul", "error", err)
		} else {
			log.Info("Registered with Consul", "service_id", cfg.Server.ServiceID)
			defer serviceRegistry.Deregister()
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))

	handlers.RegisterHealthRoutes(app)
	handlers.NewDocumentHandler(documentService, uploadLimiter, log).RegisterRoutes(app)

	shutdownChan := make(chan os.Signal, 1)
	doneChan := make(chan struct{})
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Info("Starting server", "addr", addr, "storage_mode", gateway.Mode())
		if err := app.Listen(addr); err != nil {
			log.Error("Error starting server", "error", err)
		}
		close(doneChan)
	}()

	select {
	case <-shutdownChan:
	case <-doneChan:
		return
	}
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	<-doneChan
	log.Info("Server exited, goodbye!")
}
