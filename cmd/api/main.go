package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mes-platform/route-execution-service/internal/application"
	"github.com/mes-platform/route-execution-service/internal/domain"
	"github.com/mes-platform/route-execution-service/internal/infrastructure/blobstore"
	mongoRepo "github.com/mes-platform/route-execution-service/internal/infrastructure/mongodb"
	"github.com/mes-platform/route-execution-service/internal/infrastructure/seed"
	"github.com/mes-platform/route-execution-service/pkg/kafka"
	"github.com/mes-platform/route-execution-service/pkg/logging"
	"github.com/mes-platform/route-execution-service/pkg/metrics"
	"github.com/mes-platform/route-execution-service/pkg/middleware"
	"github.com/mes-platform/route-execution-service/pkg/mongodb"
	"github.com/mes-platform/route-execution-service/pkg/outbox"
	outboxMongo "github.com/mes-platform/route-execution-service/pkg/outbox/mongodb"
)

const serviceName = "route-execution-service"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting route-execution-service API")

	config := loadConfig()
	ctx := context.Background()

	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)

	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	protectedMongo := mongodb.NewCircuitBreakerClient(mongoClient, m, logger)
	defer protectedMongo.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	kafkaProducer := kafka.NewProducer(config.Kafka)
	instrumentedProducer := kafka.NewInstrumentedProducer(kafkaProducer, m, logger)
	defer instrumentedProducer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	db := protectedMongo.Database()

	templateRepo := mongoRepo.NewRouteTemplateRepository(db)
	assignmentRepo := mongoRepo.NewRouteAssignmentRepository(db)
	instanceRepo := mongoRepo.NewRouteInstanceRepository(db)
	orderRepo := mongoRepo.NewOrderRepository(db)
	captureRepo := mongoRepo.NewCaptureRepository(db)
	activityRepo := mongoRepo.NewActivityLogRepository(db)
	reworkRepo := mongoRepo.NewReworkRepository(db)

	outboxPublisher := outbox.NewPublisher(
		outboxMongo.NewOutboxRepository(db),
		instrumentedProducer,
		logger,
		&outbox.PublisherConfig{
			PollInterval: 1 * time.Second,
			BatchSize:    100,
		},
	)
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()
	logger.Info("Outbox publisher started")

	blobs, err := blobstore.NewLocalStore(config.BlobRoot)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize blob store")
		os.Exit(1)
	}

	clock := domain.SystemClock{}
	roles := domain.NewStaticRoleChecker()

	catalogService := application.NewCatalogService(templateRepo, assignmentRepo, instanceRepo, clock, logger)
	executionService := application.NewExecutionService(
		orderRepo, instanceRepo, templateRepo, assignmentRepo,
		captureRepo, activityRepo, roles, blobs, clock, m, logger,
	)
	reworkService := application.NewReworkService(
		reworkRepo, orderRepo, instanceRepo, activityRepo, roles, clock, m, logger,
	)

	if config.SeedFile != "" {
		loader := seed.NewLoader(catalogService, logger)
		if err := loader.LoadFile(ctx, config.SeedFile); err != nil {
			logger.WithError(err).Error("Failed to load seed file", "path", config.SeedFile)
			os.Exit(1)
		}
	}

	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return protectedMongo.HealthCheck(ctx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	registerRoutes(router, catalogService, executionService, reworkService, logger)

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr string
	BlobRoot   string
	SeedFile   string
	MongoDB    *mongodb.Config
	Kafka      *kafka.Config
}

func loadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8012"),
		BlobRoot:   getEnv("BLOB_ROOT", "./data/blobs"),
		SeedFile:   getEnv("SEED_TEMPLATES_FILE", ""),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "route_execution"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		Kafka: &kafka.Config{
			Brokers:      []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			ClientID:     serviceName,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: -1,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
