package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yape-transaction-pipeline/internal/config"
	"github.com/yape-transaction-pipeline/internal/data/mongo"
	"github.com/yape-transaction-pipeline/internal/data/postgres"
	rediscache "github.com/yape-transaction-pipeline/internal/data/redis"
	"github.com/yape-transaction-pipeline/internal/logger"
	"github.com/yape-transaction-pipeline/internal/platform/health"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/consumers"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
	"github.com/yape-transaction-pipeline/internal/platform/persistence"
	"github.com/yape-transaction-pipeline/internal/platform/workerpool"
	"github.com/yape-transaction-pipeline/internal/transaction_api"
	"github.com/yape-transaction-pipeline/internal/transaction_api/components"
	"github.com/yape-transaction-pipeline/internal/transaction_api/consumer"
	"github.com/yape-transaction-pipeline/internal/transaction_api/outbox_poller"
	"github.com/yape-transaction-pipeline/internal/transaction_api/service"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("transaction_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Transaction API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"outbox_enabled", cfg.Outbox.Enabled,
	)

	var recorder metrics.Recorder = metrics.NoOp{}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		prom, err := metrics.NewPrometheus("transaction_api")
		if err != nil {
			log.Error("Failed to initialize metrics", "error", err)
			os.Exit(1)
		}
		recorder = prom
		metricsHandler = prom.Handler()
	}

	// Stores
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisClient, err := rediscache.NewClient(appCtx, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	journalRepo := mongo.NewEventJournalRepository(log, mongoDB.Database())
	if err := journalRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create event journal indexes", "error", err)
		os.Exit(1)
	}
	transactionCache := rediscache.NewTransactionCache(log, redisClient, cfg.Redis.CacheTTL)

	// Messaging
	topics := []string{cfg.Kafka.CreatedTopic, cfg.Kafka.ValidatedTopic}
	if cfg.Kafka.DLQTopic != "" {
		topics = append(topics, cfg.Kafka.DLQTopic)
	}
	if err := producers.EnsureTopics(appCtx, log, &cfg.Kafka, topics...); err != nil {
		log.Error("Failed to ensure Kafka topics", "error", err)
		os.Exit(1)
	}

	eventProducer := producers.NewEventProducer(log, &cfg.Kafka, recorder)
	publisher := producers.NewBreakerPublisher(log, eventProducer, &cfg.CircuitBreaker, recorder)

	// dlqProducer is nil when no DLQ topic is configured
	dlqProducer := producers.NewDLQProducer(log, &cfg.Kafka)
	var dlq producers.DeadLetterPublisher
	if dlqProducer != nil {
		dlq = dlqProducer
	}

	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, dlq, recorder)

	pool, err := workerpool.New(cfg.WorkerPool.Size, log)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Services
	transactionService := components.CreateTransactionService(
		log,
		cfg,
		postgresDB,
		transactionRepo,
		outboxRepo,
		journalRepo,
		transactionCache,
		publisher,
		recorder,
	)
	reconciliationService := service.NewReconciliationService(log, transactionRepo, journalRepo, transactionCache, recorder)
	validatedHandler := consumer.NewValidatedEventHandler(log, reconciliationService, dlq, recorder, cfg.Kafka.ValidatedTopic)

	checks := map[string]health.CheckFunc{
		"postgres": postgresDB.Ping,
		"mongodb":  mongoDB.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		"circuit_breaker": publisher.HealthCheck,
	}
	server := transaction_api.NewServer(log, cfg, transactionService, checks, metricsHandler)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.ValidatedTopic,
			"group", cfg.Kafka.TransactionGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.ValidatedTopic, cfg.Kafka.TransactionGroup, pool.Wrap(validatedHandler.HandleMessage)); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	if cfg.Outbox.Enabled {
		relay := outbox_poller.NewEventRelay(log, outboxRepo, publisher)
		poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, relay, log, recorder)

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("Starting Outbox Poller",
				"interval", cfg.Outbox.PollingInterval.String(),
				"batch_size", cfg.Outbox.BatchSize,
				"grace", cfg.Outbox.PublishGrace.String(),
			)
			poller.Start(appCtx)
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop taking new requests before the background loops go away
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	pool.Shutdown()

	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}
	if err := publisher.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}
	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if err := redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}
	postgresDB.Close()
	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Transaction API shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Transaction API shutdown completed successfully")
}
