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

	"github.com/segmentio/kafka-go"
	"github.com/yape-transaction-pipeline/internal/anti_fraud"
	"github.com/yape-transaction-pipeline/internal/anti_fraud/consumer"
	"github.com/yape-transaction-pipeline/internal/anti_fraud/rule"
	"github.com/yape-transaction-pipeline/internal/anti_fraud/service"
	"github.com/yape-transaction-pipeline/internal/config"
	"github.com/yape-transaction-pipeline/internal/logger"
	"github.com/yape-transaction-pipeline/internal/platform/health"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/consumers"
	"github.com/yape-transaction-pipeline/internal/platform/messaging/producers"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
	"github.com/yape-transaction-pipeline/internal/platform/workerpool"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("anti_fraud")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Anti-Fraud service",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"threshold", cfg.AntiFraud.ThresholdAmount().String(),
	)

	var recorder metrics.Recorder = metrics.NoOp{}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		prom, err := metrics.NewPrometheus("anti_fraud")
		if err != nil {
			log.Error("Failed to initialize metrics", "error", err)
			os.Exit(1)
		}
		recorder = prom
		metricsHandler = prom.Handler()
	}

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

	evaluationService := service.NewEvaluationService(
		log,
		rule.NewThresholdRule(cfg.AntiFraud.ThresholdAmount()),
		publisher,
		cfg.Kafka.ValidatedTopic,
		recorder,
	)
	createdHandler := consumer.NewCreatedEventHandler(log, evaluationService, dlq, recorder, cfg.Kafka.CreatedTopic)

	checks := map[string]health.CheckFunc{
		"kafka": func(ctx context.Context) error {
			conn, err := kafka.DialContext(ctx, "tcp", cfg.Kafka.BrokerList()[0])
			if err != nil {
				return err
			}
			return conn.Close()
		},
		"circuit_breaker": publisher.HealthCheck,
	}
	server := anti_fraud.NewServer(log, cfg, checks, metricsHandler)

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
			"topic", cfg.Kafka.CreatedTopic,
			"group", cfg.Kafka.AntiFraudGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.CreatedTopic, cfg.Kafka.AntiFraudGroup, pool.Wrap(createdHandler.HandleMessage)); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

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
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", "error", err)
	}

	cancelAppCtx()

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("Kafka consumer stopped")
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

	if serviceErr != nil {
		log.Error("Anti-Fraud service shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Anti-Fraud service shutdown completed successfully")
}
