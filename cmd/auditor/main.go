package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"unimarket/internal/auditor"
	"unimarket/internal/bookings/events"
	"unimarket/internal/bookings/repository"
	"unimarket/internal/bookings/service"
	"unimarket/internal/gateway"
	"unimarket/internal/notification"
	"unimarket/pkg/config"
	"unimarket/pkg/kafka"
	kafka_config "unimarket/pkg/kafka/config"
	kafka_middleware "unimarket/pkg/kafka/middleware"
)

const (
	ServiceName   = "auditor"
	ConsumerGroup = "unimarket-auditor"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Auditor service")

	bookingRepo := repository.NewMongoBookingRepository(cfg)
	paymentGateway := gateway.NewClient(cfg)
	permitMailer := notification.NewPermitMailer(cfg)
	reconciler := service.NewReconciler(bookingRepo, paymentGateway, permitMailer, cfg)

	worker := auditor.New(reconciler, cfg.AuditInterval, cfg.AuditBatchSize, cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := initConsumer(cfg, worker)
	if consumer != nil {
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				cfg.Log.Error("Kafka consumer stopped", "error", err)
			}
		}()
		defer func() {
			if err := consumer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka consumer", "error", err)
			}
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Auditor stopped", "error", err)
	}

	cfg.Log.Info("Auditor shut down gracefully")
}

// initConsumer wires the booking-initiated consumer. The auditor degrades
// to sweep-only mode when Kafka is not configured.
func initConsumer(cfg *config.Config, worker *auditor.Auditor) *kafka.Consumer {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Warn("Kafka configuration invalid, running sweep-only", "error", err)
		return nil
	}

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		events.TopicBookingInitiated,
		ConsumerGroup,
		events.TopicBookingInitiatedDLQ,
		worker.HandleInitiated,
	)
	if err != nil {
		cfg.Log.Warn("Kafka consumer unavailable, running sweep-only", "error", err)
		return nil
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))

	return consumer
}
