package main

import (
	"context"

	"unimarket/internal/bookings/events"
	"unimarket/internal/bookings/handler"
	"unimarket/internal/bookings/repository"
	"unimarket/internal/bookings/service"
	"unimarket/internal/bookings/validator"
	catalog "unimarket/internal/events"
	"unimarket/internal/gateway"
	"unimarket/internal/notification"
	"unimarket/pkg/app"
	"unimarket/pkg/config"
	"unimarket/pkg/kafka"
	kafka_config "unimarket/pkg/kafka/config"
	kafka_middleware "unimarket/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Bookings service")

	bookingHandler := initServices(cfg)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(bookingHandler)
	serverApp.Run()
}

func initServices(cfg *config.Config) *handler.BookingHandler {
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	if err := bookingRepo.EnsureIndexes(context.Background()); err != nil {
		cfg.Log.Fatal("Failed to create booking indexes", "error", err)
	}

	bookingValidator := validator.NewBookingValidator(cfg.Log)
	eventCatalog := catalog.NewCatalog()
	paymentGateway := gateway.NewClient(cfg)
	permitMailer := notification.NewPermitMailer(cfg)

	publisher := initPublisher(cfg)

	bookingService := service.NewBookingService(
		bookingRepo,
		paymentGateway,
		eventCatalog,
		bookingValidator,
		publisher,
		cfg,
	)
	reconciler := service.NewReconciler(bookingRepo, paymentGateway, permitMailer, cfg)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return handler.NewBookingHandler(bookingService, reconciler, eventCatalog, cfg.Log)
}

// initPublisher wires the booking event producer. The service runs fine
// without Kafka; the auditor's sweep covers any booking whose event was
// never published.
func initPublisher(cfg *config.Config) *events.Publisher {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Warn("Kafka configuration invalid, events disabled", "error", err)
		return nil
	}

	producer, err := kafka.NewProducer(kafkaCfg, events.TopicBookingInitiated, events.TopicBookingInitiatedDLQ)
	if err != nil {
		cfg.Log.Warn("Kafka producer unavailable, events disabled", "error", err)
		return nil
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	return events.NewPublisher(producer, ServiceName, cfg.Log)
}
