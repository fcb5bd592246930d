package main

import (
	"roombook/internal/bookings/events"
	"roombook/internal/bookings/handler"
	"roombook/internal/bookings/repository"
	"roombook/internal/bookings/service"
	"roombook/internal/bookings/validator"
	"roombook/pkg/app"
	"roombook/pkg/client"
	"roombook/pkg/config"
	"roombook/pkg/kafka"
	kafkamiddleware "roombook/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStorage()

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication(ServiceName, cfg)
	bookingService := initServices(cfg, serverApp)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, serverApp *app.Application) service.BookingService {
	bookingService := service.NewBookingService(
		repository.NewBookingRepository(cfg),
		repository.NewRoomLockRepository(cfg),
		newRoomClient(cfg),
		validator.NewBookingValidator(cfg.Log),
		initPublisher(cfg, serverApp),
		cfg,
	)

	cfg.Log.Info("Booking service initialized",
		"storage_driver", cfg.StorageDriver,
		"lock_backend", cfg.LockBackend,
		"rooms_service_url", cfg.RoomsServiceURL,
	)
	return bookingService
}

func newRoomClient(cfg *config.Config) *client.RoomClient {
	opts := []client.HttpOption{client.WithTimeout(cfg.RequestTimeout)}
	if cfg.TracingEnabled {
		opts = append(opts, client.WithTracing())
	}
	return client.NewRoomClient(cfg.RoomsServiceURL, opts...)
}

func initPublisher(cfg *config.Config, serverApp *app.Application) events.Publisher {
	if cfg.Kafka == nil {
		cfg.Log.Warn("KAFKA_BROKERS not set, booking events will not be published")
		return events.NewNoopPublisher()
	}

	producer, err := kafka.NewProducer(cfg.Kafka, cfg.KafkaTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if cfg.Kafka.EnableMiddleware {
		producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	}
	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})
	return events.NewKafkaPublisher(producer, cfg.Log)
}
