package main

import (
	"roombook/internal/rooms/handler"
	"roombook/internal/rooms/repository"
	"roombook/internal/rooms/service"
	"roombook/internal/rooms/validator"
	"roombook/pkg/app"
	"roombook/pkg/config"
)

const ServiceName = "rooms"

func main() {
	cfg := config.Load(ServiceName)
	// Rooms never take room locks, so only the storage driver is connected.
	if cfg.StorageDriver == config.DriverPostgres {
		cfg.SetPostgres()
	} else {
		cfg.SetMongo()
	}

	cfg.Log.Info("Starting Rooms service")
	roomService := initServices(cfg)
	serverApp := app.NewApplication(ServiceName, cfg)
	serverApp.SetApp(handler.NewRoomHandler(roomService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.RoomService {
	roomService := service.NewRoomService(
		repository.NewRoomRepository(cfg),
		repository.NewBookingProbe(cfg),
		validator.NewRoomValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Room service initialized", "storage_driver", cfg.StorageDriver)
	return roomService
}
