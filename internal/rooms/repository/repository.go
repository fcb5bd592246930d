package repository

import "roombook/pkg/config"

// NewRoomRepository picks the store named by STORAGE_DRIVER.
func NewRoomRepository(cfg *config.Config) RoomRepository {
	if cfg.StorageDriver == config.DriverPostgres {
		return NewPostgresRoomRepository(cfg)
	}
	return NewMongoRoomRepository(cfg)
}

// NewBookingProbe reads the booking store shared with the bookings service.
func NewBookingProbe(cfg *config.Config) BookingProbe {
	if cfg.StorageDriver == config.DriverPostgres {
		return NewPostgresBookingProbe(cfg)
	}
	return NewMongoBookingProbe(cfg)
}
