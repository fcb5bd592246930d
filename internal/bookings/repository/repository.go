package repository

import "roombook/pkg/config"

// NewBookingRepository picks the store named by STORAGE_DRIVER.
func NewBookingRepository(cfg *config.Config) BookingRepository {
	if cfg.StorageDriver == config.DriverPostgres {
		return NewPostgresBookingRepository(cfg)
	}
	return NewMongoBookingRepository(cfg)
}

func NewRoomLockRepository(cfg *config.Config) RoomLockRepository {
	switch cfg.LockBackend {
	case config.DriverPostgres:
		return NewPostgresRoomLockRepository(cfg)
	case config.DriverRedis:
		return NewRedisRoomLockRepository(cfg)
	default:
		return NewMongoRoomLockRepository(cfg)
	}
}
