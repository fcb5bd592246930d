package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	bookingserrors "roombook/internal/bookings/errors"
	apperrors "roombook/pkg/errors"

	"github.com/google/uuid"
)

const (
	lockInitialBackoff = 5 * time.Millisecond
	lockMaxBackoff     = 100 * time.Millisecond
	lockReleaseTimeout = 2 * time.Second
	lockRetryHint      = time.Second

	// maxTxAttempts bounds how often a serialization failure restarts the
	// locked transaction.
	maxTxAttempts = 3
)

// withRoomLock runs fn while holding the serialization point of roomID.
// Acquisition is retried with jittered backoff until LockTimeout elapses.
func (s *bookingService) withRoomLock(ctx context.Context, roomID string, fn func() error) error {
	owner := uuid.NewString()

	if err := s.acquireRoomLock(ctx, roomID, owner); err != nil {
		return err
	}
	defer s.releaseRoomLock(ctx, roomID, owner)

	return fn()
}

func (s *bookingService) acquireRoomLock(ctx context.Context, roomID, owner string) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()

	backoff := lockInitialBackoff
	for {
		err := s.locks.Acquire(lockCtx, roomID, owner, s.cfg.LockTTL)
		if err == nil {
			return nil
		}
		if !errors.Is(err, bookingserrors.ErrLockHeld) && lockCtx.Err() == nil {
			s.cfg.Log.Error("Failed to acquire room lock", "room_id", roomID, "error", err)
			return apperrors.Internal("Failed to acquire room lock", err)
		}

		wait := backoff/2 + time.Duration(rand.Int63n(int64(backoff)))
		timer := time.NewTimer(wait)
		select {
		case <-lockCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return apperrors.Timeout("Request cancelled while waiting for room")
			}
			s.cfg.Log.Warn("Room lock wait timed out", "room_id", roomID, "timeout", s.cfg.LockTimeout)
			return apperrors.Busy("Room is busy with another booking, retry shortly", lockRetryHint)
		case <-timer.C:
		}

		backoff *= 2
		if backoff > lockMaxBackoff {
			backoff = lockMaxBackoff
		}
	}
}

// releaseRoomLock outlives request cancellation so the lock is not left to
// expire on its own.
func (s *bookingService) releaseRoomLock(ctx context.Context, roomID, owner string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()

	if err := s.locks.Release(releaseCtx, roomID, owner); err != nil {
		s.cfg.Log.Warn("Failed to release room lock", "room_id", roomID, "error", err)
	}
}
