package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/internal/bookings/interval"
	"roombook/pkg/client"
	"roombook/pkg/model"
)

// memRepo is a goroutine-safe in-memory BookingRepository.
type memRepo struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
	seq      int

	overlapCalls atomic.Int32
	txCalls      atomic.Int32
	createErr    error
	// createErrs fail the next calls to Create, one entry each, before
	// createErr is consulted.
	createErrs []error
}

func newMemRepo() *memRepo {
	return &memRepo{bookings: map[string]*model.Booking{}}
}

func (r *memRepo) Create(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		return err
	}
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	b.ID = fmt.Sprintf("b%03d", r.seq)
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	stored := *b
	r.bookings[b.ID] = &stored
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	out := *b
	return &out, nil
}

func (r *memRepo) FindOverlapping(_ context.Context, roomID string, iv interval.Interval) ([]*model.Booking, error) {
	r.overlapCalls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.bookings {
		if b.RoomID == roomID && b.IsActive() && b.StartTime.Before(iv.End) && b.EndTime.After(iv.Start) {
			c := *b
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memRepo) FindAll(_ context.Context, f model.BookingFilter) ([]*model.Booking, error) {
	matches := r.matching(f)
	if int(f.Offset) >= len(matches) {
		return []*model.Booking{}, nil
	}
	matches = matches[f.Offset:]
	if f.Limit > 0 && len(matches) > f.Limit {
		matches = matches[:f.Limit]
	}
	return matches, nil
}

func (r *memRepo) Count(_ context.Context, f model.BookingFilter) (int64, error) {
	return int64(len(r.matching(f))), nil
}

func (r *memRepo) matching(f model.BookingFilter) []*model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.bookings {
		if f.OwnerID != "" && b.OwnerID != f.OwnerID {
			continue
		}
		if f.RoomID != "" && b.RoomID != f.RoomID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memRepo) Update(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[b.ID]; !ok {
		return bookingserrors.ErrNotFound
	}
	stored := *b
	r.bookings[b.ID] = &stored
	return nil
}

func (r *memRepo) ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.txCalls.Add(1)
	return fn(ctx)
}

func (r *memRepo) active(roomID string) []*model.Booking {
	return r.matching(model.BookingFilter{RoomID: roomID, Status: model.BookingStatusActive})
}

// memLocks is a keyed lock table with the same contract as the stores.
type memLocks struct {
	mu         sync.Mutex
	owners     map[string]string
	alwaysHeld bool
}

func newMemLocks() *memLocks {
	return &memLocks{owners: map[string]string{}}
}

func (l *memLocks) Acquire(_ context.Context, roomID, owner string, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.alwaysHeld {
		return bookingserrors.ErrLockHeld
	}
	if _, held := l.owners[roomID]; held {
		return bookingserrors.ErrLockHeld
	}
	l.owners[roomID] = owner
	return nil
}

func (l *memLocks) Release(_ context.Context, roomID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owners[roomID] == owner {
		delete(l.owners, roomID)
	}
	return nil
}

type fakeRooms struct {
	rooms   []*model.Room
	getFunc func(ctx context.Context, id string) (*model.Room, error)
}

func (f *fakeRooms) Get(ctx context.Context, id string) (*model.Room, error) {
	if f.getFunc != nil {
		return f.getFunc(ctx, id)
	}
	for _, r := range f.rooms {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, client.ErrRoomNotFound
}

func (f *fakeRooms) List(_ context.Context, filter model.RoomFilter) ([]*model.Room, error) {
	var out []*model.Room
	for _, r := range f.rooms {
		if filter.MinCapacity > 0 && r.Capacity < filter.MinCapacity {
			continue
		}
		if filter.AvailableOnly && !r.IsAvailable {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type recordedEvent struct {
	Type      string
	BookingID string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, b *model.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, BookingID: b.ID})
	return nil
}

// movingRepo lets another writer change a booking right after the service's
// first read of it, before the room lock is taken.
type movingRepo struct {
	*memRepo
	once sync.Once
	move func(b *model.Booking)
}

func (r *movingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := r.memRepo.FindByID(ctx, id)
	if err == nil {
		r.once.Do(func() {
			r.mu.Lock()
			r.move(r.bookings[id])
			r.mu.Unlock()
		})
	}
	return b, err
}

// racingRepo aborts every Create with a write conflict. The first abort lets
// rival commit, as if it had won the race.
type racingRepo struct {
	*memRepo
	rival *model.Booking
}

func (r *racingRepo) Create(ctx context.Context, _ *model.Booking) error {
	if r.rival != nil {
		rival := r.rival
		r.rival = nil
		if err := r.memRepo.Create(ctx, rival); err != nil {
			return err
		}
	}
	return bookingserrors.ErrWriteConflict
}
